package infuse

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// janitor runs the periodic GC sweep, evicting cached singletons idle
// beyond a TTL through the resolver's eviction path. Eviction is lossy:
// an evicted instance is rebuilt on its next resolution.
type janitor struct {
	resolver *Resolver
	log      zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
}

func newJanitor(resolver *Resolver, log zerolog.Logger) *janitor {
	return &janitor{resolver: resolver, log: log}
}

// start begins a periodic sweep. Calling start while a sweep is running
// cancels the previous timer first, so two sweeps never overlap.
func (j *janitor) start(ttl, interval time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stop != nil {
		close(j.stop)
	}
	j.stop = make(chan struct{})

	go j.run(ttl, interval, j.stop)
}

// halt cancels the sweep timer. Calling halt when no sweep is running is
// a no-op.
func (j *janitor) halt() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stop != nil {
		close(j.stop)
		j.stop = nil
	}
}

func (j *janitor) run(ttl, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := j.resolver.EvictIdle(ttl); evicted > 0 {
				j.log.Debug().
					Int("evicted", evicted).
					Dur("ttl", ttl).
					Msg("gc sweep evicted idle singletons")
			}
		case <-stop:
			return
		}
	}
}
