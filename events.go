package infuse

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType names a container lifecycle event.
type EventType string

const (
	EventRegister EventType = "register"
	EventResolve  EventType = "resolve"
	EventError    EventType = "error"
	EventImport   EventType = "import"
	EventClear    EventType = "clear"
)

// Event carries the details of a container lifecycle event.
type Event struct {
	Type      EventType
	Container string
	Token     Token
	Err       error
	Time      time.Time
}

// Observer receives container events. Observers must not rely on being
// called from any particular goroutine.
type Observer func(Event)

// observerSet fans events out to subscribed observers. Observer panics
// are recovered and logged, never propagated to the emitting caller.
type observerSet struct {
	mu        sync.RWMutex
	observers map[string]Observer
	log       zerolog.Logger
}

func newObserverSet(log zerolog.Logger) *observerSet {
	return &observerSet{
		observers: make(map[string]Observer),
		log:       log,
	}
}

// subscribe adds an observer and returns its subscription ID.
func (s *observerSet) subscribe(fn Observer) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers[id] = fn
	return id
}

// unsubscribe removes an observer. Unknown IDs are ignored.
func (s *observerSet) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.observers, id)
}

func (s *observerSet) notify(ev Event) {
	s.mu.RLock()
	snapshot := make(map[string]Observer, len(s.observers))
	for id, fn := range s.observers {
		snapshot[id] = fn
	}
	s.mu.RUnlock()

	for id, fn := range snapshot {
		s.safeNotify(id, fn, ev)
	}
}

func (s *observerSet) safeNotify(id string, fn Observer, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Warn().
				Str("observer", id).
				Str("event", string(ev.Type)).
				Interface("panic", rec).
				Msg("observer panicked")
		}
	}()

	fn(ev)
}
