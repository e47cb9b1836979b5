package infuse

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type options struct {
	name       string
	parent     *Container
	logger     zerolog.Logger
	clock      func() time.Time
	maxDepth   int
	gcTTL      time.Duration
	gcInterval time.Duration
}

func defaultOptions() *options {
	return &options{
		name:     "container-" + strings.SplitN(uuid.NewString(), "-", 2)[0],
		logger:   zerolog.Nop(),
		clock:    time.Now,
		maxDepth: DefaultMaxDepth,
	}
}

// Option configures a Container at construction time.
type Option func(*options)

// WithName sets the container name used in events and log fields.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithParent sets a read-only parent consulted for tokens missing from
// the local registry.
func WithParent(parent *Container) Option {
	return func(o *options) { o.parent = parent }
}

// WithLogger sets the logger for container diagnostics. The default is a
// no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithClock replaces the time source used for cache timestamps and event
// times. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithMaxDepth bounds resolution recursion depth.
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithGC starts the periodic idle-singleton sweep at construction.
func WithGC(ttl, interval time.Duration) Option {
	return func(o *options) {
		o.gcTTL = ttl
		o.gcInterval = interval
	}
}

// WithConfig applies a loaded Config: GC parameters and resolution
// depth. Logger configuration stays separate via WithLogger.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.MaxDepth > 0 {
			o.maxDepth = cfg.MaxDepth
		}
		if cfg.GCTTL > 0 && cfg.GCInterval > 0 {
			o.gcTTL = cfg.GCTTL
			o.gcInterval = cfg.GCInterval
		}
	}
}
