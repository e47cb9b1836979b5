package infuse

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rvalk/infuse/internal/graph"
)

// Container composes a Registry, a Resolver, and a GC janitor behind one
// facade, adds parent fallback resolution, and emits lifecycle events to
// subscribed observers.
type Container struct {
	name      string
	registry  *Registry
	resolver  *Resolver
	janitor   *janitor
	observers *observerSet
	parent    *Container
	log       zerolog.Logger
	now       func() time.Time
	closed    atomic.Bool
}

// New creates a container.
func New(opts ...Option) *Container {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	c := &Container{
		name:     o.name,
		parent:   o.parent,
		log:      o.logger.With().Str("container", o.name).Logger(),
		now:      o.clock,
		registry: NewRegistry(),
	}

	ropts := []ResolverOption{
		WithResolverClock(o.clock),
		WithResolverMaxDepth(o.maxDepth),
	}
	if o.parent != nil {
		ropts = append(ropts, WithResolverFallback(o.parent.Resolve))
	}
	c.resolver = NewResolver(c.registry, ropts...)

	c.janitor = newJanitor(c.resolver, c.log)
	c.observers = newObserverSet(c.log)

	if o.gcInterval > 0 {
		c.janitor.start(o.gcTTL, o.gcInterval)
	}

	return c
}

// Name returns the container's name.
func (c *Container) Name() string { return c.name }

// Parent returns the parent container, or nil for a root container.
func (c *Container) Parent() *Container { return c.parent }

// Register validates the provider configuration and stores it for the
// token, replacing any existing provider.
func (c *Container) Register(token Token, cfg *ProviderConfig) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	if token == nil {
		return ErrTokenNil
	}
	if cfg == nil {
		return ErrProviderNil
	}

	if err := cfg.validate(token); err != nil {
		c.emit(Event{Type: EventError, Token: token, Err: err})
		return err
	}

	c.registry.Register(token, cfg)
	c.emit(Event{Type: EventRegister, Token: token})
	c.log.Debug().Str("token", tokenString(token)).Str("lifecycle", cfg.Lifecycle.String()).Msg("provider registered")
	return nil
}

// Unregister removes the provider for a token and invalidates any cached
// instances that depended on it.
func (c *Container) Unregister(token Token) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}

	c.resolver.Invalidate(token)
	c.registry.Remove(token)
	return nil
}

// Resolve produces an instance for the token. Tokens missing from the
// local registry fall back to the parent chain; parent errors are
// swallowed and surface as this container's own NotRegisteredError.
func (c *Container) Resolve(token Token) (any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	instance, err := c.resolver.Resolve(token)
	if err != nil {
		c.emit(Event{Type: EventError, Token: token, Err: err})
		return nil, err
	}

	c.emit(Event{Type: EventResolve, Token: token})
	return instance, nil
}

// ResolveAsync is Resolve with concurrent dependency resolution and
// in-flight deduplication per token.
func (c *Container) ResolveAsync(ctx context.Context, token Token) (any, error) {
	if c.closed.Load() {
		return nil, ErrContainerClosed
	}

	instance, err := c.resolver.ResolveAsync(ctx, token)
	if err != nil {
		c.emit(Event{Type: EventError, Token: token, Err: err})
		return nil, err
	}

	c.emit(Event{Type: EventResolve, Token: token})
	return instance, nil
}

// Has reports whether the token is registered here or anywhere up the
// parent chain. A closed container has nothing.
func (c *Container) Has(token Token) bool {
	if c.closed.Load() {
		return false
	}
	if c.registry.Has(token) {
		return true
	}
	if c.parent != nil {
		return c.parent.Has(token)
	}
	return false
}

// Invalidate removes the cached instance for a token and every
// transitive dependent, forcing fresh instances on the next resolution.
// Invalidating on a closed container is a no-op.
func (c *Container) Invalidate(token Token) {
	if c.closed.Load() {
		return
	}
	c.resolver.Invalidate(token)
}

// ScopeID returns the identifier of the current request scope.
func (c *Container) ScopeID() string {
	return c.resolver.ScopeID()
}

// ClearRequestScope drops all request-scoped instances and begins a
// fresh request scope. A no-op on a closed container.
func (c *Container) ClearRequestScope() {
	if c.closed.Load() {
		return
	}
	c.resolver.ClearScope()
}

// StartGC begins a periodic sweep evicting cached singletons idle longer
// than ttl. Calling StartGC again replaces the running sweep.
func (c *Container) StartGC(ttl, interval time.Duration) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	if ttl <= 0 || interval <= 0 {
		return LifecycleError{Value: "gc ttl and interval must be positive"}
	}

	c.janitor.start(ttl, interval)
	return nil
}

// StopGC cancels the sweep timer. Safe to call when no sweep is running.
func (c *Container) StopGC() {
	c.janitor.halt()
}

// Subscribe registers an observer for container events and returns its
// subscription ID. A closed container accepts no observers and returns
// an empty ID.
func (c *Container) Subscribe(fn Observer) string {
	if c.closed.Load() {
		return ""
	}
	return c.observers.subscribe(fn)
}

// Unsubscribe removes a previously subscribed observer.
func (c *Container) Unsubscribe(id string) {
	c.observers.unsubscribe(id)
}

// ImportOptions controls Import behavior.
type ImportOptions struct {
	// OverrideExisting replaces providers already registered locally.
	// When false, colliding tokens are skipped.
	OverrideExisting bool

	// Prefix namespaces imported string tokens. String dependency tokens
	// registered in the source container are rewritten with the same
	// prefix so imported graphs stay internally consistent; non-string
	// tokens copy unchanged.
	Prefix string
}

// Import copies all provider configurations from another container's
// registry into this one.
func (c *Container) Import(other *Container, opts ImportOptions) error {
	if c.closed.Load() {
		return ErrContainerClosed
	}
	if other == nil {
		return ErrContainerNil
	}

	source := other.registry.Providers()
	imported := 0

	for token, cfg := range source {
		target := importToken(token, opts.Prefix)
		if !opts.OverrideExisting && c.registry.Has(target) {
			continue
		}

		dup := cfg.clone()
		if opts.Prefix != "" {
			for i, dep := range dup.Dependencies {
				if _, inSource := source[dep]; inSource {
					dup.Dependencies[i] = importToken(dep, opts.Prefix)
				}
			}
		}

		c.registry.Register(target, dup)
		imported++
	}

	c.emit(Event{Type: EventImport})
	c.log.Debug().Int("providers", imported).Str("source", other.name).Msg("imported providers")
	return nil
}

func importToken(token Token, prefix string) Token {
	if prefix == "" {
		return token
	}
	if s, ok := token.(string); ok {
		return prefix + s
	}
	return token
}

// Validate checks the declared dependency arrays for configuration-level
// cycles without instantiating anything.
func (c *Container) Validate() error {
	g := graph.New()
	for token, cfg := range c.registry.Providers() {
		for _, dep := range cfg.Dependencies {
			g.AddEdge(token, dep)
		}
	}

	if cycle := g.FindCycle(); cycle != nil {
		chain := make([]Token, len(cycle)-1)
		copy(chain, cycle[:len(cycle)-1])
		return CircularDependencyError{Token: cycle[len(cycle)-1], Chain: chain}
	}

	return nil
}

// Stats returns the resolver's instance cache counters.
func (c *Container) Stats() CacheStats {
	return c.resolver.Stats()
}

// Close stops the GC sweep, drops all cached instances, and marks the
// container closed. Further operations return ErrContainerClosed.
// Close is idempotent.
func (c *Container) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.janitor.halt()
	c.resolver.ClearCache()
	c.emit(Event{Type: EventClear})
	return nil
}

func (c *Container) emit(ev Event) {
	ev.Container = c.name
	ev.Time = c.now()
	c.observers.notify(ev)
}
