package infuse

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rvalk/infuse/internal/graph"
)

// DefaultMaxDepth bounds resolution recursion when no explicit limit is
// configured.
const DefaultMaxDepth = 100

// fallbackFunc is consulted when a token is missing from the local
// registry, before giving up with NotRegisteredError. Containers install
// their parent's Resolve here.
type fallbackFunc func(token Token) (any, error)

// Resolver produces instances from a registry, caching them per lifecycle
// and recording dependency edges for cache-invalidation cascades.
type Resolver struct {
	registry *Registry
	cache    *instanceCache
	graph    *graph.Graph

	fallback fallbackFunc
	maxDepth int
	now      func() time.Time

	// In-flight async resolutions, keyed per token (the pending map).
	flight     singleflight.Group
	flightKeys sync.Map // Token -> string
	flightSeq  uint64

	scopeMu sync.RWMutex
	scopeID string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverFallback installs a lookup consulted for tokens missing
// from the local registry. A fallback error is swallowed in favor of the
// resolver's own NotRegisteredError.
func WithResolverFallback(fn fallbackFunc) ResolverOption {
	return func(r *Resolver) { r.fallback = fn }
}

// WithResolverClock replaces the time source. Intended for tests.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithResolverMaxDepth bounds resolution recursion depth. Zero or
// negative disables the guard.
func WithResolverMaxDepth(depth int) ResolverOption {
	return func(r *Resolver) { r.maxDepth = depth }
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry *Registry, opts ...ResolverOption) *Resolver {
	if registry == nil {
		panic("registry cannot be nil")
	}

	r := &Resolver{
		registry: registry,
		graph:    graph.New(),
		maxDepth: DefaultMaxDepth,
		now:      time.Now,
		scopeID:  uuid.NewString(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	r.cache = newInstanceCache(r.now)
	return r
}

// resolution tracks the active-resolution set for one resolve call. The
// ordered path doubles as the cycle chain in error messages.
type resolution struct {
	path   []Token
	active map[Token]struct{}
}

func newResolution() *resolution {
	return &resolution{active: make(map[Token]struct{})}
}

// enter pushes a token onto the active set, failing if it is already
// being resolved in this call chain.
func (s *resolution) enter(token Token) error {
	if _, ok := s.active[token]; ok {
		return CircularDependencyError{
			Token: token,
			Chain: append([]Token(nil), s.path...),
		}
	}

	s.active[token] = struct{}{}
	s.path = append(s.path, token)
	return nil
}

// exit pops the most recent token. Paired with enter on every exit path.
func (s *resolution) exit(token Token) {
	delete(s.active, token)
	s.path = s.path[:len(s.path)-1]
}

// fork copies the resolution state for a concurrent branch. Each async
// dependency gets its own copy since resolutions are not goroutine-safe.
func (s *resolution) fork() *resolution {
	dup := &resolution{
		path:   append([]Token(nil), s.path...),
		active: make(map[Token]struct{}, len(s.active)),
	}
	for token := range s.active {
		dup.active[token] = struct{}{}
	}
	return dup
}

// Resolve produces an instance for the token, resolving dependencies
// depth-first in declared order.
func (r *Resolver) Resolve(token Token) (any, error) {
	if token == nil {
		return nil, ErrTokenNil
	}

	return r.resolve(newResolution(), token)
}

func (r *Resolver) resolve(res *resolution, token Token) (any, error) {
	if r.maxDepth > 0 && len(res.path) >= r.maxDepth {
		return nil, MaxDepthError{Token: token, Depth: len(res.path)}
	}

	if err := res.enter(token); err != nil {
		return nil, err
	}
	defer res.exit(token)

	cfg, ok := r.registry.Provider(token)
	if !ok {
		return r.resolveMissing(token)
	}

	// Values are already instances; no caching needed.
	if cfg.Value != nil {
		return cfg.Value, nil
	}

	// The scope ID is pinned for the whole resolution so a concurrent
	// ClearScope cannot split the cache check and the store across two
	// scopes.
	var scopeID string
	if cfg.Lifecycle == Scoped {
		scopeID = r.ScopeID()
	}

	if instance, ok := r.cached(token, cfg, scopeID); ok {
		return instance, nil
	}

	instance, err := r.instantiate(res, token, cfg)
	if err != nil {
		return nil, err
	}

	r.store(token, cfg, instance, scopeID)
	r.recordEdges(token, cfg)
	return instance, nil
}

// resolveMissing consults the fallback for tokens absent from the local
// registry. Fallback failures are swallowed; the caller sees this
// resolver's own NotRegisteredError.
func (r *Resolver) resolveMissing(token Token) (any, error) {
	if r.fallback != nil {
		if instance, err := r.fallback(token); err == nil {
			return instance, nil
		}
	}
	return nil, NotRegisteredError{Token: token}
}

// instantiate resolves declared dependencies and invokes the factory or
// constructor. Panics inside either are captured as InstantiationError.
func (r *Resolver) instantiate(res *resolution, token Token, cfg *ProviderConfig) (any, error) {
	deps := make([]any, len(cfg.Dependencies))
	for i, dep := range cfg.Dependencies {
		instance, err := r.resolve(res, dep)
		if err != nil {
			return nil, err
		}
		deps[i] = instance
	}

	return r.construct(token, cfg, deps)
}

func (r *Resolver) construct(token Token, cfg *ProviderConfig, deps []any) (instance any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			instance = nil
			err = InstantiationError{Token: token, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if cfg.Factory != nil {
		out, ferr := cfg.Factory(deps...)
		if ferr != nil {
			return nil, InstantiationError{Token: token, Cause: ferr}
		}
		return out, nil
	}

	return r.invokeConstructor(token, cfg.Constructor, deps)
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// invokeConstructor calls an arbitrary constructor function with the
// resolved dependencies. The first non-error return value is the
// instance; a non-nil trailing error aborts.
func (r *Resolver) invokeConstructor(token Token, ctor any, deps []any) (any, error) {
	fn := reflect.ValueOf(ctor)
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, InvalidProviderConfigError{Token: token, Reason: "Constructor must be a function"}
	}

	numIn := ft.NumIn()
	if ft.IsVariadic() {
		if len(deps) < numIn-1 {
			return nil, InstantiationError{
				Token: token,
				Cause: fmt.Errorf("constructor expects at least %d arguments, %d dependencies declared", numIn-1, len(deps)),
			}
		}
	} else if len(deps) != numIn {
		return nil, InstantiationError{
			Token: token,
			Cause: fmt.Errorf("constructor expects %d arguments, %d dependencies declared", numIn, len(deps)),
		}
	}

	args := make([]reflect.Value, len(deps))
	for i, dep := range deps {
		want := ft.In(min(i, numIn-1))
		if ft.IsVariadic() && i >= numIn-1 {
			want = ft.In(numIn - 1).Elem()
		}

		arg, err := conform(dep, want)
		if err != nil {
			return nil, InstantiationError{
				Token: token,
				Cause: fmt.Errorf("dependency %d: %w", i, err),
			}
		}
		args[i] = arg
	}

	results := fn.Call(args)

	if n := len(results); n > 0 && ft.Out(n-1).Implements(errType) {
		if !results[n-1].IsNil() {
			return nil, InstantiationError{Token: token, Cause: results[n-1].Interface().(error)}
		}
		results = results[:n-1]
	}

	if len(results) == 0 {
		return nil, InstantiationError{Token: token, Cause: errors.New("constructor returned no value")}
	}

	return results[0].Interface(), nil
}

// conform converts a resolved dependency to the parameter type expected
// by the constructor.
func conform(dep any, want reflect.Type) (reflect.Value, error) {
	if dep == nil {
		return reflect.Zero(want), nil
	}

	v := reflect.ValueOf(dep)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if v.Type().ConvertibleTo(want) {
		return v.Convert(want), nil
	}

	return reflect.Value{}, fmt.Errorf("%T is not assignable to %s", dep, want)
}

// cached checks the lifecycle-appropriate cache, refreshing lastUsed on a
// hit. Expired entries read as misses. scopeID is the scope pinned at the
// start of the resolution; it is ignored for non-scoped lifecycles.
func (r *Resolver) cached(token Token, cfg *ProviderConfig, scopeID string) (any, bool) {
	switch cfg.Lifecycle {
	case Singleton:
		return r.cache.getSingleton(token)
	case Scoped:
		return r.cache.getScoped(token, scopeID)
	default:
		return nil, false
	}
}

// store caches the instance per lifecycle. Transient instances are never
// cached. A scoped instance is stored under the scope it was resolved
// for, never under a scope rotated in mid-instantiation.
func (r *Resolver) store(token Token, cfg *ProviderConfig, instance any, scopeID string) {
	switch cfg.Lifecycle {
	case Singleton:
		r.cache.setSingleton(token, instance, cfg.TTL)
	case Scoped:
		r.cache.setScoped(token, instance, cfg.TTL, scopeID)
	}
}

// recordEdges adds dependent -> dependency edges used by invalidation
// cascades.
func (r *Resolver) recordEdges(token Token, cfg *ProviderConfig) {
	for _, dep := range cfg.Dependencies {
		r.graph.AddEdge(token, dep)
	}
}

// Invalidate removes the cached instance for a token and cascades to
// every transitive dependent, so the next resolution of each produces a
// fresh instance.
func (r *Resolver) Invalidate(token Token) {
	r.invalidate(token, make(map[Token]struct{}))
}

func (r *Resolver) invalidate(token Token, seen map[Token]struct{}) {
	if _, ok := seen[token]; ok {
		return
	}
	seen[token] = struct{}{}

	r.cache.deleteToken(token)
	for _, dependent := range r.graph.Dependents(token) {
		r.invalidate(dependent, seen)
	}
}

// EvictIdle removes cached singletons idle longer than ttl and returns
// the eviction count. Called by the GC sweep.
func (r *Resolver) EvictIdle(ttl time.Duration) int {
	return r.cache.evictIdle(ttl)
}

// ScopeID returns the current request-scope identifier.
func (r *Resolver) ScopeID() string {
	r.scopeMu.RLock()
	defer r.scopeMu.RUnlock()

	return r.scopeID
}

// ClearScope drops all request-scoped instances and rotates the scope
// identifier, beginning a fresh request scope.
func (r *Resolver) ClearScope() {
	r.scopeMu.Lock()
	old := r.scopeID
	r.scopeID = uuid.NewString()
	r.scopeMu.Unlock()

	r.cache.clearScope(old)
}

// ClearCache drops every cached instance and all recorded dependency
// edges.
func (r *Resolver) ClearCache() {
	r.cache.clear()
	r.graph.Clear()
}

// Stats returns instance cache counters.
func (r *Resolver) Stats() CacheStats {
	return r.cache.snapshot()
}

// flightKey returns a stable string key for the token's in-flight group.
// Scoped tokens key per scope so separate scopes never share an
// instantiation.
func (r *Resolver) flightKey(token Token, cfg *ProviderConfig, scopeID string) string {
	key, ok := r.flightKeys.Load(token)
	if !ok {
		seq := atomic.AddUint64(&r.flightSeq, 1)
		key, _ = r.flightKeys.LoadOrStore(token, "t"+strconv.FormatUint(seq, 36))
	}

	if cfg.Lifecycle == Scoped {
		return scopeID + "|" + key.(string)
	}
	return key.(string)
}
