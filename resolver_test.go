package infuse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_ResolveValue(t *testing.T) {
	reg := NewRegistry()
	reg.Register("answer", valueProvider(42))

	r := NewResolver(reg)

	got, err := r.Resolve("answer")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestResolver_NilToken(t *testing.T) {
	r := NewResolver(NewRegistry())

	_, err := r.Resolve(nil)
	assert.ErrorIs(t, err, ErrTokenNil)
}

func TestResolver_NotRegistered(t *testing.T) {
	r := NewResolver(NewRegistry())

	_, err := r.Resolve("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegistered)

	var nrErr NotRegisteredError
	require.ErrorAs(t, err, &nrErr)
	assert.Equal(t, Token("missing"), nrErr.Token)
}

func TestResolver_SingletonIdentity(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{Constructor: NewCountedTService})

	r := NewResolver(reg)

	first, err := r.Resolve("svc")
	require.NoError(t, err)
	second, err := r.Resolve("svc")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestResolver_TransientDistinct(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{
		Constructor: NewCountedTService,
		Lifecycle:   Transient,
	})

	r := NewResolver(reg)

	first, err := r.Resolve("svc")
	require.NoError(t, err)
	second, err := r.Resolve("svc")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.(*TService).Value, second.(*TService).Value)
}

func TestResolver_ScopedLifecycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{
		Constructor: NewCountedTService,
		Lifecycle:   Scoped,
	})

	r := NewResolver(reg)

	first, err := r.Resolve("svc")
	require.NoError(t, err)
	second, err := r.Resolve("svc")
	require.NoError(t, err)
	assert.Same(t, first, second)

	// A cleared scope gets a fresh instance and a new scope ID.
	oldScope := r.ScopeID()
	r.ClearScope()
	assert.NotEqual(t, oldScope, r.ScopeID())

	third, err := r.Resolve("svc")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestResolver_DependencyInjection(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{Constructor: NewTService})
	reg.Register("dep", &ProviderConfig{Constructor: NewTDependency})
	reg.Register("composite", &ProviderConfig{
		Constructor:  NewTServiceWithDeps,
		Dependencies: []Token{"svc", "dep"},
	})

	r := NewResolver(reg)

	got, err := r.Resolve("composite")
	require.NoError(t, err)

	composite := got.(*TServiceWithDeps)
	require.NotNil(t, composite.Svc)
	require.NotNil(t, composite.Dep)
	assert.Equal(t, 42, composite.Svc.Value)
	assert.Equal(t, "dep", composite.Dep.Name)
}

func TestResolver_FactoryWithDeps(t *testing.T) {
	reg := NewRegistry()
	reg.Register("name", valueProvider("postgres"))
	reg.Register("conn", &ProviderConfig{
		Factory: func(deps ...any) (any, error) {
			return "conn:" + deps[0].(string), nil
		},
		Dependencies: []Token{"name"},
	})

	r := NewResolver(reg)

	got, err := r.Resolve("conn")
	require.NoError(t, err)
	assert.Equal(t, "conn:postgres", got)
}

func TestResolver_CircularDependency(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &ProviderConfig{
		Factory:      func(deps ...any) (any, error) { return "a", nil },
		Dependencies: []Token{"b"},
	})
	reg.Register("b", &ProviderConfig{
		Factory:      func(deps ...any) (any, error) { return "b", nil },
		Dependencies: []Token{"a"},
	})

	r := NewResolver(reg)

	_, err := r.Resolve("a")
	require.Error(t, err)

	var circErr CircularDependencyError
	require.ErrorAs(t, err, &circErr)
	assert.Equal(t, Token("a"), circErr.Token)
	assert.Contains(t, err.Error(), "circular dependency detected")
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestResolver_SelfDependency(t *testing.T) {
	reg := NewRegistry()
	reg.Register("self", &ProviderConfig{
		Factory:      func(deps ...any) (any, error) { return "self", nil },
		Dependencies: []Token{"self"},
	})

	r := NewResolver(reg)

	_, err := r.Resolve("self")
	var circErr CircularDependencyError
	require.ErrorAs(t, err, &circErr)
}

func TestResolver_DiamondDependencyIsNotACycle(t *testing.T) {
	// a depends on b and c, both depend on d. d appears twice in the
	// traversal but never on its own active path.
	reg := NewRegistry()
	reg.Register("d", valueProvider("d"))
	reg.Register("b", &ProviderConfig{
		Factory:      func(deps ...any) (any, error) { return "b", nil },
		Dependencies: []Token{"d"},
	})
	reg.Register("c", &ProviderConfig{
		Factory:      func(deps ...any) (any, error) { return "c", nil },
		Dependencies: []Token{"d"},
	})
	reg.Register("a", &ProviderConfig{
		Factory:      func(deps ...any) (any, error) { return "a", nil },
		Dependencies: []Token{"b", "c"},
	})

	r := NewResolver(reg)

	_, err := r.Resolve("a")
	assert.NoError(t, err)
}

func TestResolver_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry()
	reg.Register("svc", factoryProvider(Singleton, func() (any, error) {
		return nil, boom
	}))

	r := NewResolver(reg)

	_, err := r.Resolve("svc")
	require.Error(t, err)

	var instErr InstantiationError
	require.ErrorAs(t, err, &instErr)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_ConstructorPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{
		Constructor: func() *TService { panic("constructor exploded") },
	})

	r := NewResolver(reg)

	_, err := r.Resolve("svc")
	require.Error(t, err)

	var instErr InstantiationError
	require.ErrorAs(t, err, &instErr)
	assert.Contains(t, err.Error(), "constructor exploded")
}

func TestResolver_ConstructorErrorReturn(t *testing.T) {
	boom := errors.New("db unavailable")
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{
		Constructor: func() (*TService, error) { return nil, boom },
	})

	r := NewResolver(reg)

	_, err := r.Resolve("svc")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestResolver_ConstructorArgumentMismatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{Constructor: NewTServiceWithDeps})

	r := NewResolver(reg)

	_, err := r.Resolve("svc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 arguments")
}

func TestResolver_Fallback(t *testing.T) {
	parent := NewRegistry()
	parent.Register("shared", valueProvider("from-parent"))
	parentResolver := NewResolver(parent)

	child := NewRegistry()
	r := NewResolver(child, WithResolverFallback(parentResolver.Resolve))

	got, err := r.Resolve("shared")
	require.NoError(t, err)
	assert.Equal(t, "from-parent", got)

	// A fallback failure surfaces as this resolver's own error.
	_, err = r.Resolve("missing")
	var nrErr NotRegisteredError
	require.ErrorAs(t, err, &nrErr)
	assert.Equal(t, Token("missing"), nrErr.Token)
}

func TestResolver_InvalidateCascades(t *testing.T) {
	reg := NewRegistry()
	reg.Register("base", &ProviderConfig{Constructor: NewCountedTService})
	reg.Register("mid", &ProviderConfig{
		Factory: func(deps ...any) (any, error) {
			return &TServiceWithDeps{Svc: deps[0].(*TService)}, nil
		},
		Dependencies: []Token{"base"},
	})
	reg.Register("top", &ProviderConfig{
		Factory: func(deps ...any) (any, error) {
			return deps[0], nil
		},
		Dependencies: []Token{"mid"},
	})

	r := NewResolver(reg)

	top1, err := r.Resolve("top")
	require.NoError(t, err)

	// Invalidating the base cascades through mid to top.
	r.Invalidate("base")

	top2, err := r.Resolve("top")
	require.NoError(t, err)
	assert.NotSame(t, top1, top2)
}

func TestResolver_InvalidateDoesNotTouchSiblings(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", &ProviderConfig{Constructor: NewCountedTService})
	reg.Register("b", &ProviderConfig{Constructor: NewCountedTService})

	r := NewResolver(reg)

	a1, _ := r.Resolve("a")
	b1, _ := r.Resolve("b")

	r.Invalidate("a")

	a2, _ := r.Resolve("a")
	b2, _ := r.Resolve("b")

	assert.NotSame(t, a1, a2)
	assert.Same(t, b1, b2)
}

func TestResolver_TTLReadEviction(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{
		Constructor: NewCountedTService,
		TTL:         time.Minute,
	})

	r := NewResolver(reg, WithResolverClock(clock.Now))

	first, err := r.Resolve("svc")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	again, err := r.Resolve("svc")
	require.NoError(t, err)
	assert.Same(t, first, again)

	clock.Advance(5 * time.Minute)
	fresh, err := r.Resolve("svc")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
}

func TestResolver_MaxDepth(t *testing.T) {
	reg := NewRegistry()
	// A linear chain deeper than the limit.
	reg.Register(tokenN(0), valueProvider("leaf"))
	for i := 1; i <= 10; i++ {
		reg.Register(tokenN(i), &ProviderConfig{
			Factory:      func(deps ...any) (any, error) { return deps[0], nil },
			Dependencies: []Token{tokenN(i - 1)},
		})
	}

	r := NewResolver(reg, WithResolverMaxDepth(5))

	_, err := r.Resolve(tokenN(10))
	var depthErr MaxDepthError
	require.ErrorAs(t, err, &depthErr)

	deep := NewResolver(reg, WithResolverMaxDepth(50))
	_, err = deep.Resolve(tokenN(10))
	assert.NoError(t, err)
}

func tokenN(n int) Token {
	return "t" + string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func TestResolver_ScopeClearedDuringInstantiation(t *testing.T) {
	reg := NewRegistry()
	r := NewResolver(reg)

	// The first instantiation rotates the scope while it is being
	// built. The instance belongs to the cleared scope and must not be
	// served to the fresh one.
	calls := 0
	reg.Register("svc", &ProviderConfig{
		Lifecycle: Scoped,
		Factory: func(deps ...any) (any, error) {
			calls++
			if calls == 1 {
				r.ClearScope()
			}
			return &TService{Value: calls}, nil
		},
	})

	first, err := r.Resolve("svc")
	require.NoError(t, err)

	second, err := r.Resolve("svc")
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// The fresh scope now caches its own instance normally.
	third, err := r.Resolve("svc")
	require.NoError(t, err)
	assert.Same(t, second, third)
}

func TestResolver_ClearCache(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{Constructor: NewCountedTService})

	r := NewResolver(reg)

	first, _ := r.Resolve("svc")
	r.ClearCache()
	second, _ := r.Resolve("svc")

	assert.NotSame(t, first, second)
}

func TestResolver_Stats(t *testing.T) {
	reg := NewRegistry()
	reg.Register("svc", &ProviderConfig{Constructor: NewTService})

	r := NewResolver(reg)

	_, _ = r.Resolve("svc") // miss, then instantiate
	_, _ = r.Resolve("svc") // hit

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Singletons)
}
