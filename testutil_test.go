package infuse

import (
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// TService is a basic service for testing.
type TService struct {
	ID    string
	Value int
}

// TDependency is a basic dependency for testing.
type TDependency struct {
	Name string
}

// TServiceWithDeps demonstrates dependency injection.
type TServiceWithDeps struct {
	Svc *TService
	Dep *TDependency
}

// ============================================================================
// Shared Constructors
// ============================================================================

var instanceCounter atomic.Int64

func NewTService() *TService {
	return &TService{ID: "test", Value: 42}
}

func NewTServiceWithID(id string) func() *TService {
	return func() *TService {
		return &TService{ID: id, Value: 42}
	}
}

func NewCountedTService() *TService {
	return &TService{ID: "counted", Value: int(instanceCounter.Add(1))}
}

func NewTDependency() *TDependency {
	return &TDependency{Name: "dep"}
}

func NewTServiceWithDeps(svc *TService, dep *TDependency) *TServiceWithDeps {
	return &TServiceWithDeps{Svc: svc, Dep: dep}
}

// valueProvider wraps a precomputed instance.
func valueProvider(v any) *ProviderConfig {
	return &ProviderConfig{Value: v}
}

// factoryProvider wraps a zero-dependency factory with the given
// lifecycle.
func factoryProvider(lifecycle Lifecycle, fn func() (any, error)) *ProviderConfig {
	return &ProviderConfig{
		Factory:   func(deps ...any) (any, error) { return fn() },
		Lifecycle: lifecycle,
	}
}

// ============================================================================
// Fake Clock
// ============================================================================

// fakeClock is a manually advanced time source for TTL and GC tests.
type fakeClock struct {
	mu   sync.Mutex
	time time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = c.time.Add(d)
}
