// Package infuse provides a token-based dependency injection container.
//
// Dependencies are registered against tokens (any comparable value: a
// string, a reflect.Type from TypeToken, or an opaque handle from
// UniqueToken) together with a provider configuration describing how to
// produce the instance: a precomputed value, a factory function, or a
// constructor function whose arguments are resolved recursively.
//
// # Basic Usage
//
// Create a container, register providers, and resolve:
//
//	c := infuse.New()
//	c.Register("config", &infuse.ProviderConfig{Value: cfg})
//	c.Register("db", &infuse.ProviderConfig{
//	    Constructor:  NewDatabase,
//	    Dependencies: []infuse.Token{"config"},
//	})
//
//	db, err := c.Resolve("db")
//
// # Lifecycles
//
// Each provider carries one of three lifecycles:
//
//   - Singleton: one cached instance shared by every caller (the default)
//   - Scoped: one instance per request scope, dropped by ClearRequestScope
//   - Transient: a new instance on every resolution
//
// Cached singletons may additionally declare a TTL; an instance idle for
// longer than its TTL is evicted and rebuilt on the next resolution. A
// container-level GC sweep (StartGC) evicts idle singletons periodically.
//
// # Hierarchy
//
// Containers form read-only parent chains: a token missing from the local
// registry is resolved through the parent, and parent failures surface as
// the child's own NotRegisteredError.
//
// # Concurrency
//
// Resolve is synchronous and resolves dependencies depth-first in declared
// order. ResolveAsync resolves dependencies concurrently and coalesces
// in-flight resolutions of the same token, so concurrent callers share a
// single instantiation. All container operations are safe for concurrent
// use.
//
// # Observers
//
// Containers emit register, resolve, error, import, and clear events to
// subscribed observers. Observer panics are recovered and logged, never
// propagated to the caller.
package infuse
