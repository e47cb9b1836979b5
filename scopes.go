package infuse

import (
	"sync"

	"github.com/google/uuid"
)

// Scope is an explicit handle associating callers with a container. The
// handle carries only a session ID, so ownership never depends on object
// identity.
type Scope struct {
	id string
}

// NewScope creates a fresh scope handle.
func NewScope() Scope {
	return Scope{id: uuid.NewString()}
}

// ID returns the scope's session identifier.
func (s Scope) ID() string { return s.id }

// IsZero reports whether the handle was never initialized via NewScope.
func (s Scope) IsZero() bool { return s.id == "" }

// ContainerRegistry maps scope handles to containers. Lookups hit a
// single-entry cache first, then the full map, then the default
// container. The default is supplied explicitly at construction; there
// is no package-level fallback state.
type ContainerRegistry struct {
	mu         sync.RWMutex
	containers map[string]*Container

	// Single-entry lookup cache for the common repeated-scope pattern.
	lastID        string
	lastContainer *Container

	def *Container
}

// NewContainerRegistry creates a registry with the given default
// container. The default may be nil, in which case lookups for unknown
// scopes return nil.
func NewContainerRegistry(def *Container) *ContainerRegistry {
	return &ContainerRegistry{
		containers: make(map[string]*Container),
		def:        def,
	}
}

// Attach associates a scope handle with a container, replacing any
// previous association. Zero scopes are ignored.
func (r *ContainerRegistry) Attach(scope Scope, c *Container) {
	if scope.IsZero() || c == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.containers[scope.id] = c
	r.lastID = scope.id
	r.lastContainer = c
}

// Detach removes a scope's association. Detaching an unknown scope is a
// no-op.
func (r *ContainerRegistry) Detach(scope Scope) {
	if scope.IsZero() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.containers, scope.id)
	if r.lastID == scope.id {
		r.lastID = ""
		r.lastContainer = nil
	}
}

// For returns the container associated with the scope, falling back to
// the default container when the scope is unknown or zero.
func (r *ContainerRegistry) For(scope Scope) *Container {
	if scope.IsZero() {
		return r.Default()
	}

	r.mu.RLock()
	if r.lastID == scope.id {
		c := r.lastContainer
		r.mu.RUnlock()
		return c
	}
	c, ok := r.containers[scope.id]
	r.mu.RUnlock()

	if !ok {
		return r.Default()
	}

	r.mu.Lock()
	r.lastID = scope.id
	r.lastContainer = c
	r.mu.Unlock()

	return c
}

// Default returns the fallback container.
func (r *ContainerRegistry) Default() *Container {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.def
}

// Len returns the number of attached scopes.
func (r *ContainerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.containers)
}
