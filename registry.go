package infuse

import "sync"

// Registry maps tokens to provider configurations. It is pure storage:
// lookups report absence with a boolean, never an error, and registration
// silently replaces an existing provider for the same token.
type Registry struct {
	mu        sync.RWMutex
	providers map[Token]*ProviderConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[Token]*ProviderConfig),
	}
}

// Register inserts or overwrites the provider for a token.
func (r *Registry) Register(token Token, cfg *ProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[token] = cfg
}

// Has reports whether a provider is registered for the token.
func (r *Registry) Has(token Token) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[token]
	return ok
}

// Provider returns the configuration for a token. The second return is
// false when the token has never been registered.
func (r *Registry) Provider(token Token) (*ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.providers[token]
	return cfg, ok
}

// Providers returns a snapshot of all registered providers.
func (r *Registry) Providers() map[Token]*ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[Token]*ProviderConfig, len(r.providers))
	for token, cfg := range r.providers {
		snapshot[token] = cfg
	}
	return snapshot
}

// Tokens returns a snapshot of all registered tokens. Order is not
// significant.
func (r *Registry) Tokens() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]Token, 0, len(r.providers))
	for token := range r.providers {
		tokens = append(tokens, token)
	}
	return tokens
}

// Remove deletes the provider for a token. Removing an absent token is a
// no-op.
func (r *Registry) Remove(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, token)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}
