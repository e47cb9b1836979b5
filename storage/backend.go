package storage

import "sync"

// Backend is the external key-value collaborator: get, set, and remove
// by string key, plus key enumeration for prefix scans.
type Backend interface {
	// Get returns the value for a key. The boolean is false when the
	// key is absent; absence is not an error.
	Get(key string) ([]byte, bool, error)

	// Set stores a value under a key, overwriting any existing value.
	Set(key string, value []byte) error

	// Delete removes a key. Deleting an absent key is a no-op.
	Delete(key string) error

	// Keys returns all stored keys. Order is not significant.
	Keys() ([]string, error)
}

// MemoryBackend is an in-process Backend backed by a map.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (b *MemoryBackend) Set(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[key] = stored
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, key)
	return nil
}

func (b *MemoryBackend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.data))
	for key := range b.data {
		keys = append(keys, key)
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data)
}
