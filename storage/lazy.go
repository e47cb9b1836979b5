package storage

import "sync"

// Lazy defers a store read until first use and caches the outcome. A
// subsequent Invalidate forces a fresh read on the next Get.
type Lazy[T any] struct {
	store *Store
	key   string

	mu     sync.Mutex
	loaded bool
	value  T
	found  bool
	err    error
}

// NewLazy creates a lazy handle for the given key.
func NewLazy[T any](store *Store, key string) *Lazy[T] {
	return &Lazy[T]{store: store, key: key}
}

// Get returns the stored value, loading it on first call. The boolean is
// false when the key is absent or expired.
func (l *Lazy[T]) Get() (T, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		var value T
		l.found, l.err = l.store.Get(l.key, &value)
		if l.found && l.err == nil {
			l.value = value
		}
		l.loaded = true
	}
	return l.value, l.found, l.err
}

// Invalidate discards the cached outcome so the next Get reads the store
// again.
func (l *Lazy[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	l.loaded = false
	l.value = zero
	l.found = false
	l.err = nil
}
