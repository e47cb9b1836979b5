package infuse

import (
	"sync"
	"sync/atomic"
	"time"
)

// cacheEntry wraps a cached instance with its usage metadata. lastUsed is
// refreshed on every hit; an entry idle beyond its ttl is treated as a
// miss and deleted on the next read.
type cacheEntry struct {
	instance any
	lastUsed time.Time
	ttl      time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.lastUsed) > e.ttl
}

// instanceCache holds resolved instances by lifecycle: a long-lived
// singleton map and per-scope maps keyed by scope ID. Transient instances
// are never stored.
type instanceCache struct {
	now func() time.Time

	singletonMu sync.Mutex
	singletons  map[Token]*cacheEntry

	scopedMu sync.Mutex
	scoped   map[string]map[Token]*cacheEntry

	stats struct {
		hits      int64
		misses    int64
		evictions int64
	}
}

// CacheStats reports instance cache counters.
type CacheStats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Singletons int
	Scopes     int
}

func newInstanceCache(now func() time.Time) *instanceCache {
	if now == nil {
		now = time.Now
	}
	return &instanceCache{
		now:        now,
		singletons: make(map[Token]*cacheEntry),
		scoped:     make(map[string]map[Token]*cacheEntry),
	}
}

// getSingleton returns a cached singleton, refreshing lastUsed. An entry
// past its TTL is evicted and reported as a miss.
func (c *instanceCache) getSingleton(token Token) (any, bool) {
	c.singletonMu.Lock()
	defer c.singletonMu.Unlock()

	entry, ok := c.singletons[token]
	if !ok {
		c.recordMiss()
		return nil, false
	}

	if entry.expired(c.now()) {
		delete(c.singletons, token)
		atomic.AddInt64(&c.stats.evictions, 1)
		c.recordMiss()
		return nil, false
	}

	entry.lastUsed = c.now()
	c.recordHit()
	return entry.instance, true
}

func (c *instanceCache) setSingleton(token Token, instance any, ttl time.Duration) {
	if instance == nil {
		return
	}

	c.singletonMu.Lock()
	defer c.singletonMu.Unlock()

	c.singletons[token] = &cacheEntry{
		instance: instance,
		lastUsed: c.now(),
		ttl:      ttl,
	}
}

func (c *instanceCache) getScoped(token Token, scopeID string) (any, bool) {
	c.scopedMu.Lock()
	defer c.scopedMu.Unlock()

	scope, ok := c.scoped[scopeID]
	if !ok {
		c.recordMiss()
		return nil, false
	}

	entry, ok := scope[token]
	if !ok {
		c.recordMiss()
		return nil, false
	}

	if entry.expired(c.now()) {
		delete(scope, token)
		atomic.AddInt64(&c.stats.evictions, 1)
		c.recordMiss()
		return nil, false
	}

	entry.lastUsed = c.now()
	c.recordHit()
	return entry.instance, true
}

func (c *instanceCache) setScoped(token Token, instance any, ttl time.Duration, scopeID string) {
	if instance == nil {
		return
	}

	c.scopedMu.Lock()
	defer c.scopedMu.Unlock()

	scope, ok := c.scoped[scopeID]
	if !ok {
		scope = make(map[Token]*cacheEntry)
		c.scoped[scopeID] = scope
	}

	scope[token] = &cacheEntry{
		instance: instance,
		lastUsed: c.now(),
		ttl:      ttl,
	}
}

// deleteToken removes a token's instances from the singleton map and from
// every scope. Used by explicit invalidation.
func (c *instanceCache) deleteToken(token Token) {
	c.singletonMu.Lock()
	if _, ok := c.singletons[token]; ok {
		delete(c.singletons, token)
		atomic.AddInt64(&c.stats.evictions, 1)
	}
	c.singletonMu.Unlock()

	c.scopedMu.Lock()
	for _, scope := range c.scoped {
		if _, ok := scope[token]; ok {
			delete(scope, token)
			atomic.AddInt64(&c.stats.evictions, 1)
		}
	}
	c.scopedMu.Unlock()
}

// evictIdle removes every cached singleton idle longer than ttl and
// returns the eviction count. The GC sweep calls this on each tick.
func (c *instanceCache) evictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	now := c.now()
	evicted := 0

	c.singletonMu.Lock()
	for token, entry := range c.singletons {
		if now.Sub(entry.lastUsed) > ttl {
			delete(c.singletons, token)
			evicted++
		}
	}
	c.singletonMu.Unlock()

	atomic.AddInt64(&c.stats.evictions, int64(evicted))
	return evicted
}

// clearScope drops every instance cached under the given scope ID.
func (c *instanceCache) clearScope(scopeID string) {
	c.scopedMu.Lock()
	defer c.scopedMu.Unlock()

	if scope, ok := c.scoped[scopeID]; ok {
		atomic.AddInt64(&c.stats.evictions, int64(len(scope)))
		delete(c.scoped, scopeID)
	}
}

// clear drops all cached instances.
func (c *instanceCache) clear() {
	c.singletonMu.Lock()
	evicted := len(c.singletons)
	c.singletons = make(map[Token]*cacheEntry)
	c.singletonMu.Unlock()

	c.scopedMu.Lock()
	for _, scope := range c.scoped {
		evicted += len(scope)
	}
	c.scoped = make(map[string]map[Token]*cacheEntry)
	c.scopedMu.Unlock()

	atomic.AddInt64(&c.stats.evictions, int64(evicted))
}

func (c *instanceCache) snapshot() CacheStats {
	c.singletonMu.Lock()
	singletons := len(c.singletons)
	c.singletonMu.Unlock()

	c.scopedMu.Lock()
	scopes := len(c.scoped)
	c.scopedMu.Unlock()

	return CacheStats{
		Hits:       atomic.LoadInt64(&c.stats.hits),
		Misses:     atomic.LoadInt64(&c.stats.misses),
		Evictions:  atomic.LoadInt64(&c.stats.evictions),
		Singletons: singletons,
		Scopes:     scopes,
	}
}

func (c *instanceCache) recordHit() {
	atomic.AddInt64(&c.stats.hits, 1)
}

func (c *instanceCache) recordMiss() {
	atomic.AddInt64(&c.stats.misses, 1)
}
