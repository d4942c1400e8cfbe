// Package cache provides a bounded LRU cache with optional expiry.
//
// The coordinator uses it to remember which tier last answered a lookup,
// so repeated reads of warm or archived records skip the tier fallthrough.
//
// Features:
// - LRU eviction for bounded memory
// - TTL expiration for stale entries
// - Thread-safe operations
// - Hit/miss statistics
//
// Usage:
//
//	hints := cache.NewLRU[string](10_000, 10*time.Minute)
//
//	if tier, ok := hints.Get(id); ok {
//		// look in tier first
//	}
//	hints.Put(id, "recent")
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxSize is used when NewLRU is given a non-positive size.
const DefaultMaxSize = 1000

// LRU is a thread-safe least-recently-used cache keyed by string.
//
// The cache uses:
// - Hash map for O(1) lookups
// - Doubly-linked list for LRU ordering
// - TTL for automatic expiration
type LRU[V any] struct {
	mu sync.Mutex

	maxSize int
	ttl     time.Duration
	enabled bool
	now     func() time.Time

	list  *list.List
	items map[string]*list.Element

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// NewLRU creates a cache holding at most maxSize entries, each valid for
// ttl (0 = no expiration).
func NewLRU[V any](maxSize int, ttl time.Duration) *LRU[V] {
	return newLRU[V](maxSize, ttl, time.Now)
}

func newLRU[V any](maxSize int, ttl time.Duration, now func() time.Time) *LRU[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &LRU[V]{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		now:     now,
		list:    list.New(),
		items:   make(map[string]*list.Element, maxSize),
	}
}

// Get returns the value under key if present and not expired, and marks
// it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok || !c.enabled {
		c.misses.Add(1)
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}
	c.list.MoveToFront(elem)
	c.hits.Add(1)
	return e.value, true
}

// Put stores value under key, evicting the least recently used entry when
// full. An existing entry is updated and its TTL restarted.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expires
		c.list.MoveToFront(elem)
		return
	}
	for c.list.Len() >= c.maxSize {
		c.removeElement(c.list.Back())
	}
	c.items[key] = c.list.PushFront(&entry[V]{key: key, value: value, expiresAt: expires})
}

// Remove deletes key.
func (c *LRU[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	clear(c.items)
}

// Len returns the number of cached entries, expired ones included until
// they are next touched.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// SetEnabled enables or disables the cache. Disabling clears it.
func (c *LRU[V]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.list.Init()
		clear(c.items)
	}
}

// Stats holds cache performance statistics.
type Stats struct {
	Size    int     // Current number of entries
	MaxSize int     // Maximum capacity
	Hits    uint64  // Number of cache hits
	Misses  uint64  // Number of cache misses
	HitRate float64 // Hit rate percentage (0-100)
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{Size: c.Len(), MaxSize: c.maxSize, Hits: hits, Misses: misses, HitRate: rate}
}

// removeElement removes elem. Caller must hold the lock.
func (c *LRU[V]) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}
