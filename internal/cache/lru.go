// Package cache implements the Caching Layer (spec.md §4.4's downstream
// consumer, C9): a small set of LRU+TTL caches keyed by query fingerprint
// (package fingerprint) that avoid re-running the Translation Pipeline and
// re-resolving row descriptions for statements seen before, all invalidated
// en bloc whenever a DDL statement changes the schema.
//
// The single generic LRU type parameterized over value type follows the
// teacher's core/registry package: one generic Registry[T] under the hood.
// Callers instantiate LRU directly with their value type; this package
// defines no named wrapper types.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// LRU is a fixed-capacity, TTL-expiring cache safe for concurrent use.
// Eviction is strict LRU among non-expired entries; an expired entry is
// treated as a miss and evicted lazily on lookup.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
}

// NewLRU builds an LRU cache holding at most capacity entries, each valid
// for ttl after insertion. A zero ttl means entries never expire on their
// own (only eviction and Clear remove them).
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached value for key, or ok=false on a miss or expiry.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.ttl > 0 && c.now().After(ent.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return ent.value, true
}

// Put inserts or replaces key's value, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Time{}
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		el.Value.(*entry[V]).expiresAt = expiresAt
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	if c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[V]).key)
		}
	}
}

// Delete removes key, if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Clear empties the cache, used on DDL invalidation (spec.md §4.4: "All
// caches are invalidated en bloc on any DDL statement").
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
}

// Len reports the current entry count, including not-yet-expired entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
