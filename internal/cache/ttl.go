// Package cache provides the small in-memory caches the pipeline leans on:
// a capacity+TTL cache and a bounded FIFO recent-set.
package cache

import (
	"sync"
	"time"
)

// TTL is a size-bounded cache whose entries expire after a fixed duration.
// Expired entries are evicted on read; when full, the oldest entry is evicted
// to make room. Safe for concurrent use.
type TTL[V any] struct {
	mu       sync.Mutex
	data     map[string]ttlEntry[V]
	order    []string // insertion order for capacity eviction
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// NewTTL creates a cache holding at most capacity entries for ttl each.
func NewTTL[V any](capacity int, ttl time.Duration) *TTL[V] {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TTL[V]{
		data:     make(map[string]ttlEntry[V]),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(entry.expires) {
		delete(c.data, key)
		c.removeFromOrder(key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

// removeFromOrder drops the key's slot in the eviction order. Without this
// a re-Set key would appear twice and capacity eviction could pop the stale
// slot and delete the fresh entry. Caller must hold c.mu.
func (c *TTL[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Set stores a value, evicting the oldest entry when at capacity.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		for len(c.data) >= c.capacity && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.data, oldest)
		}
		c.order = append(c.order, key)
	}
	c.data[key] = ttlEntry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// Len returns the number of entries including any not-yet-evicted expired ones.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
