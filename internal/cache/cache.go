// Package cache provides a small in-memory TTL cache. A stored zero value
// (for pointer types, nil) is a valid entry, which lets callers cache
// negative lookups.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value V
	ts    time.Time
}

type order struct {
	key string
	ts  time.Time
}

// Cache maps keys to values that expire ttl after they were stored.
// Expired entries are never returned but stay in memory until the key is
// stored again or capacity compaction drops them.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]entry[V]
	order    []order
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	capacity int
	now      func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCapacity bounds the number of entries; the oldest stores are dropped
// first. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// New creates a cache whose entries live for ttl. A non-positive ttl
// defaults to one hour.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if o.capacity < 0 {
		o.capacity = 0
	}
	return &Cache[V]{
		items:    make(map[string]entry[V]),
		capacity: o.capacity,
		ttl:      ttl,
		now:      o.now,
	}
}

// Get returns the value stored under key if it is younger than the ttl.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && now.Sub(e.ts) < c.ttl {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Has reports whether key holds a live entry.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key, replacing any previous entry.
func (c *Cache[V]) Set(key string, value V) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{value: value, ts: now}
	if c.capacity > 0 {
		c.order = append(c.order, order{key: key, ts: now})
		c.compact(now)
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
	c.order = nil
}

func (c *Cache[V]) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if e, ok := c.items[oldest.key]; ok && e.ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}
