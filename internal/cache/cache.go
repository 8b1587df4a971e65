// Package cache stores aggregated results in memory for the lifetime of
// the process, invalidating them lazily by age.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Params are the named request parameters, already rendered as strings.
type Params map[string]string

// entry stores one cached value with its write time.
type entry struct {
	value    any
	storedAt time.Time
}

// Cache maps an (operation, params) key to the latest aggregated result.
// Entries are never evicted by size; a stale entry simply stops being
// returned until it is overwritten or the cache is cleared.
type Cache struct {
	enabled bool
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache. When enabled is false Get always misses.
func New(enabled bool, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		enabled: enabled,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache serves reads.
func (c *Cache) Enabled() bool { return c.enabled }

// Key renders the canonical cache key: the operation followed by the
// parameters sorted by name, each as key=value. Parameter order in the
// caller's map never changes the key.
func Key(operation string, params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(operation)
	b.WriteByte('_')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('_')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Get returns the cached value when caching is enabled and the entry is
// younger than the TTL.
func (c *Cache) Get(operation string, params Params) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	key := Key(operation, params)
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Put overwrites the entry for (operation, params). storedAt is the
// timestamp of the result being stored.
func (c *Cache) Put(operation string, params Params, value any, storedAt time.Time) {
	key := Key(operation, params)
	c.mu.Lock()
	c.items[key] = entry{value: value, storedAt: storedAt}
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
