// Package cache is a typed, in-memory TTL cache for upstream data.
//
// Entries carry an absolute expiry and are never evicted for any other
// reason: memory grows with the number of distinct keys ever stored and
// is only reclaimed when expired entries are read or swept with
// DeleteExpired. That suits a proxy whose key space is bounded by what
// upstream lists, but it is not a general purpose LRU.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Metrics receives hit/miss notifications. NoopMetrics is the default.
type Metrics interface {
	Hit(cache string)
	Miss(cache string)
}

// NoopMetrics discards every notification.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)  {}
func (NoopMetrics) Miss(string) {}

var _ Metrics = NoopMetrics{}

// Cache is safe for concurrent use by multiple goroutines.
type Cache[V any] struct {
	name    string
	store   *gocache.Cache
	metrics Metrics
}

// New creates an empty cache. name labels its metrics.
func New[V any](name string, m Metrics) *Cache[V] {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Cache[V]{
		name: name,
		// no janitor: expiry is lazy and sweeps are driven by the owner
		store:   gocache.New(gocache.NoExpiration, 0),
		metrics: m,
	}
}

// Name returns the label the cache reports metrics under.
func (c *Cache[V]) Name() string { return c.name }

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	raw, ok := c.store.Get(key)
	if !ok {
		c.metrics.Miss(c.name)
		var zero V
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		c.metrics.Miss(c.name)
		return v, false
	}
	c.metrics.Hit(c.name)
	return v, true
}

// Set stores value under key, replacing any previous entry and its
// expiry. A non-positive ttl stores the entry without expiry.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(key, value, ttl)
}

// Len returns the number of resident entries, expired ones included
// until they are read or swept.
func (c *Cache[V]) Len() int {
	return c.store.ItemCount()
}

// DeleteExpired removes every expired entry.
func (c *Cache[V]) DeleteExpired() {
	c.store.DeleteExpired()
}

// Flush drops all entries.
func (c *Cache[V]) Flush() {
	c.store.Flush()
}
