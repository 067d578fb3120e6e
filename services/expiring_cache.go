package services

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// ExpiringCache is an LRU cache holding at most maxEntries values, each of
// which also expires once it has not been read for ttl. It is safe for
// concurrent use.
type ExpiringCache[V any] struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type expiringEntry[V any] struct {
	value    V
	lastSeen time.Time
}

// NewExpiringCache builds a cache. A non-positive ttl disables expiry.
func NewExpiringCache[V any](maxEntries int, ttl time.Duration) *ExpiringCache[V] {
	return &ExpiringCache[V]{
		cache: lru.New(maxEntries),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the live value for key and refreshes its expiry.
func (c *ExpiringCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

// GetOrCreate returns the live value for key, storing create() first when
// there is none.
func (c *ExpiringCache[V]) GetOrCreate(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.get(key); ok {
		return v
	}
	v := create()
	c.cache.Add(key, &expiringEntry[V]{value: v, lastSeen: c.now()})
	return v
}

func (c *ExpiringCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, &expiringEntry[V]{value: value, lastSeen: c.now()})
}

func (c *ExpiringCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Len counts stored entries, including expired ones not yet dropped.
func (c *ExpiringCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *ExpiringCache[V]) get(key string) (V, bool) {
	var zero V
	raw, ok := c.cache.Get(key)
	if !ok {
		return zero, false
	}
	e := raw.(*expiringEntry[V])
	now := c.now()
	if c.ttl > 0 && now.Sub(e.lastSeen) > c.ttl {
		c.cache.Remove(key)
		return zero, false
	}
	e.lastSeen = now
	return e.value, true
}
