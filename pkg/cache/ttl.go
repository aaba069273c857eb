package cache

import (
	"container/list"
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake to drive expiry.
type Clock func() time.Time

type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTL is a thread-safe LRU cache whose entries also expire after a fixed
// time-to-live. Expired entries are dropped lazily on access and before
// capacity eviction.
type TTL[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	now      Clock
	items    map[K]*list.Element
	eviction *list.List
	mu       sync.Mutex
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock replaces time.Now as the source of time.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewTTL creates a cache holding at most capacity entries, each valid for ttl.
// Panics if capacity or ttl is not positive.
func NewTTL[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *TTL[K, V] {
	if capacity <= 0 {
		panic("cache capacity must be positive")
	}
	if ttl <= 0 {
		panic("cache ttl must be positive")
	}
	o := &options{clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &TTL[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      o.clock,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// Get returns a live value and marks it as recently used.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := elem.Value.(*ttlEntry[K, V])
	if !c.now().Before(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}
	c.eviction.MoveToFront(elem)
	return entry.value, true
}

// Set stores value under key, resetting its expiry.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.eviction.MoveToFront(elem)
		return
	}

	c.items[key] = c.eviction.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	if c.eviction.Len() > c.capacity {
		c.evict()
	}
}

// GetOrSet returns the live value for key or stores the result of fn.
// fn runs under the cache lock and must not call back into the cache.
func (c *TTL[K, V]) GetOrSet(key K, fn func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		if now.Before(entry.expiresAt) {
			c.eviction.MoveToFront(elem)
			return entry.value
		}
		c.removeElement(elem)
	}

	value := fn()
	c.items[key] = c.eviction.PushFront(&ttlEntry[K, V]{key: key, value: value, expiresAt: now.Add(c.ttl)})
	if c.eviction.Len() > c.capacity {
		c.evict()
	}
	return value
}

// Delete removes key. It reports whether the key was present.
func (c *TTL[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok {
		c.removeElement(elem)
	}
	return ok
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// evict drops expired entries from the tail first, then the least recently used.
func (c *TTL[K, V]) evict() {
	now := c.now()
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*ttlEntry[K, V]).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
	for c.eviction.Len() > c.capacity {
		c.removeElement(c.eviction.Back())
	}
}

func (c *TTL[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	delete(c.items, elem.Value.(*ttlEntry[K, V]).key)
}
