// Package infra provides shared infrastructure components used across
// the application: bounded TTL caching and HTTP utilities.
package infra

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// --- Bounded TTL cache ---

// cacheEntry holds a cached value and the time it was written.
type cacheEntry struct {
	key        string
	value      any
	insertedAt time.Time
}

// Cache is a thread-safe, size-bounded in-memory cache with a fixed TTL.
// Entries expire lazily on read. When full, Set evicts the least-recently
// inserted entry; with a single TTL per cache that entry is also the first
// to expire.
type Cache struct {
	name     string
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insertion

	fills singleflight.Group
}

// NewCache creates a cache holding at most capacity entries for ttl each.
func NewCache(name string, capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		name:     name,
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Name returns the cache's label.
func (c *Cache) Name() string { return c.name }

// Capacity returns the maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

// TTL returns the per-entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a value. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.removeElement(el)
		return nil, false
	}
	return e.value, true
}

// Set stores a value, overwriting any existing entry for key. An overwrite
// counts as a fresh insertion.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*cacheEntry)
		e.value = value
		e.insertedAt = now
		c.order.MoveToBack(el)
		return
	}

	for c.order.Len() >= c.capacity {
		c.removeElement(c.order.Front())
	}
	c.entries[key] = c.order.PushBack(&cacheEntry{key: key, value: value, insertedAt: now})
}

// Load returns the cached value for key, or calls fill to produce it.
// Concurrent Loads of the same key share one fill. The value is stored only
// when fill reports store=true.
func (c *Cache) Load(key string, fill func() (value any, store bool)) any {
	v, _ := c.LoadContext(context.Background(), key, fill)
	return v
}

// LoadContext is Load for callers that may give up. A caller whose ctx is
// done stops waiting and gets ctx.Err(); the shared fill keeps running for
// the remaining callers, so fill must not depend on any one caller's ctx.
func (c *Cache) LoadContext(ctx context.Context, key string, fill func() (value any, store bool)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	ch := c.fills.DoChan(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, store := fill()
		if store {
			c.Set(key, v)
		}
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	c.mu.Unlock()
}

// Flush removes all entries from the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// removeElement drops el from both indexes. Must be called with mu held.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*cacheEntry)
	delete(c.entries, e.key)
	c.order.Remove(el)
}

// Key builds a stable cache key from an operation name, a symbol and any
// extra discriminators (lookback window, date, exchange).
func Key(op, symbol string, extra ...any) string {
	parts := make([]string, 0, 2+len(extra))
	parts = append(parts, op, symbol)
	for _, x := range extra {
		parts = append(parts, fmt.Sprint(x))
	}
	return strings.Join(parts, "\x1f")
}
