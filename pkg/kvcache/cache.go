package kvcache

import (
	"context"
	"sync"
	"time"
)

// Cache is a string key-value cache with per-entry TTL. It is a
// correctness-adjacent optimization, never a source of truth: every consumer
// recomputes on miss, so a NoOp implementation changes latency only.
type Cache interface {
	// Get retrieves a value by key.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration)

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string)

	// Close releases any resources held by the cache.
	Close() error
}

// GetOrCompute implements the read-through pattern: return the cached value,
// or compute, store and return it. Compute errors are returned without caching.
func GetOrCompute(ctx context.Context, c Cache, key string, ttl time.Duration, compute func(ctx context.Context) (string, error)) (string, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	v, err := compute(ctx)
	if err != nil {
		return "", err
	}

	c.Set(ctx, key, v, ttl)
	return v, nil
}

// DefaultCacheSize is the default maximum number of items in the in-memory cache.
const DefaultCacheSize = 10000

// inMemoryCache is the default in-memory implementation with TTL expiry and
// LRU eviction.
type inMemoryCache struct {
	mu      sync.Mutex
	items   map[string]cacheItem
	lru     []string
	maxSize int
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

type cacheItem struct {
	value     string
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache with automatic cleanup.
func NewInMemoryCache() Cache {
	return NewInMemoryCacheWithSize(DefaultCacheSize)
}

// NewInMemoryCacheWithSize creates an in-memory cache with a size limit.
func NewInMemoryCacheWithSize(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	c := &inMemoryCache{
		items:   make(map[string]cacheItem),
		lru:     make([]string, 0, maxSize),
		maxSize: maxSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go c.cleanup()

	return c
}

func (c *inMemoryCache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return "", false
	}

	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		c.removeLRU(key)
		return "", false
	}

	c.updateLRU(key)
	return item.value, true
}

func (c *inMemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		if len(c.lru) > 0 {
			evictKey := c.lru[0]
			delete(c.items, evictKey)
			c.lru = c.lru[1:]
		}
	}

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.updateLRU(key)
}

func (c *inMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.removeLRU(key)
}

// cleanup periodically removes expired items.
func (c *inMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *inMemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			c.removeLRU(key)
		}
	}
}

// updateLRU moves the key to the end of the queue (most recently used).
func (c *inMemoryCache) updateLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append(c.lru, key)
}

func (c *inMemoryCache) removeLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			return
		}
	}
}

func (c *inMemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// noOpCache caches nothing. Useful for tests and for disabling caching
// without touching consumer code paths.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (n *noOpCache) Get(ctx context.Context, key string) (string, bool)         { return "", false }
func (n *noOpCache) Set(ctx context.Context, key, value string, _ time.Duration) {}
func (n *noOpCache) Delete(ctx context.Context, key string)                      {}
func (n *noOpCache) Close() error                                                { return nil }
