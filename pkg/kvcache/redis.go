package kvcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache is a Redis-backed Cache. Redis errors degrade to cache misses:
// an unavailable cache must never fail a resolver call.
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis-backed cache. The prefix namespaces keys so
// multiple services can share one Redis database.
func NewRedisCache(client *redis.Client, prefix string) Cache {
	if client == nil {
		panic("kvcache: redis client is required")
	}
	return &redisCache{client: client, prefix: prefix}
}

func (c *redisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		// redis.Nil and transport errors alike degrade to a miss.
		return "", false
	}
	return v, true
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	_ = c.client.Del(ctx, c.key(key)).Err()
}

func (c *redisCache) Close() error {
	// The client is owned by the caller; nothing to release here.
	return nil
}
