package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache wraps a Lookup with a Redis-backed cache so repeated
// evidence saves against the same resource don't hammer the KB.
type RedisCache struct {
	client *redis.Client
	next   Lookup
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a cache in front of next.
func NewRedisCache(redisURL string, next Lookup, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, next, ttl), nil
}

// NewRedisCacheWithClient creates a cache from an existing Redis client.
func NewRedisCacheWithClient(client *redis.Client, next Lookup, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: "kb:resource:",
	}
}

func (c *RedisCache) key(resourceID string) string {
	return c.prefix + resourceID
}

// Resolve checks the cache first, then falls through to the wrapped
// lookup. Cache failures are logged and ignored; the KB answer wins.
func (c *RedisCache) Resolve(ctx context.Context, resourceID string) (Resource, error) {
	jsonData, err := c.client.Get(ctx, c.key(resourceID)).Result()
	if err == nil {
		var r Resource
		if err := json.Unmarshal([]byte(jsonData), &r); err == nil {
			return r, nil
		}
	} else if err != redis.Nil {
		log.Printf("kb: cache read %s: %v", resourceID, err)
	}

	r, err := c.next.Resolve(ctx, resourceID)
	if err != nil {
		return Resource{}, err
	}

	if data, err := json.Marshal(r); err == nil {
		if err := c.client.Set(ctx, c.key(resourceID), data, c.ttl).Err(); err != nil {
			log.Printf("kb: cache write %s: %v", resourceID, err)
		}
	}
	return r, nil
}

// Invalidate drops a cached resource, forcing the next Resolve to hit
// the KB.
func (c *RedisCache) Invalidate(ctx context.Context, resourceID string) error {
	if err := c.client.Del(ctx, c.key(resourceID)).Err(); err != nil {
		return fmt.Errorf("invalidate kb cache: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
