// Package cache provides the optional Redis query-result cache.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache caches serialized search results per collection.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis via URL (redis://host:port/db).
func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis connection failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Get retrieves a value. Returns empty string if the key is not present.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Set stores a value with TTL.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SearchKey builds the cache key for one search request. The query and
// options are digested so arbitrary query strings stay within key limits.
func SearchKey(collection, query string, topK int, hybrid bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%t", query, topK, hybrid)))
	return fmt.Sprintf("search:%s:%x", collection, sum[:16])
}

// InvalidateCollection drops every cached search for a collection. The
// coordinator calls this after index writes.
func (c *RedisCache) InvalidateCollection(ctx context.Context, collection string) error {
	iter := c.client.Scan(ctx, 0, "search:"+collection+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
