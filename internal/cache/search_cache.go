// Package cache stores rendered search results in Redis so repeated queries
// skip the provider round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/encyclopedai/encyclopedai/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "encyclopedai:search:"
	generationKey = keyPrefix + "generation"
)

// SearchCache caches search results by normalized query
type SearchCache interface {
	Get(ctx context.Context, query string) ([]models.SearchResult, bool, error)
	Set(ctx context.Context, query string, results []models.SearchResult) error
	// Invalidate drops every cached result, e.g. after the catalogue changes
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// RedisSearchCache implements SearchCache on Redis. Entries are namespaced by
// a generation counter so invalidation is a single INCR.
type RedisSearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSearchCache creates a cache from a redis:// URL
func NewRedisSearchCache(url string, ttl time.Duration) (*RedisSearchCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisSearchCacheWithClient(redis.NewClient(opts), ttl), nil
}

// NewRedisSearchCacheWithClient wraps an existing client
func NewRedisSearchCacheWithClient(client *redis.Client, ttl time.Duration) *RedisSearchCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisSearchCache{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (c *RedisSearchCache) Close() error {
	return c.client.Close()
}

func (c *RedisSearchCache) key(ctx context.Context, query string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return keyPrefix + gen + ":" + hex.EncodeToString(sum[:]), nil
}

func (c *RedisSearchCache) Get(ctx context.Context, query string) ([]models.SearchResult, bool, error) {
	key, err := c.key(ctx, query)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var results []models.SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		// Drop entries written by an incompatible version
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return results, true, nil
}

func (c *RedisSearchCache) Set(ctx context.Context, query string, results []models.SearchResult) error {
	key, err := c.key(ctx, query)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *RedisSearchCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *RedisSearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NoopSearchCache never stores anything
type NoopSearchCache struct{}

func (NoopSearchCache) Get(context.Context, string) ([]models.SearchResult, bool, error) {
	return nil, false, nil
}
func (NoopSearchCache) Set(context.Context, string, []models.SearchResult) error { return nil }
func (NoopSearchCache) Invalidate(context.Context) error                         { return nil }
func (NoopSearchCache) Ping(context.Context) error                               { return nil }

// NormalizeQuery lowercases and collapses whitespace so trivially different
// spellings of a query share an entry
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
