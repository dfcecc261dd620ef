package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache key prefixes.
const (
	// CacheKeyCustomerDetails is the prefix for aggregated views: customer_details:{mobile}
	CacheKeyCustomerDetails = "customer_details"
	// CacheKeyCircuit is the prefix for breaker mirrors: circuit:{dependency}
	CacheKeyCircuit = "circuit"
)

var (
	// ErrCacheNotFound is returned when a cache key does not exist.
	ErrCacheNotFound = errors.New("cache: key not found")
	// ErrRedisUnavailable is returned by Redis backed components built without a client.
	ErrRedisUnavailable = errors.New("redis client is nil")
)

// CacheClient is a JSON value cache. Implementations must be thread-safe.
type CacheClient interface {
	// Get deserializes the value at key into dest. Returns ErrCacheNotFound
	// if the key doesn't exist.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisCache struct {
	client *redis.Client
}

// NewCacheClient creates a Redis backed cache client. With a nil client
// every operation fails with ErrRedisUnavailable.
func NewCacheClient(rdb *redis.Client) CacheClient {
	return &redisCache{client: rdb}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return fmt.Errorf("cache: %w", ErrRedisUnavailable)
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache: failed to get key %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("cache: failed to unmarshal value for key %s: %w", key, err)
	}

	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return fmt.Errorf("cache: %w", ErrRedisUnavailable)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value for key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to set key %s: %w", key, err)
	}

	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if c.client == nil {
		return fmt.Errorf("cache: %w", ErrRedisUnavailable)
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete key %s: %w", key, err)
	}

	return nil
}

// BuildCacheKey joins a prefix and parts with ":".
//
//	BuildCacheKey(CacheKeyCustomerDetails, "9876543210") -> "customer_details:9876543210"
func BuildCacheKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}
