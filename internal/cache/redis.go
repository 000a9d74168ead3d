package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize is the COUNT hint passed to SCAN when matching patterns.
const scanBatchSize = 100

// RedisBackend implements Backend on a Redis client. Pattern deletion uses
// SCAN rather than KEYS so eviction never blocks the server.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an established Redis client.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get retrieves the value stored under key, mapping redis.Nil to
// ErrKeyNotFound.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores value under key with the given TTL.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN and deletes every key matching
// the glob pattern, returning the number of keys removed.
func (b *RedisBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := b.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis scan %q: %w", pattern, err)
		}

		if len(keys) > 0 {
			n, err := b.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis delete matched keys: %w", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping verifies connectivity with a PING round-trip.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Ensure RedisBackend implements the Backend interface
var _ Backend = (*RedisBackend)(nil)
