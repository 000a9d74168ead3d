package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurumhq/aurum-api/internal/config"
)

const (
	// connectAttempts is how many times Connect pings the server before
	// giving up. Covers the window where the container is up but not yet
	// accepting commands.
	connectAttempts = 5

	// retryInterval is the pause between failed ping attempts.
	retryInterval = 500 * time.Millisecond
)

// Connect opens a Redis client from the given configuration and verifies the
// server is reachable with a bounded ping/retry loop. The returned client is
// ready for use; the caller owns closing it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyConnectionURL
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnectionURL, err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = time.Duration(cfg.DialTimeoutSeconds) * time.Second

	client := redis.NewClient(opts)

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(retryInterval):
		}
	}

	_ = client.Close()
	return nil, errors.Join(ErrRedisNotReady, fmt.Errorf("after %d attempts: %w", connectAttempts, lastErr))
}

// Healthcheck returns a probe function suitable for readiness endpoints. The
// probe performs a PING round-trip against the given client.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
