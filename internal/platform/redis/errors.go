package redis

import "errors"

// Predefined errors for Redis connection handling.
var (
	// ErrEmptyConnectionURL indicates that the Redis connection URL is empty.
	ErrEmptyConnectionURL = errors.New("empty redis connection URL")

	// ErrFailedToParseConnectionURL indicates that the Redis connection URL could not be parsed.
	ErrFailedToParseConnectionURL = errors.New("failed to parse redis connection URL")

	// ErrRedisNotReady indicates that the Redis server did not respond to PING
	// within the configured number of attempts.
	ErrRedisNotReady = errors.New("redis server is not ready")

	// ErrHealthcheckFailed indicates that a healthcheck round-trip failed.
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
