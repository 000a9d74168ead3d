package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrKeyNotFound indicates that a key is absent from the backend. Backends
// return it for a clean miss; anything else is a backend failure.
var ErrKeyNotFound = errors.New("cache key not found")

// Cache namespaces. Every cached value belongs to exactly one, and the
// namespace decides its TTL.
const (
	NamespaceKPI         = "kpi"
	NamespaceForecast    = "forecast"
	NamespaceChart       = "chart"
	NamespaceReport      = "report"
	NamespaceAggregation = "aggregation"
)

// Backend is the minimal storage contract the cache needs. Implementations
// must return ErrKeyNotFound for a missing key so the cache can distinguish a
// miss from an outage.
type Backend interface {
	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL, overwriting any
	// existing value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeletePattern removes all keys matching the glob pattern and returns
	// how many were deleted.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Sets          uint64 `json:"sets"`
	Evictions     uint64 `json:"evictions"`
	BackendErrors uint64 `json:"backend_errors"`
}

// Cache fronts a Backend with namespaced keys, policy-driven TTLs and
// graceful degradation. A disabled cache answers every read with a miss and
// silently drops writes, which lets callers stay oblivious to whether caching
// is on.
type Cache struct {
	backend Backend
	policy  Policy
	enabled bool
	logger  *slog.Logger

	hits          atomic.Uint64
	misses        atomic.Uint64
	sets          atomic.Uint64
	evictions     atomic.Uint64
	backendErrors atomic.Uint64
}

// New creates a Cache over the given backend. The TTL policy and the enabled
// flag come from cfg; there is no way to override TTLs per call.
func New(backend Backend, policy Policy, enabled bool, logger *slog.Logger) *Cache {
	return &Cache{
		backend: backend,
		policy:  policy,
		enabled: enabled,
		logger:  logger.With("component", "cache"),
	}
}

// Get retrieves the value stored under the namespaced key. The second return
// value reports whether the lookup was a hit. Backend failures are never
// surfaced: they count as misses so callers always fall through to
// recomputation.
func (c *Cache) Get(ctx context.Context, namespace string, subkeys ...string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	key := buildKey(namespace, subkeys...)
	value, err := c.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			c.misses.Add(1)
			return nil, false
		}
		c.backendErrors.Add(1)
		c.misses.Add(1)
		c.logger.WarnContext(ctx, "cache read failed, treating as miss",
			"key", key,
			"error", err)
		return nil, false
	}

	c.hits.Add(1)
	return value, true
}

// Set stores value under the namespaced key with the namespace's configured
// TTL, overwriting any previous value. A namespace without a TTL policy is
// refused rather than cached forever. Backend failures are logged and
// counted, never returned: losing a cache write must not fail the caller.
func (c *Cache) Set(ctx context.Context, namespace string, value []byte, subkeys ...string) {
	if !c.enabled {
		return
	}

	ttl, ok := c.policy.TTLFor(namespace)
	if !ok {
		c.logger.WarnContext(ctx, "no TTL policy for namespace, refusing to cache",
			"namespace", namespace)
		return
	}

	key := buildKey(namespace, subkeys...)
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		c.backendErrors.Add(1)
		c.logger.WarnContext(ctx, "cache write failed",
			"key", key,
			"error", err)
		return
	}

	c.sets.Add(1)
}

// InvalidatePattern deletes every key matching the glob pattern (relative to
// the cache prefix, e.g. "kpi:revenue*") and returns how many keys were
// removed. Unlike reads and writes, eviction failures are returned: a caller
// that cannot evict is serving stale data and should know.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if !c.enabled {
		return 0, nil
	}

	deleted, err := c.backend.DeletePattern(ctx, keyPrefix+":"+pattern)
	if err != nil {
		c.backendErrors.Add(1)
		return deleted, fmt.Errorf("invalidate pattern %q: %w", pattern, err)
	}

	c.evictions.Add(uint64(deleted))
	return deleted, nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Sets:          c.sets.Load(),
		Evictions:     c.evictions.Load(),
		BackendErrors: c.backendErrors.Load(),
	}
}

// Health reports backend connectivity. A disabled cache is healthy: the
// application runs correctly without it.
func (c *Cache) Health(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.backend.Ping(ctx)
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}
