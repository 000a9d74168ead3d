package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/events"
)

// ErrInvalidOperation indicates a data-change notification carried an
// operation outside INSERT, UPDATE, DELETE.
var ErrInvalidOperation = errors.New("invalid data change operation")

// Invalidator evicts cache entries in response to data changes. It consumes
// events from the emitter and translates each into pattern evictions
// according to a static rule table.
type Invalidator struct {
	cache  *Cache
	rules  map[string][]string
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator over the given cache and rule table.
// Pass DefaultRules() unless a test needs a narrower table.
func NewInvalidator(cache *Cache, rules map[string][]string, logger *slog.Logger) *Invalidator {
	return &Invalidator{
		cache:  cache,
		rules:  rules,
		logger: logger.With("component", "cache_invalidator"),
	}
}

// OnDataChange evicts every pattern the rule table associates with the given
// table. An operation outside the known set is rejected without evicting
// anything; a table without rules is a no-op. Eviction failures on one
// pattern do not stop the remaining patterns, and the first failure is
// returned.
func (i *Invalidator) OnDataChange(ctx context.Context, table, op string, recordID uuid.UUID) error {
	if !events.ValidOp(op) {
		i.logger.ErrorContext(ctx, "rejecting data change with unknown operation",
			"table", table,
			"op", op,
			"record_id", recordID)
		return fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	patterns, ok := i.rules[table]
	if !ok {
		i.logger.DebugContext(ctx, "no invalidation rules for table", "table", table)
		return nil
	}

	var (
		evicted  int
		firstErr error
	)
	for _, pattern := range patterns {
		deleted, err := i.cache.InvalidatePattern(ctx, pattern)
		if err != nil {
			i.logger.ErrorContext(ctx, "pattern invalidation failed",
				"table", table,
				"pattern", pattern,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		evicted += deleted
	}

	i.logger.DebugContext(ctx, "processed data change",
		"table", table,
		"op", op,
		"evicted", evicted)
	return firstErr
}

// HandleDataChange implements events.DataChangeHandler so the Invalidator can
// be registered directly on the emitter.
func (i *Invalidator) HandleDataChange(ctx context.Context, event *events.DataChangeEvent) error {
	return i.OnDataChange(ctx, event.Table, event.Op, event.RecordID)
}

// Ensure Invalidator implements the events.DataChangeHandler interface
var _ events.DataChangeHandler = (*Invalidator)(nil)
