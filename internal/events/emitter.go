package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEmitter is a simple implementation of the DataChangeEmitter
// interface that stores registered handlers in memory and dispatches events
// to them synchronously.
type InMemoryEmitter struct {
	handlers []DataChangeHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEmitter creates a new instance of InMemoryEmitter.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	return &InMemoryEmitter{
		handlers: make([]DataChangeHandler, 0),
		logger:   logger.With("component", "in_memory_emitter"),
	}
}

// RegisterHandler adds a new handler to receive data-change events.
func (e *InMemoryEmitter) RegisterHandler(handler DataChangeHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new data change handler", "handler_count", len(e.handlers))
}

// EmitDataChange publishes the given event to all registered handlers.
// If any handler returns an error, the event is still delivered to all other
// handlers, and the first error encountered is returned.
func (e *InMemoryEmitter) EmitDataChange(ctx context.Context, event *DataChangeEvent) error {
	e.mu.RLock()
	handlers := make([]DataChangeHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	e.logger.Debug("emitting data change event",
		"event_id", event.ID,
		"table", event.Table,
		"op", event.Op,
		"handler_count", len(handlers))

	if len(handlers) == 0 {
		e.logger.Warn("no handlers registered for data change event",
			"event_id", event.ID,
			"table", event.Table)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleDataChange(ctx, event); err != nil {
			e.logger.Error("handler failed to process data change event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"table", event.Table,
				"op", event.Op)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
