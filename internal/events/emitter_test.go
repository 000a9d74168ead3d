package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryEmitter(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEmitter(logger)
		event := NewDataChangeEvent("invoices", OpInsert, uuid.New())

		// Should not error even with no handlers
		err := emitter.EmitDataChange(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEmitter(logger)

		handler1 := &MockDataChangeHandler{}
		handler2 := &MockDataChangeHandler{}

		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := NewDataChangeEvent("products", OpUpdate, uuid.New())

		err := emitter.EmitDataChange(context.Background(), event)
		assert.NoError(t, err)

		// Verify both handlers received the event
		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEmitter(logger)

		successHandler := &MockDataChangeHandler{}
		failingHandler := &MockDataChangeHandler{
			HandlerError: errors.New("handler error"),
		}

		emitter.RegisterHandler(successHandler)
		emitter.RegisterHandler(failingHandler)

		event := NewDataChangeEvent("customers", OpDelete, uuid.New())

		// Should return an error from the failing handler
		err := emitter.EmitDataChange(context.Background(), event)
		assert.Error(t, err)
		assert.Equal(t, "handler error", err.Error())

		// Both handlers should still have received the event
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
	})
}
