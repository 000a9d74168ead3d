package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Database operations carried by a DataChangeEvent. The set is closed:
// consumers reject anything else.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ValidOp reports whether op is one of the recognized data-change operations.
func ValidOp(op string) bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// DataChangeEvent signals that a row in the given table was written. Services
// emit one after a successful commit so that downstream consumers (cache
// invalidation, audit hooks) can react without the service knowing about them.
type DataChangeEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Table is the database table that changed (e.g. "invoices")
	Table string `json:"table"`

	// Op is the operation performed: OpInsert, OpUpdate or OpDelete
	Op string `json:"op"`

	// RecordID identifies the affected row
	RecordID uuid.UUID `json:"record_id"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewDataChangeEvent creates a DataChangeEvent for the given table, operation
// and record. It does not validate op; consumers decide how to treat unknown
// operations.
func NewDataChangeEvent(table, op string, recordID uuid.UUID) *DataChangeEvent {
	return &DataChangeEvent{
		ID:         uuid.New(),
		Table:      table,
		Op:         op,
		RecordID:   recordID,
		OccurredAt: time.Now().UTC(),
	}
}

// DataChangeHandler defines an interface for components that react to data
// changes. Handlers are responsible for processing events and taking
// appropriate actions.
type DataChangeHandler interface {
	// HandleDataChange processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleDataChange(ctx context.Context, event *DataChangeEvent) error
}

// DataChangeEmitter defines an interface for components that publish data
// changes. This allows services to announce writes without direct knowledge
// of the consumers.
type DataChangeEmitter interface {
	// EmitDataChange publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitDataChange(ctx context.Context, event *DataChangeEvent) error
}
