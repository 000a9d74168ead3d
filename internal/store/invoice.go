package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
)

// InvoiceFilter narrows List results. Zero values mean "no constraint".
type InvoiceFilter struct {
	Status     domain.InvoiceStatus
	CustomerID uuid.UUID
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// InvoiceStore defines the interface for invoice data persistence.
// Invoices and their line items are always written and read together.
type InvoiceStore interface {
	// Create saves a new invoice and all of its line items.
	// Returns ErrInvoiceNumberExists if the number is already taken.
	// Returns validation errors from the domain Invoice if data is invalid.
	Create(ctx context.Context, invoice *domain.Invoice) error

	// GetByID retrieves an invoice with its line items by its unique ID.
	// Returns ErrInvoiceNotFound if the invoice does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)

	// GetByNumber retrieves an invoice with its line items by its number.
	// Returns ErrInvoiceNotFound if the invoice does not exist.
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)

	// List retrieves invoices matching the filter, newest first, with their
	// line items.
	List(ctx context.Context, filter InvoiceFilter) ([]*domain.Invoice, error)

	// Update persists changes to an invoice's status, totals, and timestamps.
	// Line items are immutable once created; drafts replace their item set
	// through Create-time semantics in the service layer.
	// Returns ErrInvoiceNotFound if the invoice does not exist.
	Update(ctx context.Context, invoice *domain.Invoice) error

	// ReplaceItems replaces the full set of line items of a draft invoice.
	// Returns ErrInvoiceNotFound if the invoice does not exist.
	ReplaceItems(ctx context.Context, invoice *domain.Invoice) error

	// NextNumber reserves and returns the next value of the invoice number
	// sequence. Numbers are unique and monotonic but may have gaps when a
	// draft is abandoned.
	NextNumber(ctx context.Context) (int64, error)

	// WithTx returns a new InvoiceStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) InvoiceStore
}
