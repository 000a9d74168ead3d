package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
)

// LedgerFilter narrows List results. Zero values mean "no constraint".
type LedgerFilter struct {
	Account domain.LedgerAccount
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// LedgerStore defines the interface for ledger entry persistence.
// The ledger is append-only: there are no update or delete operations, and
// corrections are written as compensating entries.
type LedgerStore interface {
	// CreateEntries saves a set of ledger entries atomically. The set must
	// balance (total debits equal total credits); unbalanced sets are
	// rejected with domain.ErrEntriesNotBalanced before touching the store.
	CreateEntries(ctx context.Context, entries []*domain.LedgerEntry) error

	// GetByID retrieves a ledger entry by its unique ID.
	// Returns ErrEntryNotFound if the entry does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)

	// List retrieves entries matching the filter, oldest first.
	List(ctx context.Context, filter LedgerFilter) ([]*domain.LedgerEntry, error)

	// ListByInvoice retrieves all entries referencing the given invoice,
	// oldest first.
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*domain.LedgerEntry, error)

	// AccountBalance returns the net debit balance (debits minus credits) of
	// an account across all entries up to and including asOf.
	AccountBalance(ctx context.Context, account domain.LedgerAccount, asOf time.Time) (int64, error)

	// WithTx returns a new LedgerStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) LedgerStore
}
