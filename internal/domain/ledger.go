package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LedgerAccount identifies one of the fixed bookkeeping accounts.
type LedgerAccount string

// The chart of accounts is fixed; there is no user-defined account setup.
const (
	AccountCash       LedgerAccount = "cash"
	AccountSales      LedgerAccount = "sales"
	AccountTaxPayable LedgerAccount = "tax_payable"
	AccountInventory  LedgerAccount = "inventory"
	AccountExpenses   LedgerAccount = "expenses"
)

// EntryDirection is the debit or credit side of a ledger entry.
type EntryDirection string

// Possible entry directions
const (
	DirectionDebit  EntryDirection = "debit"
	DirectionCredit EntryDirection = "credit"
)

// Common validation errors for LedgerEntry
var (
	ErrEmptyEntryID       = errors.New("ledger entry ID cannot be empty")
	ErrInvalidAccount     = errors.New("invalid ledger account")
	ErrInvalidDirection   = errors.New("invalid ledger entry direction")
	ErrNonPositiveAmount  = errors.New("ledger entry amount must be greater than zero")
	ErrZeroOccurredAt     = errors.New("ledger entry occurred_at cannot be zero")
	ErrEntriesNotBalanced = errors.New("debits and credits must balance")
)

// LedgerEntry is a single debit or credit against one account. Entries are
// append-only; corrections are made with compensating entries, never by
// editing or deleting.
type LedgerEntry struct {
	ID          uuid.UUID      `json:"id"`
	Account     LedgerAccount  `json:"account"`
	Direction   EntryDirection `json:"direction"`
	AmountCents int64          `json:"amount_cents"`
	InvoiceID   uuid.NullUUID  `json:"invoice_id,omitempty"`
	Memo        string         `json:"memo,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewLedgerEntry creates a new LedgerEntry with a generated UUID.
// Returns an error if validation fails.
func NewLedgerEntry(
	account LedgerAccount,
	direction EntryDirection,
	amountCents int64,
	invoiceID uuid.NullUUID,
	memo string,
	occurredAt time.Time,
) (*LedgerEntry, error) {
	entry := &LedgerEntry{
		ID:          uuid.New(),
		Account:     account,
		Direction:   direction,
		AmountCents: amountCents,
		InvoiceID:   invoiceID,
		Memo:        memo,
		OccurredAt:  occurredAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the LedgerEntry has valid data.
// Returns an error if any field fails validation.
func (e *LedgerEntry) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEntryID
	}

	if !isValidAccount(e.Account) {
		return ErrInvalidAccount
	}

	if e.Direction != DirectionDebit && e.Direction != DirectionCredit {
		return ErrInvalidDirection
	}

	if e.AmountCents <= 0 {
		return ErrNonPositiveAmount
	}

	if e.OccurredAt.IsZero() {
		return ErrZeroOccurredAt
	}

	return nil
}

// CheckBalanced verifies that the debits and credits in a set of entries sum
// to the same amount. Postings are only ever written as balanced sets.
func CheckBalanced(entries []*LedgerEntry) error {
	var debits, credits int64
	for _, e := range entries {
		switch e.Direction {
		case DirectionDebit:
			debits += e.AmountCents
		case DirectionCredit:
			credits += e.AmountCents
		}
	}

	if debits != credits {
		return ErrEntriesNotBalanced
	}
	return nil
}

// isValidAccount checks if the given account is part of the chart of accounts.
func isValidAccount(account LedgerAccount) bool {
	switch account {
	case AccountCash, AccountSales, AccountTaxPayable, AccountInventory, AccountExpenses:
		return true
	default:
		return false
	}
}
