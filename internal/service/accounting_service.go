package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/events"
	"github.com/aurumhq/aurum-api/internal/store"
)

// LedgerEntryInput describes one side of a manual journal entry. A zero
// OccurredAt defaults to the time of recording.
type LedgerEntryInput struct {
	Account     domain.LedgerAccount
	Direction   domain.EntryDirection
	AmountCents int64
	Memo        string
	OccurredAt  time.Time
}

// AccountBalance is one line of a trial balance: the net debit position of a
// single account (debits minus credits, so asset accounts read positive and
// income accounts negative).
type AccountBalance struct {
	Account      domain.LedgerAccount `json:"account"`
	BalanceCents int64                `json:"balance_cents"`
}

// TrialBalance lists every account's net position as of a point in time.
// NetCents is the sum across accounts and must be zero when the books
// balance.
type TrialBalance struct {
	AsOf     time.Time        `json:"as_of"`
	Accounts []AccountBalance `json:"accounts"`
	NetCents int64            `json:"net_cents"`
}

// AccountingService exposes the double-entry ledger: manual journal entries,
// entry listings, and balance reporting. Sale and void postings are written
// by the invoice service; this service never touches invoices.
type AccountingService interface {
	// RecordEntries writes a manual journal entry: a set of at least two
	// lines whose debits and credits balance. Unbalanced sets are rejected
	// with domain.ErrEntriesNotBalanced and nothing is written.
	RecordEntries(ctx context.Context, inputs []LedgerEntryInput) ([]*domain.LedgerEntry, error)

	// GetEntry retrieves a single ledger entry by ID.
	// Returns store.ErrEntryNotFound if the entry does not exist.
	GetEntry(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)

	// ListEntries retrieves entries matching the filter, oldest first.
	ListEntries(ctx context.Context, filter store.LedgerFilter) ([]*domain.LedgerEntry, error)

	// EntriesForInvoice retrieves every entry posted against an invoice,
	// oldest first. A completed invoice has its sale postings; a voided one
	// has the reversals as well.
	EntriesForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*domain.LedgerEntry, error)

	// Balance returns the net debit balance of one account as of the given
	// time.
	Balance(ctx context.Context, account domain.LedgerAccount, asOf time.Time) (int64, error)

	// TrialBalance returns every account's net position as of the given
	// time. A nonzero NetCents means the ledger holds an unbalanced write
	// and needs investigation.
	TrialBalance(ctx context.Context, asOf time.Time) (*TrialBalance, error)
}

// accountingServiceImpl implements the AccountingService interface.
type accountingServiceImpl struct {
	ledgerStore store.LedgerStore
	emitter     events.DataChangeEmitter
	logger      *slog.Logger
}

// NewAccountingService creates a new AccountingService.
func NewAccountingService(
	ledgerStore store.LedgerStore,
	emitter events.DataChangeEmitter,
	logger *slog.Logger,
) (AccountingService, error) {
	if ledgerStore == nil {
		return nil, domain.NewValidationError("ledgerStore", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &accountingServiceImpl{
		ledgerStore: ledgerStore,
		emitter:     emitter,
		logger:      logger.With("component", "accounting_service"),
	}, nil
}

func (s *accountingServiceImpl) RecordEntries(
	ctx context.Context,
	inputs []LedgerEntryInput,
) ([]*domain.LedgerEntry, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("invalid journal entry: %w", domain.ErrEntriesNotBalanced)
	}

	now := time.Now().UTC()
	entries := make([]*domain.LedgerEntry, 0, len(inputs))
	for _, in := range inputs {
		occurredAt := in.OccurredAt
		if occurredAt.IsZero() {
			occurredAt = now
		}

		entry, err := domain.NewLedgerEntry(
			in.Account, in.Direction, in.AmountCents, uuid.NullUUID{}, in.Memo, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("invalid journal entry line: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := domain.CheckBalanced(entries); err != nil {
		return nil, fmt.Errorf("invalid journal entry: %w", err)
	}

	if err := s.ledgerStore.CreateEntries(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to record journal entry: %w", err)
	}

	s.logger.InfoContext(ctx, "journal entry recorded", "lines", len(entries))
	for _, entry := range entries {
		s.emitChange(ctx, events.OpInsert, entry.ID)
	}

	return entries, nil
}

func (s *accountingServiceImpl) GetEntry(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.ledgerStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve ledger entry: %w", err)
	}
	return entry, nil
}

func (s *accountingServiceImpl) ListEntries(
	ctx context.Context,
	filter store.LedgerFilter,
) ([]*domain.LedgerEntry, error) {
	entries, err := s.ledgerStore.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *accountingServiceImpl) EntriesForInvoice(
	ctx context.Context,
	invoiceID uuid.UUID,
) ([]*domain.LedgerEntry, error) {
	entries, err := s.ledgerStore.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for invoice: %w", err)
	}
	return entries, nil
}

func (s *accountingServiceImpl) Balance(
	ctx context.Context,
	account domain.LedgerAccount,
	asOf time.Time,
) (int64, error) {
	balance, err := s.ledgerStore.AccountBalance(ctx, account, asOf)
	if err != nil {
		return 0, fmt.Errorf("failed to compute account balance: %w", err)
	}
	return balance, nil
}

func (s *accountingServiceImpl) TrialBalance(ctx context.Context, asOf time.Time) (*TrialBalance, error) {
	accounts := []domain.LedgerAccount{
		domain.AccountCash,
		domain.AccountSales,
		domain.AccountTaxPayable,
		domain.AccountInventory,
		domain.AccountExpenses,
	}

	report := &TrialBalance{
		AsOf:     asOf,
		Accounts: make([]AccountBalance, 0, len(accounts)),
	}
	for _, account := range accounts {
		balance, err := s.ledgerStore.AccountBalance(ctx, account, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to compute balance for %s: %w", account, err)
		}
		report.Accounts = append(report.Accounts, AccountBalance{
			Account:      account,
			BalanceCents: balance,
		})
		report.NetCents += balance
	}

	if report.NetCents != 0 {
		s.logger.WarnContext(ctx, "trial balance does not net to zero",
			"as_of", asOf,
			"net_cents", report.NetCents)
	}

	return report, nil
}

func (s *accountingServiceImpl) emitChange(ctx context.Context, op string, id uuid.UUID) {
	event := events.NewDataChangeEvent("ledger_entries", op, id)
	if err := s.emitter.EmitDataChange(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit data change event",
			"table", "ledger_entries",
			"op", op,
			"error", err)
	}
}
