package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/store"
)

// ledgerColumns is the column list shared by every ledger SELECT.
const ledgerColumns = `id, account, direction, amount_cents, invoice_id, memo,
	occurred_at, created_at`

// PostgresLedgerStore implements the store.LedgerStore interface
// using a PostgreSQL database as the storage backend.
type PostgresLedgerStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLedgerStore creates a new PostgreSQL implementation of the LedgerStore
// interface. If log is nil, the process default logger is used.
func NewPostgresLedgerStore(db store.DBTX, log *slog.Logger) *PostgresLedgerStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresLedgerStore{
		db:     db,
		logger: log.With(slog.String("component", "ledger_store")),
	}
}

// Ensure PostgresLedgerStore implements store.LedgerStore interface
var _ store.LedgerStore = (*PostgresLedgerStore)(nil)

// CreateEntries implements store.LedgerStore.CreateEntries
// The set must balance; unbalanced sets are rejected before any row is written.
func (s *PostgresLedgerStore) CreateEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			log.Warn("ledger entry validation failed",
				slog.String("error", err.Error()),
				slog.String("entry_id", entry.ID.String()))
			return err
		}
	}

	if err := domain.CheckBalanced(entries); err != nil {
		log.Warn("rejected unbalanced ledger posting",
			slog.Int("entries", len(entries)))
		return err
	}

	query := `
		INSERT INTO ledger_entries (id, account, direction, amount_cents,
			invoice_id, memo, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, entry := range entries {
		_, err := s.db.ExecContext(
			ctx,
			query,
			entry.ID,
			entry.Account,
			entry.Direction,
			entry.AmountCents,
			entry.InvoiceID,
			entry.Memo,
			entry.OccurredAt,
			entry.CreatedAt,
		)
		if err != nil {
			log.Error("failed to create ledger entry",
				slog.String("error", err.Error()),
				slog.String("entry_id", entry.ID.String()))
			return MapError(err)
		}
	}

	log.Info("ledger entries posted", slog.Int("entries", len(entries)))
	return nil
}

// GetByID implements store.LedgerStore.GetByID
// Returns store.ErrEntryNotFound if the entry does not exist.
func (s *PostgresLedgerStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanLedgerEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("ledger entry not found", slog.String("entry_id", id.String()))
			return nil, store.ErrEntryNotFound
		}
		log.Error("failed to get ledger entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", id.String()))
		return nil, MapError(err)
	}

	return entry, nil
}

// List implements store.LedgerStore.List
func (s *PostgresLedgerStore) List(ctx context.Context, filter store.LedgerFilter) ([]*domain.LedgerEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE 1=1`
	args := []any{}

	if filter.Account != "" {
		args = append(args, filter.Account)
		query += fmt.Sprintf(" AND account = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND occurred_at < $%d", len(args))
	}

	query += " ORDER BY occurred_at, created_at"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return s.queryEntries(ctx, log, query, args...)
}

// ListByInvoice implements store.LedgerStore.ListByInvoice
func (s *PostgresLedgerStore) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*domain.LedgerEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE invoice_id = $1
		ORDER BY occurred_at, created_at`

	return s.queryEntries(ctx, log, query, invoiceID)
}

// AccountBalance implements store.LedgerStore.AccountBalance
func (s *PostgresLedgerStore) AccountBalance(ctx context.Context, account domain.LedgerAccount, asOf time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COALESCE(SUM(
			CASE WHEN direction = 'debit' THEN amount_cents ELSE -amount_cents END
		), 0)
		FROM ledger_entries
		WHERE account = $1 AND occurred_at <= $2
	`

	var balance int64
	err := s.db.QueryRowContext(ctx, query, account, asOf).Scan(&balance)
	if err != nil {
		log.Error("failed to compute account balance",
			slog.String("error", err.Error()),
			slog.String("account", string(account)))
		return 0, MapError(err)
	}

	return balance, nil
}

// WithTx implements store.LedgerStore.WithTx
// It returns a copy of the store that runs all operations on the transaction.
func (s *PostgresLedgerStore) WithTx(tx *sql.Tx) store.LedgerStore {
	return &PostgresLedgerStore{db: tx, logger: s.logger}
}

// queryEntries runs a multi-row ledger query and scans the results.
func (s *PostgresLedgerStore) queryEntries(
	ctx context.Context,
	log *slog.Logger,
	query string,
	args ...any,
) ([]*domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query ledger entries", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var entries []*domain.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			log.Error("failed to scan ledger entry row", slog.String("error", err.Error()))
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return entries, nil
}

// scanLedgerEntry maps one result row onto a domain.LedgerEntry.
func scanLedgerEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var account, direction string

	err := row.Scan(
		&entry.ID,
		&account,
		&direction,
		&entry.AmountCents,
		&entry.InvoiceID,
		&entry.Memo,
		&entry.OccurredAt,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Account = domain.LedgerAccount(account)
	entry.Direction = domain.EntryDirection(direction)
	return &entry, nil
}
