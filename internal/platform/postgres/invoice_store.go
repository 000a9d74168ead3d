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

// invoiceColumns is the column list shared by every invoice SELECT.
const invoiceColumns = `id, number, customer_id, subtotal_cents, tax_cents, total_cents,
	status, issued_at, created_at, updated_at`

// PostgresInvoiceStore implements the store.InvoiceStore interface
// using a PostgreSQL database as the storage backend.
type PostgresInvoiceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresInvoiceStore creates a new PostgreSQL implementation of the InvoiceStore
// interface. If log is nil, the process default logger is used.
func NewPostgresInvoiceStore(db store.DBTX, log *slog.Logger) *PostgresInvoiceStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresInvoiceStore{
		db:     db,
		logger: log.With(slog.String("component", "invoice_store")),
	}
}

// Ensure PostgresInvoiceStore implements store.InvoiceStore interface
var _ store.InvoiceStore = (*PostgresInvoiceStore)(nil)

// Create implements store.InvoiceStore.Create
// The invoice row and all item rows are written on the store's DBTX; callers
// wrap Create in a transaction so a partial write cannot survive.
// Returns store.ErrInvoiceNumberExists if the number is already taken.
func (s *PostgresInvoiceStore) Create(ctx context.Context, invoice *domain.Invoice) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := invoice.Validate(); err != nil {
		log.Warn("invoice validation failed during create",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return err
	}

	query := `
		INSERT INTO invoices (id, number, customer_id, subtotal_cents, tax_cents,
			total_cents, status, issued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		invoice.ID,
		invoice.Number,
		invoice.CustomerID,
		invoice.SubtotalCents,
		invoice.TaxCents,
		invoice.TotalCents,
		invoice.Status,
		nullableTime(invoice.IssuedAt),
		invoice.CreatedAt,
		invoice.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate invoice number during creation",
				slog.String("number", invoice.Number))
			return MapUniqueViolation(err, store.ErrInvoiceNumberExists)
		}
		log.Error("failed to create invoice",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return MapError(err)
	}

	if err := s.insertItems(ctx, invoice.ID, invoice.Items); err != nil {
		log.Error("failed to create invoice items",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return err
	}

	log.Info("invoice created successfully",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("number", invoice.Number),
		slog.Int("items", len(invoice.Items)))
	return nil
}

// GetByID implements store.InvoiceStore.GetByID
// Returns store.ErrInvoiceNotFound if the invoice does not exist.
func (s *PostgresInvoiceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

// GetByNumber implements store.InvoiceStore.GetByNumber
// Returns store.ErrInvoiceNotFound if the invoice does not exist.
func (s *PostgresInvoiceStore) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.getOne(ctx, `WHERE number = $1`, number)
}

// getOne runs a single-row invoice query and loads the invoice's items.
func (s *PostgresInvoiceStore) getOne(ctx context.Context, where string, arg any) (*domain.Invoice, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + invoiceColumns + ` FROM invoices ` + where

	invoice, err := scanInvoice(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("invoice not found")
			return nil, store.ErrInvoiceNotFound
		}
		log.Error("failed to get invoice", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if err := s.loadItems(ctx, invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// List implements store.InvoiceStore.List
func (s *PostgresInvoiceStore) List(ctx context.Context, filter store.InvoiceFilter) ([]*domain.Invoice, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.CustomerID != uuid.Nil {
		args = append(args, filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list invoices", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var invoices []*domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			log.Error("failed to scan invoice row", slog.String("error", err.Error()))
			return nil, err
		}
		invoices = append(invoices, invoice)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	for _, invoice := range invoices {
		if err := s.loadItems(ctx, invoice); err != nil {
			return nil, err
		}
	}

	return invoices, nil
}

// Update implements store.InvoiceStore.Update
// Returns store.ErrInvoiceNotFound if the invoice does not exist.
func (s *PostgresInvoiceStore) Update(ctx context.Context, invoice *domain.Invoice) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := invoice.Validate(); err != nil {
		log.Warn("invoice validation failed during update",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return err
	}

	invoice.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE invoices
		SET subtotal_cents = $1, tax_cents = $2, total_cents = $3, status = $4,
			issued_at = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		invoice.SubtotalCents,
		invoice.TaxCents,
		invoice.TotalCents,
		invoice.Status,
		nullableTime(invoice.IssuedAt),
		invoice.UpdatedAt,
		invoice.ID,
	)

	if err != nil {
		log.Error("failed to update invoice",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrInvoiceNotFound); err != nil {
		return err
	}

	log.Info("invoice updated",
		slog.String("invoice_id", invoice.ID.String()),
		slog.String("status", string(invoice.Status)))
	return nil
}

// ReplaceItems implements store.InvoiceStore.ReplaceItems
// It deletes the invoice's current items and writes the invoice's item slice
// in their place. Callers wrap this in a transaction together with Update.
func (s *PostgresInvoiceStore) ReplaceItems(ctx context.Context, invoice *domain.Invoice) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, invoice.ID).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrInvoiceNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM invoice_items WHERE invoice_id = $1`, invoice.ID); err != nil {
		log.Error("failed to delete invoice items",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return MapError(err)
	}

	return s.insertItems(ctx, invoice.ID, invoice.Items)
}

// NextNumber implements store.InvoiceStore.NextNumber
func (s *PostgresInvoiceStore) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n)
	if err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx implements store.InvoiceStore.WithTx
// It returns a copy of the store that runs all operations on the transaction.
func (s *PostgresInvoiceStore) WithTx(tx *sql.Tx) store.InvoiceStore {
	return &PostgresInvoiceStore{db: tx, logger: s.logger}
}

// insertItems writes the given items for an invoice.
func (s *PostgresInvoiceStore) insertItems(ctx context.Context, invoiceID uuid.UUID, items []domain.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (id, invoice_id, product_id, description,
			quantity, unit_price_cents, line_total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for idx := range items {
		item := &items[idx]
		_, err := s.db.ExecContext(
			ctx,
			query,
			item.ID,
			invoiceID,
			item.ProductID,
			item.Description,
			item.Quantity,
			item.UnitPriceCents,
			item.LineTotalCents,
		)
		if err != nil {
			return MapError(err)
		}
	}

	return nil
}

// loadItems fetches an invoice's line items ordered by insertion.
func (s *PostgresInvoiceStore) loadItems(ctx context.Context, invoice *domain.Invoice) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, invoice_id, product_id, description, quantity,
			unit_price_cents, line_total_cents
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, invoice.ID)
	if err != nil {
		log.Error("failed to load invoice items",
			slog.String("error", err.Error()),
			slog.String("invoice_id", invoice.ID.String()))
		return MapError(err)
	}
	defer closeRows(rows, log)

	items := []domain.InvoiceItem{}
	for rows.Next() {
		var item domain.InvoiceItem
		err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.ProductID,
			&item.Description,
			&item.Quantity,
			&item.UnitPriceCents,
			&item.LineTotalCents,
		)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return MapError(err)
	}

	invoice.Items = items
	return nil
}

// scanInvoice maps one result row onto a domain.Invoice without its items.
func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var invoice domain.Invoice
	var status string
	var issuedAt sql.NullTime

	err := row.Scan(
		&invoice.ID,
		&invoice.Number,
		&invoice.CustomerID,
		&invoice.SubtotalCents,
		&invoice.TaxCents,
		&invoice.TotalCents,
		&status,
		&issuedAt,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Status = domain.InvoiceStatus(status)
	if issuedAt.Valid {
		t := issuedAt.Time
		invoice.IssuedAt = &t
	}
	return &invoice, nil
}

// nullableTime converts an optional timestamp for a nullable column.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
