package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/events"
	"github.com/aurumhq/aurum-api/internal/store"
)

// InvoiceServiceError is a custom error type for invoice service errors.
type InvoiceServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for InvoiceServiceError.
func (e *InvoiceServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invoice service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("invoice service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *InvoiceServiceError) Unwrap() error {
	return e.Err
}

// NewInvoiceServiceError creates a new InvoiceServiceError.
func NewInvoiceServiceError(operation, message string, err error) *InvoiceServiceError {
	return &InvoiceServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// InvoiceItemInput describes one line of a draft invoice. UnitPriceCents and
// Description default to the product's list price and name when left zero,
// so a sale at a negotiated price overrides them explicitly.
type InvoiceItemInput struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
	Description    string
}

// InvoiceService manages the full invoice lifecycle. Completing an invoice
// deducts stock and posts a balanced set of ledger entries in one
// transaction; cancelling a completed invoice reverses both.
type InvoiceService interface {
	// CreateInvoice creates a draft invoice with an allocated number and the
	// given line items. Returns ErrNoInvoiceItems for an empty item list and
	// store.ErrCustomerNotFound for an unknown customer.
	CreateInvoice(ctx context.Context, customerID uuid.UUID, items []InvoiceItemInput) (*domain.Invoice, error)

	// GetInvoice retrieves an invoice with its line items by ID.
	// Returns store.ErrInvoiceNotFound if the invoice does not exist.
	GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)

	// GetInvoiceByNumber retrieves an invoice with its line items by number.
	// Returns store.ErrInvoiceNotFound if the invoice does not exist.
	GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error)

	// ListInvoices retrieves invoices matching the filter, newest first.
	ListInvoices(ctx context.Context, filter store.InvoiceFilter) ([]*domain.Invoice, error)

	// UpdateDraftItems replaces the line items of a draft invoice and
	// recomputes its totals. Returns domain.ErrInvoiceNotEditable for
	// non-draft invoices.
	UpdateDraftItems(ctx context.Context, id uuid.UUID, items []InvoiceItemInput) (*domain.Invoice, error)

	// CompleteInvoice finalizes a draft invoice: it stamps the issue time,
	// deducts sold quantities from stock, and posts the sale to the ledger
	// (debit cash for the total, credit sales for the subtotal, credit tax
	// payable for the tax). All of it happens in one transaction; a stock
	// shortage rolls everything back with domain.ErrInsufficientStock.
	CompleteInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)

	// CancelInvoice cancels an invoice. Cancelling a draft only flips the
	// status. Cancelling a completed invoice is a void: sold quantities are
	// returned to stock and reversing ledger entries are posted, again in
	// one transaction. Returns domain.ErrInvalidStatusTransition if the
	// invoice is already cancelled.
	CancelInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
}

// invoiceServiceImpl implements the InvoiceService interface.
type invoiceServiceImpl struct {
	db            *sql.DB
	invoiceStore  store.InvoiceStore
	productStore  store.ProductStore
	customerStore store.CustomerStore
	ledgerStore   store.LedgerStore
	emitter       events.DataChangeEmitter
	taxRateBP     int64
	numberPrefix  string
	logger        *slog.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(
	db *sql.DB,
	invoiceStore store.InvoiceStore,
	productStore store.ProductStore,
	customerStore store.CustomerStore,
	ledgerStore store.LedgerStore,
	emitter events.DataChangeEmitter,
	cfg config.SalesConfig,
	logger *slog.Logger,
) (InvoiceService, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if invoiceStore == nil {
		return nil, domain.NewValidationError("invoiceStore", "cannot be nil", domain.ErrValidation)
	}
	if productStore == nil {
		return nil, domain.NewValidationError("productStore", "cannot be nil", domain.ErrValidation)
	}
	if customerStore == nil {
		return nil, domain.NewValidationError("customerStore", "cannot be nil", domain.ErrValidation)
	}
	if ledgerStore == nil {
		return nil, domain.NewValidationError("ledgerStore", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &invoiceServiceImpl{
		db:            db,
		invoiceStore:  invoiceStore,
		productStore:  productStore,
		customerStore: customerStore,
		ledgerStore:   ledgerStore,
		emitter:       emitter,
		taxRateBP:     int64(cfg.TaxRateBasisPoints),
		numberPrefix:  cfg.InvoiceNumberPrefix,
		logger:        logger.With("component", "invoice_service"),
	}, nil
}

func (s *invoiceServiceImpl) CreateInvoice(
	ctx context.Context,
	customerID uuid.UUID,
	items []InvoiceItemInput,
) (*domain.Invoice, error) {
	if len(items) == 0 {
		return nil, NewInvoiceServiceError("create_invoice", "no line items given", ErrNoInvoiceItems)
	}

	if _, err := s.customerStore.GetByID(ctx, customerID); err != nil {
		return nil, NewInvoiceServiceError("create_invoice", "failed to retrieve customer", err)
	}

	seq, err := s.invoiceStore.NextNumber(ctx)
	if err != nil {
		return nil, NewInvoiceServiceError("create_invoice", "failed to allocate invoice number", err)
	}

	invoice, err := domain.NewInvoice(fmt.Sprintf("%s%06d", s.numberPrefix, seq), customerID)
	if err != nil {
		return nil, NewInvoiceServiceError("create_invoice", "invalid invoice", err)
	}

	if err := s.addItems(ctx, invoice, items); err != nil {
		return nil, NewInvoiceServiceError("create_invoice", "failed to build line items", err)
	}

	if err := s.invoiceStore.Create(ctx, invoice); err != nil {
		return nil, NewInvoiceServiceError("create_invoice", "failed to save invoice", err)
	}

	s.logger.InfoContext(ctx, "invoice created",
		"invoice_id", invoice.ID,
		"number", invoice.Number,
		"total_cents", invoice.TotalCents)
	s.emitChange(ctx, "invoices", events.OpInsert, invoice.ID)

	return invoice, nil
}

func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoiceStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewInvoiceServiceError("get_invoice", "failed to retrieve invoice", err)
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	invoice, err := s.invoiceStore.GetByNumber(ctx, number)
	if err != nil {
		return nil, NewInvoiceServiceError("get_invoice_by_number", "failed to retrieve invoice", err)
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) ListInvoices(
	ctx context.Context,
	filter store.InvoiceFilter,
) ([]*domain.Invoice, error) {
	invoices, err := s.invoiceStore.List(ctx, filter)
	if err != nil {
		return nil, NewInvoiceServiceError("list_invoices", "failed to list invoices", err)
	}
	return invoices, nil
}

func (s *invoiceServiceImpl) UpdateDraftItems(
	ctx context.Context,
	id uuid.UUID,
	items []InvoiceItemInput,
) (*domain.Invoice, error) {
	if len(items) == 0 {
		return nil, NewInvoiceServiceError("update_draft_items", "no line items given", ErrNoInvoiceItems)
	}

	var updated *domain.Invoice
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		invoiceTx := s.invoiceStore.WithTx(tx)

		invoice, err := invoiceTx.GetByID(ctx, id)
		if err != nil {
			return NewInvoiceServiceError("update_draft_items", "failed to retrieve invoice", err)
		}
		if invoice.Status != domain.InvoiceStatusDraft {
			return NewInvoiceServiceError(
				"update_draft_items", "invoice is not a draft", domain.ErrInvoiceNotEditable)
		}

		invoice.Items = invoice.Items[:0]
		if err := s.addItems(ctx, invoice, items); err != nil {
			return NewInvoiceServiceError("update_draft_items", "failed to build line items", err)
		}

		if err := invoiceTx.ReplaceItems(ctx, invoice); err != nil {
			return NewInvoiceServiceError("update_draft_items", "failed to replace line items", err)
		}
		if err := invoiceTx.Update(ctx, invoice); err != nil {
			return NewInvoiceServiceError("update_draft_items", "failed to save totals", err)
		}

		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "draft invoice items replaced",
		"invoice_id", updated.ID,
		"item_count", len(updated.Items),
		"total_cents", updated.TotalCents)
	s.emitChange(ctx, "invoices", events.OpUpdate, updated.ID)

	return updated, nil
}

func (s *invoiceServiceImpl) CompleteInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var (
		completed *domain.Invoice
		postings  []*domain.LedgerEntry
	)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		invoiceTx := s.invoiceStore.WithTx(tx)
		productTx := s.productStore.WithTx(tx)
		ledgerTx := s.ledgerStore.WithTx(tx)

		invoice, err := invoiceTx.GetByID(ctx, id)
		if err != nil {
			return NewInvoiceServiceError("complete_invoice", "failed to retrieve invoice", err)
		}

		if err := invoice.Complete(); err != nil {
			return NewInvoiceServiceError("complete_invoice", "invoice cannot be completed", err)
		}

		for _, item := range invoice.Items {
			if _, err := productTx.AdjustQuantity(ctx, item.ProductID, -item.Quantity); err != nil {
				return NewInvoiceServiceError(
					"complete_invoice",
					fmt.Sprintf("failed to deduct stock for product %s", item.ProductID),
					err,
				)
			}
		}

		entries, err := saleEntries(invoice)
		if err != nil {
			return NewInvoiceServiceError("complete_invoice", "failed to build ledger entries", err)
		}
		if len(entries) > 0 {
			if err := ledgerTx.CreateEntries(ctx, entries); err != nil {
				return NewInvoiceServiceError("complete_invoice", "failed to post to ledger", err)
			}
		}

		if err := invoiceTx.Update(ctx, invoice); err != nil {
			return NewInvoiceServiceError("complete_invoice", "failed to save invoice", err)
		}

		completed = invoice
		postings = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invoice completed",
		"invoice_id", completed.ID,
		"number", completed.Number,
		"total_cents", completed.TotalCents)
	s.emitChange(ctx, "invoices", events.OpUpdate, completed.ID)
	for _, item := range completed.Items {
		s.emitChange(ctx, "products", events.OpUpdate, item.ProductID)
	}
	for _, entry := range postings {
		s.emitChange(ctx, "ledger_entries", events.OpInsert, entry.ID)
	}

	return completed, nil
}

func (s *invoiceServiceImpl) CancelInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var (
		cancelled *domain.Invoice
		reversals []*domain.LedgerEntry
		restocked bool
	)

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		invoiceTx := s.invoiceStore.WithTx(tx)
		productTx := s.productStore.WithTx(tx)
		ledgerTx := s.ledgerStore.WithTx(tx)

		invoice, err := invoiceTx.GetByID(ctx, id)
		if err != nil {
			return NewInvoiceServiceError("cancel_invoice", "failed to retrieve invoice", err)
		}

		wasCompleted := invoice.Status == domain.InvoiceStatusCompleted
		if err := invoice.Cancel(); err != nil {
			return NewInvoiceServiceError("cancel_invoice", "invoice cannot be cancelled", err)
		}

		if wasCompleted {
			for _, item := range invoice.Items {
				if _, err := productTx.AdjustQuantity(ctx, item.ProductID, item.Quantity); err != nil {
					return NewInvoiceServiceError(
						"cancel_invoice",
						fmt.Sprintf("failed to restock product %s", item.ProductID),
						err,
					)
				}
			}

			entries, err := voidEntries(invoice, time.Now().UTC())
			if err != nil {
				return NewInvoiceServiceError("cancel_invoice", "failed to build reversing entries", err)
			}
			if len(entries) > 0 {
				if err := ledgerTx.CreateEntries(ctx, entries); err != nil {
					return NewInvoiceServiceError("cancel_invoice", "failed to post reversal to ledger", err)
				}
			}
			reversals = entries
		}

		if err := invoiceTx.Update(ctx, invoice); err != nil {
			return NewInvoiceServiceError("cancel_invoice", "failed to save invoice", err)
		}

		cancelled = invoice
		restocked = wasCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "invoice cancelled",
		"invoice_id", cancelled.ID,
		"number", cancelled.Number,
		"voided", restocked)
	s.emitChange(ctx, "invoices", events.OpUpdate, cancelled.ID)
	if restocked {
		for _, item := range cancelled.Items {
			s.emitChange(ctx, "products", events.OpUpdate, item.ProductID)
		}
		for _, entry := range reversals {
			s.emitChange(ctx, "ledger_entries", events.OpInsert, entry.ID)
		}
	}

	return cancelled, nil
}

// addItems resolves each input against the catalog and appends it to the
// draft, recomputing totals as it goes. Price and description fall back to
// the product's list price and name.
func (s *invoiceServiceImpl) addItems(
	ctx context.Context,
	invoice *domain.Invoice,
	items []InvoiceItemInput,
) error {
	for _, in := range items {
		product, err := s.productStore.GetByID(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("product %s: %w", in.ProductID, err)
		}

		price := in.UnitPriceCents
		if price == 0 {
			price = product.UnitPriceCents
		}
		description := in.Description
		if description == "" {
			description = product.Name
		}

		item := domain.InvoiceItem{
			ID:             uuid.New(),
			ProductID:      product.ID,
			Description:    description,
			Quantity:       in.Quantity,
			UnitPriceCents: price,
		}
		if err := invoice.AddItem(item, s.taxRateBP); err != nil {
			return fmt.Errorf("product %s: %w", in.ProductID, err)
		}
	}
	return nil
}

// saleEntries builds the balanced posting set for a completed invoice:
// debit cash for the total, credit sales for the subtotal, credit tax
// payable for the tax. A zero-total invoice posts nothing.
func saleEntries(invoice *domain.Invoice) ([]*domain.LedgerEntry, error) {
	if invoice.TotalCents == 0 {
		return nil, nil
	}

	invoiceID := uuid.NullUUID{UUID: invoice.ID, Valid: true}
	memo := "sale " + invoice.Number
	occurredAt := time.Now().UTC()
	if invoice.IssuedAt != nil {
		occurredAt = *invoice.IssuedAt
	}

	specs := []struct {
		account   domain.LedgerAccount
		direction domain.EntryDirection
		amount    int64
	}{
		{domain.AccountCash, domain.DirectionDebit, invoice.TotalCents},
		{domain.AccountSales, domain.DirectionCredit, invoice.SubtotalCents},
		{domain.AccountTaxPayable, domain.DirectionCredit, invoice.TaxCents},
	}

	entries := make([]*domain.LedgerEntry, 0, len(specs))
	for _, spec := range specs {
		if spec.amount == 0 {
			continue
		}
		entry, err := domain.NewLedgerEntry(
			spec.account, spec.direction, spec.amount, invoiceID, memo, occurredAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// voidEntries builds the mirror image of saleEntries, returning the sale's
// money movements to their source accounts.
func voidEntries(invoice *domain.Invoice, occurredAt time.Time) ([]*domain.LedgerEntry, error) {
	if invoice.TotalCents == 0 {
		return nil, nil
	}

	invoiceID := uuid.NullUUID{UUID: invoice.ID, Valid: true}
	memo := "void " + invoice.Number

	specs := []struct {
		account   domain.LedgerAccount
		direction domain.EntryDirection
		amount    int64
	}{
		{domain.AccountCash, domain.DirectionCredit, invoice.TotalCents},
		{domain.AccountSales, domain.DirectionDebit, invoice.SubtotalCents},
		{domain.AccountTaxPayable, domain.DirectionDebit, invoice.TaxCents},
	}

	entries := make([]*domain.LedgerEntry, 0, len(specs))
	for _, spec := range specs {
		if spec.amount == 0 {
			continue
		}
		entry, err := domain.NewLedgerEntry(
			spec.account, spec.direction, spec.amount, invoiceID, memo, occurredAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *invoiceServiceImpl) emitChange(ctx context.Context, table, op string, id uuid.UUID) {
	event := events.NewDataChangeEvent(table, op, id)
	if err := s.emitter.EmitDataChange(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit data change event",
			"table", table,
			"op", op,
			"error", err)
	}
}
