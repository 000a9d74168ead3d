package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/events"
	"github.com/aurumhq/aurum-api/internal/store"
)

// invoiceFixture bundles an invoice service with its collaborators. The
// sqlmock connection drives transaction begin/commit/rollback expectations
// while the map-backed fakes carry the data.
type invoiceFixture struct {
	svc       InvoiceService
	db        *sql.DB
	mock      sqlmock.Sqlmock
	invoices  *fakeInvoiceStore
	products  *fakeProductStore
	customers *fakeCustomerStore
	ledger    *fakeLedgerStore
	emitter   *fakeEmitter
	customer  *domain.Customer
	product   *domain.Product
}

func newInvoiceFixture(t *testing.T, taxRateBP int) *invoiceFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	customer := newTestCustomer(t, "Aurelia Vance")
	product := newTestProduct(t, "RING-001", 10, 2)

	fix := &invoiceFixture{
		db:        db,
		mock:      mock,
		invoices:  newFakeInvoiceStore(),
		products:  newFakeProductStore(product),
		customers: newFakeCustomerStore(customer),
		ledger:    &fakeLedgerStore{},
		emitter:   &fakeEmitter{},
		customer:  customer,
		product:   product,
	}

	svc, err := NewInvoiceService(
		db,
		fix.invoices,
		fix.products,
		fix.customers,
		fix.ledger,
		fix.emitter,
		config.SalesConfig{TaxRateBasisPoints: taxRateBP, InvoiceNumberPrefix: "INV-"},
		testLogger(),
	)
	require.NoError(t, err)
	fix.svc = svc

	return fix
}

// draftInvoice creates a draft through the service and clears the emitter so
// tests only see the events of the operation under test.
func (f *invoiceFixture) draftInvoice(t *testing.T, items ...InvoiceItemInput) *domain.Invoice {
	t.Helper()
	if len(items) == 0 {
		items = []InvoiceItemInput{{ProductID: f.product.ID, Quantity: 2, UnitPriceCents: 60000}}
	}
	invoice, err := f.svc.CreateInvoice(context.Background(), f.customer.ID, items)
	require.NoError(t, err)
	f.emitter.events = nil
	return invoice
}

func TestNewInvoiceServiceValidatesDependencies(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	cfg := config.SalesConfig{TaxRateBasisPoints: 700, InvoiceNumberPrefix: "INV-"}

	_, err := NewInvoiceService(
		nil, fix.invoices, fix.products, fix.customers, fix.ledger, fix.emitter, cfg, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewInvoiceService(
		fix.db, nil, fix.products, fix.customers, fix.ledger, fix.emitter, cfg, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewInvoiceService(
		fix.db, fix.invoices, fix.products, fix.customers, fix.ledger, nil, cfg, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	svc, err := NewInvoiceService(
		fix.db, fix.invoices, fix.products, fix.customers, fix.ledger, fix.emitter, cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCreateInvoice(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()

	invoice, err := fix.svc.CreateInvoice(ctx, fix.customer.ID, []InvoiceItemInput{
		{ProductID: fix.product.ID, Quantity: 2, UnitPriceCents: 60000},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", invoice.Number)
	assert.Equal(t, domain.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, fix.customer.ID, invoice.CustomerID)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, int64(120000), invoice.Items[0].LineTotalCents)

	// 7% on 120000 rounds to 8400 exactly.
	assert.Equal(t, int64(120000), invoice.SubtotalCents)
	assert.Equal(t, int64(8400), invoice.TaxCents)
	assert.Equal(t, int64(128400), invoice.TotalCents)
	assert.Nil(t, invoice.IssuedAt)

	// Drafts never touch stock.
	stored, err := fix.products.GetByID(ctx, fix.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.QuantityOnHand)

	inserts := fix.emitter.emitted("invoices")
	require.Len(t, inserts, 1)
	assert.Equal(t, events.OpInsert, inserts[0].Op)

	second, err := fix.svc.CreateInvoice(ctx, fix.customer.ID, []InvoiceItemInput{
		{ProductID: fix.product.ID, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", second.Number)
}

func TestCreateInvoiceDefaultsPriceAndDescription(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)

	invoice, err := fix.svc.CreateInvoice(context.Background(), fix.customer.ID, []InvoiceItemInput{
		{ProductID: fix.product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	require.Len(t, invoice.Items, 1)
	assert.Equal(t, fix.product.UnitPriceCents, invoice.Items[0].UnitPriceCents)
	assert.Equal(t, fix.product.Name, invoice.Items[0].Description)
}

func TestCreateInvoiceRequiresItems(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)

	_, err := fix.svc.CreateInvoice(context.Background(), fix.customer.ID, nil)
	assert.ErrorIs(t, err, ErrNoInvoiceItems)
	assert.Empty(t, fix.emitter.events)
}

func TestCreateInvoiceUnknownCustomer(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)

	_, err := fix.svc.CreateInvoice(context.Background(), uuid.New(), []InvoiceItemInput{
		{ProductID: fix.product.ID, Quantity: 1},
	})
	assert.ErrorIs(t, err, store.ErrCustomerNotFound)
}

func TestCreateInvoiceUnknownProduct(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)

	_, err := fix.svc.CreateInvoice(context.Background(), fix.customer.ID, []InvoiceItemInput{
		{ProductID: uuid.New(), Quantity: 1},
	})
	assert.ErrorIs(t, err, store.ErrProductNotFound)
}

func TestCompleteInvoice(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	completed, err := fix.svc.CompleteInvoice(ctx, draft.ID)
	require.NoError(t, err)
	require.NoError(t, fix.mock.ExpectationsWereMet())

	assert.Equal(t, domain.InvoiceStatusCompleted, completed.Status)
	require.NotNil(t, completed.IssuedAt)
	assert.WithinDuration(t, time.Now().UTC(), *completed.IssuedAt, 5*time.Second)

	stored, err := fix.invoices.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCompleted, stored.Status)

	product, err := fix.products.GetByID(ctx, fix.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, product.QuantityOnHand)

	// Sale posting: debit cash for the total, credit sales and tax payable.
	require.Len(t, fix.ledger.entries, 3)
	assert.Equal(t, int64(128400), fix.ledger.balanceFor(domain.AccountCash))
	assert.Equal(t, int64(-120000), fix.ledger.balanceFor(domain.AccountSales))
	assert.Equal(t, int64(-8400), fix.ledger.balanceFor(domain.AccountTaxPayable))
	for _, entry := range fix.ledger.entries {
		assert.Equal(t, "sale INV-000001", entry.Memo)
		assert.Equal(t, draft.ID, entry.InvoiceID.UUID)
		assert.Equal(t, *completed.IssuedAt, entry.OccurredAt)
	}

	assert.Len(t, fix.emitter.emitted("invoices"), 1)
	assert.Len(t, fix.emitter.emitted("products"), 1)
	assert.Len(t, fix.emitter.emitted("ledger_entries"), 3)
}

func TestCompleteInvoiceInsufficientStock(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()

	scarce := newTestProduct(t, "RING-002", 3, 1)
	require.NoError(t, fix.products.Create(ctx, scarce))
	draft := fix.draftInvoice(t, InvoiceItemInput{ProductID: scarce.ID, Quantity: 5})

	fix.mock.ExpectBegin()
	fix.mock.ExpectRollback()

	_, err := fix.svc.CompleteInvoice(ctx, draft.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.ErrorContains(t, err, "invoice service complete_invoice failed")
	require.NoError(t, fix.mock.ExpectationsWereMet())

	// Nothing moved: the invoice is still a draft, stock and ledger untouched.
	stored, err := fix.invoices.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, stored.Status)
	assert.Nil(t, stored.IssuedAt)

	product, err := fix.products.GetByID(ctx, scarce.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, product.QuantityOnHand)

	assert.Empty(t, fix.ledger.entries)
	assert.Empty(t, fix.emitter.events)
}

func TestCompleteInvoiceTwice(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()
	_, err := fix.svc.CompleteInvoice(ctx, draft.ID)
	require.NoError(t, err)

	fix.mock.ExpectBegin()
	fix.mock.ExpectRollback()
	_, err = fix.svc.CompleteInvoice(ctx, draft.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	require.NoError(t, fix.mock.ExpectationsWereMet())

	// The double deduction must not happen.
	product, err := fix.products.GetByID(ctx, fix.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, product.QuantityOnHand)
	assert.Len(t, fix.ledger.entries, 3)
}

func TestCompleteInvoiceZeroTax(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 0)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	assert.Equal(t, int64(0), draft.TaxCents)
	assert.Equal(t, int64(120000), draft.TotalCents)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()
	_, err := fix.svc.CompleteInvoice(ctx, draft.ID)
	require.NoError(t, err)

	// No tax line is posted when the tax amount is zero.
	require.Len(t, fix.ledger.entries, 2)
	assert.Equal(t, int64(120000), fix.ledger.balanceFor(domain.AccountCash))
	assert.Equal(t, int64(-120000), fix.ledger.balanceFor(domain.AccountSales))
	assert.Equal(t, int64(0), fix.ledger.balanceFor(domain.AccountTaxPayable))
}

func TestCancelDraftInvoice(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	cancelled, err := fix.svc.CancelInvoice(ctx, draft.ID)
	require.NoError(t, err)
	require.NoError(t, fix.mock.ExpectationsWereMet())

	assert.Equal(t, domain.InvoiceStatusCancelled, cancelled.Status)

	// A draft never reserved stock or posted to the ledger, so cancelling
	// it reverses nothing.
	product, err := fix.products.GetByID(ctx, fix.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, product.QuantityOnHand)
	assert.Empty(t, fix.ledger.entries)

	assert.Len(t, fix.emitter.emitted("invoices"), 1)
	assert.Empty(t, fix.emitter.emitted("products"))
	assert.Empty(t, fix.emitter.emitted("ledger_entries"))
}

func TestCancelCompletedInvoiceRestocksAndReverses(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()
	_, err := fix.svc.CompleteInvoice(ctx, draft.ID)
	require.NoError(t, err)
	fix.emitter.events = nil

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()
	cancelled, err := fix.svc.CancelInvoice(ctx, draft.ID)
	require.NoError(t, err)
	require.NoError(t, fix.mock.ExpectationsWereMet())

	assert.Equal(t, domain.InvoiceStatusCancelled, cancelled.Status)

	product, err := fix.products.GetByID(ctx, fix.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, product.QuantityOnHand)

	// The void postings mirror the sale, so every account nets to zero.
	require.Len(t, fix.ledger.entries, 6)
	assert.Equal(t, int64(0), fix.ledger.balanceFor(domain.AccountCash))
	assert.Equal(t, int64(0), fix.ledger.balanceFor(domain.AccountSales))
	assert.Equal(t, int64(0), fix.ledger.balanceFor(domain.AccountTaxPayable))
	for _, entry := range fix.ledger.entries[3:] {
		assert.Equal(t, "void INV-000001", entry.Memo)
	}

	assert.Len(t, fix.emitter.emitted("invoices"), 1)
	assert.Len(t, fix.emitter.emitted("products"), 1)
	assert.Len(t, fix.emitter.emitted("ledger_entries"), 3)
}

func TestUpdateDraftItems(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)
	assert.Equal(t, int64(128400), draft.TotalCents)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()

	updated, err := fix.svc.UpdateDraftItems(ctx, draft.ID, []InvoiceItemInput{
		{ProductID: fix.product.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, fix.mock.ExpectationsWereMet())

	require.Len(t, updated.Items, 1)
	assert.Equal(t, int64(45000), updated.SubtotalCents)
	assert.Equal(t, int64(3150), updated.TaxCents)
	assert.Equal(t, int64(48150), updated.TotalCents)

	stored, err := fix.invoices.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(48150), stored.TotalCents)
	require.Len(t, stored.Items, 1)

	updates := fix.emitter.emitted("invoices")
	require.Len(t, updates, 1)
	assert.Equal(t, events.OpUpdate, updates[0].Op)
}

func TestUpdateDraftItemsRejectsCompleted(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	fix.mock.ExpectBegin()
	fix.mock.ExpectCommit()
	_, err := fix.svc.CompleteInvoice(ctx, draft.ID)
	require.NoError(t, err)

	fix.mock.ExpectBegin()
	fix.mock.ExpectRollback()
	_, err = fix.svc.UpdateDraftItems(ctx, draft.ID, []InvoiceItemInput{
		{ProductID: fix.product.ID, Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvoiceNotEditable)
	require.NoError(t, fix.mock.ExpectationsWereMet())
}

func TestGetInvoiceByNumber(t *testing.T) {
	t.Parallel()

	fix := newInvoiceFixture(t, 700)
	ctx := context.Background()
	draft := fix.draftInvoice(t)

	found, err := fix.svc.GetInvoiceByNumber(ctx, draft.Number)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, found.ID)

	_, err = fix.svc.GetInvoiceByNumber(ctx, "INV-999999")
	assert.ErrorIs(t, err, store.ErrInvoiceNotFound)
}
