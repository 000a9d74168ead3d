package archive

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

// pageOf slices rows the way a LIMIT/OFFSET query would.
func pageOf[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

type fakeProducts struct {
	rows    []*domain.Product
	offsets []int
	err     error
}

func (f *fakeProducts) List(_ context.Context, filter store.ProductFilter) ([]*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.offsets = append(f.offsets, filter.Offset)
	return pageOf(f.rows, filter.Limit, filter.Offset), nil
}

type fakeCustomers struct {
	rows []*domain.Customer
	err  error
}

func (f *fakeCustomers) List(_ context.Context, limit, offset int) ([]*domain.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return pageOf(f.rows, limit, offset), nil
}

type fakeInvoices struct {
	rows []*domain.Invoice
	err  error
}

func (f *fakeInvoices) List(_ context.Context, filter store.InvoiceFilter) ([]*domain.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return pageOf(f.rows, filter.Limit, filter.Offset), nil
}

type fakeLedger struct {
	rows []*domain.LedgerEntry
	err  error
}

func (f *fakeLedger) List(_ context.Context, filter store.LedgerFilter) ([]*domain.LedgerEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return pageOf(f.rows, filter.Limit, filter.Offset), nil
}

type archiveFixture struct {
	archiver  *FileArchiver
	dir       string
	products  *fakeProducts
	customers *fakeCustomers
	invoices  *fakeInvoices
	ledger    *fakeLedger
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()

	customerID := uuid.New()
	productID := uuid.New()
	invoiceID := uuid.New()

	fx := &archiveFixture{
		dir: t.TempDir(),
		products: &fakeProducts{rows: []*domain.Product{
			{ID: productID, SKU: "RING-001", Name: "Gold Band", Category: domain.CategoryRing, Karat: 18, QuantityOnHand: 10},
			{ID: uuid.New(), SKU: "COIN-001", Name: "Sovereign", Category: domain.CategoryCoin, Karat: 22, QuantityOnHand: 4},
		}},
		customers: &fakeCustomers{rows: []*domain.Customer{
			{ID: customerID, Name: "Aurelia Vance", Email: "aurelia@example.com"},
		}},
		invoices: &fakeInvoices{rows: []*domain.Invoice{
			{
				ID:         invoiceID,
				Number:     "INV-000001",
				CustomerID: customerID,
				Status:     domain.InvoiceStatusCompleted,
				Items: []domain.InvoiceItem{
					{ID: uuid.New(), InvoiceID: invoiceID, ProductID: productID, Quantity: 2, UnitPriceCents: 60000, LineTotalCents: 120000},
				},
				SubtotalCents: 120000,
				TaxCents:      8400,
				TotalCents:    128400,
			},
		}},
		ledger: &fakeLedger{rows: []*domain.LedgerEntry{
			{ID: uuid.New(), Account: domain.AccountCash, Direction: domain.DirectionDebit, AmountCents: 128400},
			{ID: uuid.New(), Account: domain.AccountSales, Direction: domain.DirectionCredit, AmountCents: 128400},
		}},
	}
	fx.archiver = NewFileArchiver(fx.dir, fx.products, fx.customers, fx.invoices, fx.ledger, nil)
	return fx
}

// archiveLine mirrors the envelope layout for decoding in assertions.
type archiveLine struct {
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// readArchive decompresses an archive and decodes every envelope line.
func readArchive(t *testing.T, path string) []archiveLine {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var lines []archiveLine
	dec := json.NewDecoder(gz)
	for {
		var line archiveLine
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				return lines
			}
			t.Fatalf("decode archive line: %v", err)
		}
		lines = append(lines, line)
	}
}

func tableCounts(lines []archiveLine) map[string]int {
	counts := make(map[string]int)
	for _, line := range lines {
		counts[line.Table]++
	}
	return counts
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestFileArchiverWritesFullScope(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	fx.archiver.timeFunc = func() time.Time {
		return time.Date(2025, 3, 14, 9, 5, 6, 0, time.UTC)
	}

	location, sizeBytes, checksum, err := fx.archiver.Archive(context.Background(), domain.BackupScopeFull)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fx.dir, "full-20250314T090506Z.jsonl.gz"), location)

	info, err := os.Stat(location)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), sizeBytes)
	assert.Positive(t, sizeBytes)

	// The checksum covers the compressed file exactly as it sits on disk.
	raw, err := os.ReadFile(location)
	require.NoError(t, err)
	sum := sha256.Sum256(raw)
	assert.Equal(t, hex.EncodeToString(sum[:]), checksum)

	lines := readArchive(t, location)
	counts := tableCounts(lines)
	assert.Equal(t, map[string]int{
		"products":       2,
		"customers":      1,
		"invoices":       1,
		"ledger_entries": 2,
	}, counts)

	// Rows survive the round trip intact, line items included.
	var invoice domain.Invoice
	for _, line := range lines {
		if line.Table == "invoices" {
			require.NoError(t, json.Unmarshal(line.Row, &invoice))
		}
	}
	assert.Equal(t, "INV-000001", invoice.Number)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, int64(120000), invoice.Items[0].LineTotalCents)

	// No temp file survives a successful run.
	assert.Equal(t, []string{"full-20250314T090506Z.jsonl.gz"}, dirNames(t, fx.dir))
}

func TestFileArchiverScopeSelectsTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		scope domain.BackupScope
		want  map[string]int
	}{
		{
			name:  "ledger scope covers invoices and entries",
			scope: domain.BackupScopeLedger,
			want:  map[string]int{"invoices": 1, "ledger_entries": 2},
		},
		{
			name:  "inventory scope covers products only",
			scope: domain.BackupScopeInventory,
			want:  map[string]int{"products": 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fx := newArchiveFixture(t)
			location, _, _, err := fx.archiver.Archive(context.Background(), tc.scope)
			require.NoError(t, err)

			assert.Contains(t, filepath.Base(location), string(tc.scope)+"-")
			assert.Equal(t, tc.want, tableCounts(readArchive(t, location)))
		})
	}
}

func TestFileArchiverRejectsUnknownScope(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	_, _, _, err := fx.archiver.Archive(context.Background(), domain.BackupScope("everything"))
	assert.ErrorIs(t, err, domain.ErrInvalidBackupScope)
	assert.Empty(t, dirNames(t, fx.dir))
}

func TestFileArchiverPagesThroughLargeTables(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	rows := make([]*domain.Product, 1203)
	for i := range rows {
		rows[i] = &domain.Product{ID: uuid.New(), SKU: fmt.Sprintf("SKU-%04d", i)}
	}
	fx.products.rows = rows

	location, _, _, err := fx.archiver.Archive(context.Background(), domain.BackupScopeInventory)
	require.NoError(t, err)

	counts := tableCounts(readArchive(t, location))
	assert.Equal(t, 1203, counts["products"])

	// Three pages: two full batches and a short one that ends the loop.
	assert.Equal(t, []int{0, 500, 1000}, fx.products.offsets)
}

func TestFileArchiverStoreErrorLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	fx.ledger.err = errors.New("connection reset")

	_, _, _, err := fx.archiver.Archive(context.Background(), domain.BackupScopeFull)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to export ledger_entries")
	assert.Empty(t, dirNames(t, fx.dir))
}

func TestFileArchiverHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := fx.archiver.Archive(ctx, domain.BackupScopeFull)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirNames(t, fx.dir))
}

func TestFileArchiverPruneFiles(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -30)

	writeFile := func(name string, modTime time.Time) {
		path := filepath.Join(fx.dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o640))
		require.NoError(t, os.Chtimes(path, modTime, modTime))
	}
	writeFile("full-20250101T000000Z.jsonl.gz", now.AddDate(0, 0, -45))
	writeFile("ledger-20250314T000000Z.jsonl.gz", now)
	// Wrong suffix is never touched, whatever its age.
	writeFile("restore-notes.txt", now.AddDate(0, 0, -90))

	removed, err := fx.archiver.PruneFiles(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.ElementsMatch(t,
		[]string{"ledger-20250314T000000Z.jsonl.gz", "restore-notes.txt"},
		dirNames(t, fx.dir))
}

func TestFileArchiverPruneFilesMissingDir(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)
	fx.archiver.dir = filepath.Join(fx.dir, "never-created")

	removed, err := fx.archiver.PruneFiles(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestNewFileArchiverValidatesInputs(t *testing.T) {
	t.Parallel()

	fx := newArchiveFixture(t)

	assert.PanicsWithValue(t, "backup directory cannot be empty", func() {
		NewFileArchiver("", fx.products, fx.customers, fx.invoices, fx.ledger, nil)
	})
	assert.PanicsWithValue(t, "product source cannot be nil", func() {
		NewFileArchiver(fx.dir, nil, fx.customers, fx.invoices, fx.ledger, nil)
	})
	assert.PanicsWithValue(t, "ledger source cannot be nil", func() {
		NewFileArchiver(fx.dir, fx.products, fx.customers, fx.invoices, nil, nil)
	})
}
