package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/cache"
	"github.com/aurumhq/aurum-api/internal/config"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/events"
	"github.com/aurumhq/aurum-api/internal/store"
)

// testLogger returns a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock pins a service's notion of now so window math is stable.
func fixedClock(t *testing.T, svc any, now time.Time) {
	t.Helper()
	switch impl := svc.(type) {
	case *kpiServiceImpl:
		impl.timeFunc = func() time.Time { return now }
	case *analyticsServiceImpl:
		impl.timeFunc = func() time.Time { return now }
	case *backupServiceImpl:
		impl.timeFunc = func() time.Time { return now }
	default:
		t.Fatalf("fixedClock: unsupported service type %T", svc)
	}
}

// newTestCache returns an enabled in-memory cache with short uniform TTLs.
func newTestCache() *cache.Cache {
	cfg := config.CacheConfig{
		Enabled:               true,
		KPITTLSeconds:         60,
		ForecastTTLSeconds:    60,
		ChartTTLSeconds:       60,
		ReportTTLSeconds:      60,
		AggregationTTLSeconds: 60,
	}
	return cache.New(cache.NewMemoryBackend(), cache.NewPolicy(cfg), true, testLogger())
}

// fakeEmitter records emitted events.
type fakeEmitter struct {
	events  []*events.DataChangeEvent
	emitErr error
}

func (f *fakeEmitter) EmitDataChange(_ context.Context, event *events.DataChangeEvent) error {
	if f.emitErr != nil {
		return f.emitErr
	}
	f.events = append(f.events, event)
	return nil
}

// emitted returns the recorded events for one table.
func (f *fakeEmitter) emitted(table string) []*events.DataChangeEvent {
	var out []*events.DataChangeEvent
	for _, e := range f.events {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

// fakeProductStore is a map-backed ProductStore. Error fields override the
// corresponding method when set.
type fakeProductStore struct {
	products  map[uuid.UUID]*domain.Product
	createErr error
	getErr    error
	updateErr error
	adjustErr error
	deleteErr error
}

func newFakeProductStore(products ...*domain.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[uuid.UUID]*domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (f *fakeProductStore) Create(_ context.Context, product *domain.Product) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.products {
		if existing.SKU == product.SKU {
			return store.ErrSKUExists
		}
	}
	f.products[product.ID] = product
	return nil
}

func (f *fakeProductStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	product, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeProductStore) GetBySKU(_ context.Context, sku string) (*domain.Product, error) {
	for _, product := range f.products {
		if product.SKU == sku {
			return product, nil
		}
	}
	return nil, store.ErrProductNotFound
}

func (f *fakeProductStore) List(_ context.Context, filter store.ProductFilter) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, product := range f.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.LowStockOnly && !product.IsLowStock() {
			continue
		}
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (f *fakeProductStore) Update(_ context.Context, product *domain.Product) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.products[product.ID]; !ok {
		return store.ErrProductNotFound
	}
	f.products[product.ID] = product
	return nil
}

func (f *fakeProductStore) AdjustQuantity(
	_ context.Context,
	id uuid.UUID,
	delta int,
) (*domain.Product, error) {
	if f.adjustErr != nil {
		return nil, f.adjustErr
	}
	product, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	if err := product.AdjustQuantity(delta); err != nil {
		return nil, err
	}
	return product, nil
}

func (f *fakeProductStore) Delete(_ context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.products[id]; !ok {
		return store.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductStore) WithTx(_ *sql.Tx) store.ProductStore { return f }

// fakeCustomerStore is a map-backed CustomerStore.
type fakeCustomerStore struct {
	customers map[uuid.UUID]*domain.Customer
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func newFakeCustomerStore(customers ...*domain.Customer) *fakeCustomerStore {
	s := &fakeCustomerStore{customers: make(map[uuid.UUID]*domain.Customer)}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return s
}

func (f *fakeCustomerStore) Create(_ context.Context, customer *domain.Customer) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.customers[customer.ID] = customer
	return nil
}

func (f *fakeCustomerStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	customer, ok := f.customers[id]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	return customer, nil
}

func (f *fakeCustomerStore) List(_ context.Context, limit, offset int) ([]*domain.Customer, error) {
	var out []*domain.Customer
	for _, customer := range f.customers {
		out = append(out, customer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCustomerStore) Update(_ context.Context, customer *domain.Customer) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.customers[customer.ID]; !ok {
		return store.ErrCustomerNotFound
	}
	f.customers[customer.ID] = customer
	return nil
}

func (f *fakeCustomerStore) Delete(_ context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.customers[id]; !ok {
		return store.ErrCustomerNotFound
	}
	delete(f.customers, id)
	return nil
}

func (f *fakeCustomerStore) WithTx(_ *sql.Tx) store.CustomerStore { return f }

// fakeInvoiceStore is a map-backed InvoiceStore with a sequence counter.
type fakeInvoiceStore struct {
	invoices   map[uuid.UUID]*domain.Invoice
	nextSeq    int64
	createErr  error
	getErr     error
	updateErr  error
	replaceErr error
}

func newFakeInvoiceStore(invoices ...*domain.Invoice) *fakeInvoiceStore {
	s := &fakeInvoiceStore{invoices: make(map[uuid.UUID]*domain.Invoice)}
	for _, inv := range invoices {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (f *fakeInvoiceStore) Create(_ context.Context, invoice *domain.Invoice) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.invoices {
		if existing.Number == invoice.Number {
			return store.ErrInvoiceNumberExists
		}
	}
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	invoice, ok := f.invoices[id]
	if !ok {
		return nil, store.ErrInvoiceNotFound
	}
	return copyInvoice(invoice), nil
}

func (f *fakeInvoiceStore) GetByNumber(_ context.Context, number string) (*domain.Invoice, error) {
	for _, invoice := range f.invoices {
		if invoice.Number == number {
			return copyInvoice(invoice), nil
		}
	}
	return nil, store.ErrInvoiceNotFound
}

// copyInvoice detaches a read from stored state, the way a row scan would.
// Without it a caller's mutations would leak into the fake even when the
// surrounding transaction rolls back.
func copyInvoice(invoice *domain.Invoice) *domain.Invoice {
	cp := *invoice
	cp.Items = append([]domain.InvoiceItem(nil), invoice.Items...)
	if invoice.IssuedAt != nil {
		issued := *invoice.IssuedAt
		cp.IssuedAt = &issued
	}
	return &cp
}

func (f *fakeInvoiceStore) List(_ context.Context, filter store.InvoiceFilter) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	for _, invoice := range f.invoices {
		if filter.Status != "" && invoice.Status != filter.Status {
			continue
		}
		if filter.CustomerID != uuid.Nil && invoice.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, invoice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeInvoiceStore) Update(_ context.Context, invoice *domain.Invoice) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.invoices[invoice.ID]; !ok {
		return store.ErrInvoiceNotFound
	}
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceStore) ReplaceItems(_ context.Context, invoice *domain.Invoice) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if _, ok := f.invoices[invoice.ID]; !ok {
		return store.ErrInvoiceNotFound
	}
	f.invoices[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceStore) NextNumber(_ context.Context) (int64, error) {
	f.nextSeq++
	return f.nextSeq, nil
}

func (f *fakeInvoiceStore) WithTx(_ *sql.Tx) store.InvoiceStore { return f }

// fakeLedgerStore is an append-only in-memory LedgerStore. CreateEntries
// enforces balancing like the real store.
type fakeLedgerStore struct {
	entries   []*domain.LedgerEntry
	createErr error
}

func (f *fakeLedgerStore) CreateEntries(_ context.Context, entries []*domain.LedgerEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err := domain.CheckBalanced(entries); err != nil {
		return err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLedgerStore) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	for _, entry := range f.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, store.ErrEntryNotFound
}

func (f *fakeLedgerStore) List(_ context.Context, filter store.LedgerFilter) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for _, entry := range f.entries {
		if filter.Account != "" && entry.Account != filter.Account {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (f *fakeLedgerStore) ListByInvoice(
	_ context.Context,
	invoiceID uuid.UUID,
) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	for _, entry := range f.entries {
		if entry.InvoiceID.Valid && entry.InvoiceID.UUID == invoiceID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) AccountBalance(
	_ context.Context,
	account domain.LedgerAccount,
	asOf time.Time,
) (int64, error) {
	var balance int64
	for _, entry := range f.entries {
		if entry.Account != account || entry.OccurredAt.After(asOf) {
			continue
		}
		if entry.Direction == domain.DirectionDebit {
			balance += entry.AmountCents
		} else {
			balance -= entry.AmountCents
		}
	}
	return balance, nil
}

func (f *fakeLedgerStore) WithTx(_ *sql.Tx) store.LedgerStore { return f }

// balanceFor sums the fake ledger's net debit position for one account
// across all entries regardless of time.
func (f *fakeLedgerStore) balanceFor(account domain.LedgerAccount) int64 {
	var balance int64
	for _, entry := range f.entries {
		if entry.Account != account {
			continue
		}
		if entry.Direction == domain.DirectionDebit {
			balance += entry.AmountCents
		} else {
			balance -= entry.AmountCents
		}
	}
	return balance
}

// fakeAnalyticsStore serves canned aggregates through overridable function
// fields. Unset fields return zero values.
type fakeAnalyticsStore struct {
	revenueFn  func(from, to time.Time) (store.RevenueTotals, error)
	seriesFn   func(from, to time.Time) ([]store.DailyRevenue, error)
	topFn      func(from, to time.Time, limit int) ([]store.ProductSales, error)
	newCustFn  func(from, to time.Time) (int, error)
	activeFn   func(from, to time.Time) (int, error)
	snapshotFn func() (store.InventoryTotals, error)
}

func (f *fakeAnalyticsStore) RevenueBetween(
	_ context.Context,
	from, to time.Time,
) (store.RevenueTotals, error) {
	if f.revenueFn == nil {
		return store.RevenueTotals{}, nil
	}
	return f.revenueFn(from, to)
}

func (f *fakeAnalyticsStore) DailyRevenueSeries(
	_ context.Context,
	from, to time.Time,
) ([]store.DailyRevenue, error) {
	if f.seriesFn == nil {
		return nil, nil
	}
	return f.seriesFn(from, to)
}

func (f *fakeAnalyticsStore) TopProducts(
	_ context.Context,
	from, to time.Time,
	limit int,
) ([]store.ProductSales, error) {
	if f.topFn == nil {
		return nil, nil
	}
	return f.topFn(from, to, limit)
}

func (f *fakeAnalyticsStore) NewCustomerCount(_ context.Context, from, to time.Time) (int, error) {
	if f.newCustFn == nil {
		return 0, nil
	}
	return f.newCustFn(from, to)
}

func (f *fakeAnalyticsStore) ActiveCustomerCount(_ context.Context, from, to time.Time) (int, error) {
	if f.activeFn == nil {
		return 0, nil
	}
	return f.activeFn(from, to)
}

func (f *fakeAnalyticsStore) InventorySnapshot(_ context.Context) (store.InventoryTotals, error) {
	if f.snapshotFn == nil {
		return store.InventoryTotals{}, nil
	}
	return f.snapshotFn()
}

// fakeBackupStore is a map-backed BackupStore with a (scope, bucket) index.
type fakeBackupStore struct {
	backups   map[uuid.UUID]*domain.Backup
	createErr error
	updateErr error

	// findMisses makes the next N lookups report not-found even when the
	// bucket is taken, to model a concurrent insert between the check and
	// the create.
	findMisses int
}

func newFakeBackupStore(backups ...*domain.Backup) *fakeBackupStore {
	s := &fakeBackupStore{backups: make(map[uuid.UUID]*domain.Backup)}
	for _, b := range backups {
		s.backups[b.ID] = b
	}
	return s
}

func (f *fakeBackupStore) Create(_ context.Context, backup *domain.Backup) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.backups {
		if existing.Scope == backup.Scope && existing.HourBucket == backup.HourBucket {
			return store.ErrBackupBucketExists
		}
	}
	f.backups[backup.ID] = backup
	return nil
}

func (f *fakeBackupStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Backup, error) {
	backup, ok := f.backups[id]
	if !ok {
		return nil, store.ErrBackupNotFound
	}
	return backup, nil
}

func (f *fakeBackupStore) FindByScopeAndBucket(
	_ context.Context,
	scope domain.BackupScope,
	bucket string,
) (*domain.Backup, error) {
	if f.findMisses > 0 {
		f.findMisses--
		return nil, store.ErrBackupNotFound
	}
	for _, backup := range f.backups {
		if backup.Scope == scope && backup.HourBucket == bucket {
			return backup, nil
		}
	}
	return nil, store.ErrBackupNotFound
}

func (f *fakeBackupStore) ListRecent(_ context.Context, limit int) ([]*domain.Backup, error) {
	var out []*domain.Backup
	for _, backup := range f.backups {
		out = append(out, backup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBackupStore) Update(_ context.Context, backup *domain.Backup) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.backups[backup.ID]; !ok {
		return store.ErrBackupNotFound
	}
	f.backups[backup.ID] = backup
	return nil
}

func (f *fakeBackupStore) DeleteOlderThan(_ context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var removed int64
	for id, backup := range f.backups {
		terminal := backup.Status == domain.BackupStatusCompleted ||
			backup.Status == domain.BackupStatusFailed
		if terminal && backup.CreatedAt.Before(cutoff) {
			delete(f.backups, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeBackupStore) WithTx(_ *sql.Tx) store.BackupStore { return f }

// fakeArchiver returns canned archive results.
type fakeArchiver struct {
	location   string
	sizeBytes  int64
	checksum   string
	archiveErr error
	pruned     int
	pruneErr   error
	calls      int
}

func (f *fakeArchiver) Archive(
	_ context.Context,
	scope domain.BackupScope,
) (string, int64, string, error) {
	f.calls++
	if f.archiveErr != nil {
		return "", 0, "", f.archiveErr
	}
	location := f.location
	if location == "" {
		location = "/backups/" + string(scope) + ".jsonl.gz"
	}
	return location, f.sizeBytes, f.checksum, nil
}

func (f *fakeArchiver) PruneFiles(_ context.Context, _ time.Time) (int, error) {
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	return f.pruned, nil
}

// fakeUserStore is a map-backed UserStore that "hashes" passwords with a
// recognizable prefix.
type fakeUserStore struct {
	users     map[uuid.UUID]*domain.User
	createErr error
	getErr    error
}

func newFakeUserStore(users ...*domain.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (f *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return store.ErrEmailExists
		}
	}
	user.HashedPassword = "hashed:" + user.Password
	user.Password = ""
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeUserStore) Update(_ context.Context, user *domain.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return store.ErrUserNotFound
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) WithTx(_ *sql.Tx) store.UserStore { return f }

// fakeVerifier matches the fakeUserStore's prefix hashing.
type fakeVerifier struct{}

func (fakeVerifier) Compare(hashedPassword, password string) error {
	if hashedPassword == "hashed:"+password {
		return nil
	}
	return ErrInvalidCredentials
}
