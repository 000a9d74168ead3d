package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/store"
)

// PostgresAnalyticsStore implements the store.AnalyticsStore interface.
// All aggregates are computed inside PostgreSQL; this store never loads row
// sets into memory to sum them.
type PostgresAnalyticsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAnalyticsStore creates a new PostgreSQL implementation of the
// AnalyticsStore interface. If log is nil, the process default logger is used.
func NewPostgresAnalyticsStore(db store.DBTX, log *slog.Logger) *PostgresAnalyticsStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &PostgresAnalyticsStore{
		db:     db,
		logger: log.With(slog.String("component", "analytics_store")),
	}
}

// Ensure PostgresAnalyticsStore implements store.AnalyticsStore interface
var _ store.AnalyticsStore = (*PostgresAnalyticsStore)(nil)

// RevenueBetween implements store.AnalyticsStore.RevenueBetween
func (s *PostgresAnalyticsStore) RevenueBetween(ctx context.Context, from, to time.Time) (store.RevenueTotals, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var totals store.RevenueTotals

	query := `
		SELECT COALESCE(SUM(total_cents), 0), COALESCE(SUM(tax_cents), 0), COUNT(*)
		FROM invoices
		WHERE status = 'completed' AND issued_at >= $1 AND issued_at < $2
	`
	err := s.db.QueryRowContext(ctx, query, from, to).Scan(
		&totals.RevenueCents,
		&totals.TaxCents,
		&totals.InvoiceCount,
	)
	if err != nil {
		log.Error("failed to aggregate revenue", slog.String("error", err.Error()))
		return store.RevenueTotals{}, MapError(err)
	}

	itemsQuery := `
		SELECT COALESCE(SUM(it.quantity), 0)
		FROM invoice_items it
		JOIN invoices i ON i.id = it.invoice_id
		WHERE i.status = 'completed' AND i.issued_at >= $1 AND i.issued_at < $2
	`
	err = s.db.QueryRowContext(ctx, itemsQuery, from, to).Scan(&totals.ItemsSold)
	if err != nil {
		log.Error("failed to aggregate items sold", slog.String("error", err.Error()))
		return store.RevenueTotals{}, MapError(err)
	}

	return totals, nil
}

// DailyRevenueSeries implements store.AnalyticsStore.DailyRevenueSeries
// Days without sales appear as zero rows so trend math sees a complete series.
func (s *PostgresAnalyticsStore) DailyRevenueSeries(ctx context.Context, from, to time.Time) ([]store.DailyRevenue, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT d::timestamptz,
			COALESCE(SUM(i.total_cents), 0),
			COUNT(i.id)
		FROM generate_series($1::date, $2::date - interval '1 day', interval '1 day') AS d
		LEFT JOIN invoices i
			ON i.status = 'completed'
			AND i.issued_at >= d
			AND i.issued_at < d + interval '1 day'
		GROUP BY d
		ORDER BY d
	`

	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		log.Error("failed to query daily revenue series", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var series []store.DailyRevenue
	for rows.Next() {
		var day store.DailyRevenue
		if err := rows.Scan(&day.Day, &day.RevenueCents, &day.InvoiceCount); err != nil {
			return nil, err
		}
		series = append(series, day)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return series, nil
}

// TopProducts implements store.AnalyticsStore.TopProducts
func (s *PostgresAnalyticsStore) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]store.ProductSales, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT it.product_id, MAX(it.description),
			COALESCE(SUM(it.quantity), 0), COALESCE(SUM(it.line_total_cents), 0)
		FROM invoice_items it
		JOIN invoices i ON i.id = it.invoice_id
		WHERE i.status = 'completed' AND i.issued_at >= $1 AND i.issued_at < $2
		GROUP BY it.product_id
		ORDER BY SUM(it.line_total_cents) DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		log.Error("failed to query top products", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer closeRows(rows, log)

	var sales []store.ProductSales
	for rows.Next() {
		var row store.ProductSales
		if err := rows.Scan(&row.ProductID, &row.Description, &row.QuantitySold, &row.RevenueCents); err != nil {
			return nil, err
		}
		sales = append(sales, row)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return sales, nil
}

// NewCustomerCount implements store.AnalyticsStore.NewCustomerCount
func (s *PostgresAnalyticsStore) NewCustomerCount(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM customers WHERE created_at >= $1 AND created_at < $2`
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// ActiveCustomerCount implements store.AnalyticsStore.ActiveCustomerCount
func (s *PostgresAnalyticsStore) ActiveCustomerCount(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(DISTINCT customer_id)
		FROM invoices
		WHERE status = 'completed' AND issued_at >= $1 AND issued_at < $2
	`
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&count); err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// InventorySnapshot implements store.AnalyticsStore.InventorySnapshot
func (s *PostgresAnalyticsStore) InventorySnapshot(ctx context.Context) (store.InventoryTotals, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var totals store.InventoryTotals

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(quantity_on_hand), 0),
			COALESCE(SUM(quantity_on_hand::bigint * unit_price_cents), 0),
			COALESCE(SUM(quantity_on_hand * weight_grams), 0),
			COUNT(*) FILTER (WHERE quantity_on_hand <= low_stock_threshold)
		FROM products
	`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&totals.ProductCount,
		&totals.UnitCount,
		&totals.ValuationCents,
		&totals.TotalWeightGrams,
		&totals.LowStockCount,
	)
	if err != nil {
		log.Error("failed to aggregate inventory snapshot", slog.String("error", err.Error()))
		return store.InventoryTotals{}, MapError(err)
	}

	return totals, nil
}
