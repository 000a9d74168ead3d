package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RevenueTotals aggregates completed invoices over a window.
type RevenueTotals struct {
	RevenueCents int64
	TaxCents     int64
	InvoiceCount int
	ItemsSold    int
}

// DailyRevenue is one day of the revenue series. Day is midnight UTC.
type DailyRevenue struct {
	Day          time.Time
	RevenueCents int64
	InvoiceCount int
}

// ProductSales aggregates sales of one product over a window.
type ProductSales struct {
	ProductID    uuid.UUID
	Description  string
	QuantitySold int
	RevenueCents int64
}

// InventoryTotals is a point-in-time snapshot of stock.
type InventoryTotals struct {
	ProductCount     int
	UnitCount        int
	ValuationCents   int64
	TotalWeightGrams float64
	LowStockCount    int
}

// AnalyticsStore defines the read-only aggregation queries behind the KPI and
// reporting services. Only completed invoices count toward revenue; drafts
// and cancellations are excluded at the query level.
//
// There is no WithTx variant: these are single aggregate reads and never
// participate in multi-statement transactions.
type AnalyticsStore interface {
	// RevenueBetween aggregates completed invoices issued in [from, to).
	RevenueBetween(ctx context.Context, from, to time.Time) (RevenueTotals, error)

	// DailyRevenueSeries returns one row per day in [from, to), including
	// zero rows for days without sales, ordered by day ascending.
	DailyRevenueSeries(ctx context.Context, from, to time.Time) ([]DailyRevenue, error)

	// TopProducts returns the best-selling products by revenue in [from, to),
	// at most limit rows.
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)

	// NewCustomerCount counts customers created in [from, to).
	NewCustomerCount(ctx context.Context, from, to time.Time) (int, error)

	// ActiveCustomerCount counts distinct customers with a completed invoice
	// issued in [from, to).
	ActiveCustomerCount(ctx context.Context, from, to time.Time) (int, error)

	// InventorySnapshot aggregates current stock levels and valuation.
	InventorySnapshot(ctx context.Context) (InventoryTotals, error)
}
