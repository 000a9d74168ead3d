package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aurumhq/aurum-api/internal/cache"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

// Trend directions reported by RevenueKPIs. The direction is the sign of a
// least-squares slope fitted over the daily revenue series of the window.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// significanceNote qualifies the Significant flag: it comes from a fixed
// percentage threshold, not a statistical test, and callers should treat it
// as a rough signal.
const significanceNote = "approximate: fixed 10% change threshold"

// significanceThresholdPct is the absolute growth percentage above which a
// change is flagged significant.
const significanceThresholdPct = 10.0

// TrendPoint is one day of the revenue series behind a KPI window.
type TrendPoint struct {
	Day          time.Time `json:"day"`
	RevenueCents int64     `json:"revenue_cents"`
}

// RevenueKPIs compares a revenue window against the equal-length window
// immediately before it. GrowthRatePct is nil when the previous window had
// no revenue, since a growth rate against zero is undefined.
type RevenueKPIs struct {
	WindowStart          time.Time    `json:"window_start"`
	WindowEnd            time.Time    `json:"window_end"`
	CurrentRevenueCents  int64        `json:"current_revenue_cents"`
	CurrentTaxCents      int64        `json:"current_tax_cents"`
	InvoiceCount         int          `json:"invoice_count"`
	ItemsSold            int          `json:"items_sold"`
	PreviousRevenueCents int64        `json:"previous_revenue_cents"`
	GrowthRatePct        *float64     `json:"growth_rate_pct"`
	TrendDirection       string       `json:"trend_direction"`
	TrendData            []TrendPoint `json:"trend_data"`
	Significant          bool         `json:"significant"`
	SignificanceNote     string       `json:"significance_note"`
}

// InventorySummary is the stock portion of the dashboard.
type InventorySummary struct {
	ProductCount     int     `json:"product_count"`
	UnitCount        int     `json:"unit_count"`
	ValuationCents   int64   `json:"valuation_cents"`
	TotalWeightGrams float64 `json:"total_weight_grams"`
	LowStockCount    int     `json:"low_stock_count"`
}

// DashboardSnapshot is the single-call overview behind the shop dashboard:
// today's and the current month's sales next to customer movement and stock.
type DashboardSnapshot struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	TodayRevenueCents int64            `json:"today_revenue_cents"`
	TodayInvoices     int              `json:"today_invoices"`
	MonthRevenueCents int64            `json:"month_revenue_cents"`
	MonthInvoices     int              `json:"month_invoices"`
	MonthItemsSold    int              `json:"month_items_sold"`
	NewCustomers      int              `json:"new_customers"`
	ActiveCustomers   int              `json:"active_customers"`
	Inventory         InventorySummary `json:"inventory"`
}

// KPIService computes revenue KPIs and the dashboard snapshot. Results are
// served from the cache when present; recomputation happens only on a miss
// or when the warmer runs after the cache was invalidated.
type KPIService interface {
	// RevenueKPIs compares [start, end) against the equal-length window
	// immediately before it and fits a trend over the daily series.
	// Returns ErrInvalidWindow unless end is after start.
	RevenueKPIs(ctx context.Context, start, end time.Time) (*RevenueKPIs, error)

	// DashboardSnapshot aggregates today's and the current month's activity
	// with a stock snapshot.
	DashboardSnapshot(ctx context.Context) (*DashboardSnapshot, error)

	// WarmCurrentPeriod recomputes and caches the month-to-date KPIs and
	// the dashboard snapshot. The periodic kpi_snapshot task calls this so
	// that dashboards rarely pay the recomputation cost.
	WarmCurrentPeriod(ctx context.Context) error

	// Recomputes reports how many times KPIs were computed from the store
	// rather than served from the cache.
	Recomputes() int64
}

// kpiServiceImpl implements the KPIService interface.
type kpiServiceImpl struct {
	analyticsStore store.AnalyticsStore
	cache          *cache.Cache
	logger         *slog.Logger
	timeFunc       func() time.Time
	recomputes     atomic.Int64
}

// NewKPIService creates a new KPIService.
func NewKPIService(
	analyticsStore store.AnalyticsStore,
	dataCache *cache.Cache,
	logger *slog.Logger,
) (KPIService, error) {
	if analyticsStore == nil {
		return nil, domain.NewValidationError("analyticsStore", "cannot be nil", domain.ErrValidation)
	}
	if dataCache == nil {
		return nil, domain.NewValidationError("dataCache", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &kpiServiceImpl{
		analyticsStore: analyticsStore,
		cache:          dataCache,
		logger:         logger.With("component", "kpi_service"),
		timeFunc:       time.Now,
	}, nil
}

func (s *kpiServiceImpl) RevenueKPIs(ctx context.Context, start, end time.Time) (*RevenueKPIs, error) {
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}

	params := cache.HashParams(struct{ Start, End time.Time }{start.UTC(), end.UTC()})
	if data, ok := s.cache.Get(ctx, cache.NamespaceKPI, cache.KeyRevenue, params); ok {
		var cached RevenueKPIs
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached kpis", "params", params)
	}

	kpis, err := s.computeRevenueKPIs(ctx, start, end)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(kpis); err == nil {
		s.cache.Set(ctx, cache.NamespaceKPI, data, cache.KeyRevenue, params)
	}

	return kpis, nil
}

// computeRevenueKPIs does the actual aggregation work of RevenueKPIs,
// bypassing the cache.
func (s *kpiServiceImpl) computeRevenueKPIs(
	ctx context.Context,
	start, end time.Time,
) (*RevenueKPIs, error) {
	s.recomputes.Add(1)

	current, err := s.analyticsStore.RevenueBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate current window: %w", err)
	}

	window := end.Sub(start)
	previous, err := s.analyticsStore.RevenueBetween(ctx, start.Add(-window), start)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate previous window: %w", err)
	}

	series, err := s.analyticsStore.DailyRevenueSeries(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily series: %w", err)
	}

	kpis := &RevenueKPIs{
		WindowStart:          start.UTC(),
		WindowEnd:            end.UTC(),
		CurrentRevenueCents:  current.RevenueCents,
		CurrentTaxCents:      current.TaxCents,
		InvoiceCount:         current.InvoiceCount,
		ItemsSold:            current.ItemsSold,
		PreviousRevenueCents: previous.RevenueCents,
		TrendDirection:       trendDirection(series),
		TrendData:            toTrendPoints(series),
		SignificanceNote:     significanceNote,
	}

	if previous.RevenueCents != 0 {
		growth := float64(current.RevenueCents-previous.RevenueCents) /
			float64(previous.RevenueCents) * 100
		kpis.GrowthRatePct = &growth
		if growth > significanceThresholdPct || growth < -significanceThresholdPct {
			kpis.Significant = true
		}
	}

	return kpis, nil
}

func (s *kpiServiceImpl) DashboardSnapshot(ctx context.Context) (*DashboardSnapshot, error) {
	if data, ok := s.cache.Get(ctx, cache.NamespaceAggregation, cache.KeyDashboard); ok {
		var cached DashboardSnapshot
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached dashboard")
	}

	snapshot, err := s.computeDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snapshot); err == nil {
		s.cache.Set(ctx, cache.NamespaceAggregation, data, cache.KeyDashboard)
	}

	return snapshot, nil
}

func (s *kpiServiceImpl) computeDashboard(ctx context.Context) (*DashboardSnapshot, error) {
	s.recomputes.Add(1)

	now := s.timeFunc().UTC()
	dayStart := now.Truncate(24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	today, err := s.analyticsStore.RevenueBetween(ctx, dayStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate today: %w", err)
	}

	month, err := s.analyticsStore.RevenueBetween(ctx, monthStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate month to date: %w", err)
	}

	newCustomers, err := s.analyticsStore.NewCustomerCount(ctx, monthStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count new customers: %w", err)
	}

	activeCustomers, err := s.analyticsStore.ActiveCustomerCount(ctx, monthStart, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count active customers: %w", err)
	}

	stock, err := s.analyticsStore.InventorySnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot inventory: %w", err)
	}

	return &DashboardSnapshot{
		GeneratedAt:       now,
		TodayRevenueCents: today.RevenueCents,
		TodayInvoices:     today.InvoiceCount,
		MonthRevenueCents: month.RevenueCents,
		MonthInvoices:     month.InvoiceCount,
		MonthItemsSold:    month.ItemsSold,
		NewCustomers:      newCustomers,
		ActiveCustomers:   activeCustomers,
		Inventory: InventorySummary{
			ProductCount:     stock.ProductCount,
			UnitCount:        stock.UnitCount,
			ValuationCents:   stock.ValuationCents,
			TotalWeightGrams: stock.TotalWeightGrams,
			LowStockCount:    stock.LowStockCount,
		},
	}, nil
}

func (s *kpiServiceImpl) WarmCurrentPeriod(ctx context.Context) error {
	now := s.timeFunc().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	// The canonical current-month window is warmed under the same key a
	// direct query for it would use, so dashboards asking for "this month"
	// hit the cache.
	kpis, err := s.computeRevenueKPIs(ctx, monthStart, monthEnd)
	if err != nil {
		return fmt.Errorf("failed to warm current month kpis: %w", err)
	}
	params := cache.HashParams(struct{ Start, End time.Time }{monthStart, monthEnd})
	if data, err := json.Marshal(kpis); err == nil {
		s.cache.Set(ctx, cache.NamespaceKPI, data, cache.KeyRevenue, params)
	}

	snapshot, err := s.computeDashboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm dashboard: %w", err)
	}
	if data, err := json.Marshal(snapshot); err == nil {
		s.cache.Set(ctx, cache.NamespaceAggregation, data, cache.KeyDashboard)
	}

	s.logger.InfoContext(ctx, "current period kpis warmed",
		"month_revenue_cents", kpis.CurrentRevenueCents)
	return nil
}

func (s *kpiServiceImpl) Recomputes() int64 {
	return s.recomputes.Load()
}

// trendDirection fits a least-squares line over the series and reports the
// sign of its slope. Fewer than two points cannot carry a trend.
func trendDirection(series []store.DailyRevenue) string {
	if len(series) < 2 {
		return TrendStable
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, point := range series {
		x := float64(i)
		y := float64(point.RevenueCents)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return TrendStable
	}

	slope := (n*sumXY - sumX*sumY) / denom
	switch {
	case slope > 0:
		return TrendIncreasing
	case slope < 0:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func toTrendPoints(series []store.DailyRevenue) []TrendPoint {
	points := make([]TrendPoint, len(series))
	for i, point := range series {
		points[i] = TrendPoint{Day: point.Day, RevenueCents: point.RevenueCents}
	}
	return points
}
