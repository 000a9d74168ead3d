package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/cache"
	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

const (
	// forecastHistoryDays is how much daily history feeds the forecast fit.
	forecastHistoryDays = 90

	// defaultForecastHorizon is the projection length used when the caller
	// does not ask for a specific horizon, and the one the periodic
	// forecast_refresh task keeps warm.
	defaultForecastHorizon = 14

	// anomalyWindowDays is the size of the trailing window scanned for
	// revenue anomalies.
	anomalyWindowDays = 30

	// anomalyZThreshold flags a day whose revenue sits this many standard
	// deviations from the window mean.
	anomalyZThreshold = 2.5
)

// ForecastPoint is one projected day of revenue.
type ForecastPoint struct {
	Day           time.Time `json:"day"`
	ForecastCents int64     `json:"forecast_cents"`
}

// RevenueForecast projects daily revenue forward with a least-squares line
// fitted over recent history. Projections are clamped at zero; the fit
// carries no seasonality.
type RevenueForecast struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	HistoryDays      int             `json:"history_days"`
	HorizonDays      int             `json:"horizon_days"`
	SlopeCentsPerDay float64         `json:"slope_cents_per_day"`
	Points           []ForecastPoint `json:"points"`
}

// TopProduct aggregates sales of one product over a report window.
type TopProduct struct {
	ProductID    uuid.UUID `json:"product_id"`
	Description  string    `json:"description"`
	QuantitySold int       `json:"quantity_sold"`
	RevenueCents int64     `json:"revenue_cents"`
}

// DailySalesReport summarizes one calendar day of completed sales.
type DailySalesReport struct {
	Day          time.Time    `json:"day"`
	RevenueCents int64        `json:"revenue_cents"`
	TaxCents     int64        `json:"tax_cents"`
	InvoiceCount int          `json:"invoice_count"`
	ItemsSold    int          `json:"items_sold"`
	NewCustomers int          `json:"new_customers"`
	TopProducts  []TopProduct `json:"top_products"`
}

// WeeklySummary covers the seven full days before its WeekEnd.
type WeeklySummary struct {
	WeekStart       time.Time    `json:"week_start"`
	WeekEnd         time.Time    `json:"week_end"`
	RevenueCents    int64        `json:"revenue_cents"`
	TaxCents        int64        `json:"tax_cents"`
	InvoiceCount    int          `json:"invoice_count"`
	ItemsSold       int          `json:"items_sold"`
	ActiveCustomers int          `json:"active_customers"`
	DailySeries     []TrendPoint `json:"daily_series"`
	TopProducts     []TopProduct `json:"top_products"`
}

// RevenueAnomaly is one day whose revenue sits unusually far from the
// trailing mean.
type RevenueAnomaly struct {
	Day          time.Time `json:"day"`
	RevenueCents int64     `json:"revenue_cents"`
	ZScore       float64   `json:"z_score"`
}

// AnomalyReport is the outcome of one anomaly scan.
type AnomalyReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
	MeanCents   float64          `json:"mean_cents"`
	StdDevCents float64          `json:"stddev_cents"`
	Anomalies   []RevenueAnomaly `json:"anomalies"`
}

// AnalyticsService produces forecasts, sales reports, chart series, and
// anomaly scans. Reads go through the cache; the periodic tasks rebuild the
// cached artifacts so interactive reads rarely recompute.
type AnalyticsService interface {
	// Forecast projects daily revenue for the given horizon. A non-positive
	// horizon uses the default.
	Forecast(ctx context.Context, horizonDays int) (*RevenueForecast, error)

	// RefreshForecast recomputes the default-horizon forecast and replaces
	// the cached copy. The periodic forecast_refresh task calls this.
	RefreshForecast(ctx context.Context) error

	// DailySalesReport returns the report for one calendar day, building
	// and caching it when absent.
	DailySalesReport(ctx context.Context, day time.Time) (*DailySalesReport, error)

	// BuildDailySalesReport builds and caches the report for one calendar
	// day. The periodic daily_sales_report task calls this.
	BuildDailySalesReport(ctx context.Context, day time.Time) error

	// WeeklySummary returns the summary of the seven full days before
	// weekEnding, building and caching it when absent.
	WeeklySummary(ctx context.Context, weekEnding time.Time) (*WeeklySummary, error)

	// BuildWeeklySummary builds and caches the summary of the seven full
	// days before weekEnding. The periodic weekly_summary task calls this.
	BuildWeeklySummary(ctx context.Context, weekEnding time.Time) error

	// RevenueSeries returns the zero-filled daily revenue series in
	// [from, to). Returns ErrInvalidWindow unless to is after from.
	RevenueSeries(ctx context.Context, from, to time.Time) ([]TrendPoint, error)

	// TopProducts returns the best sellers by revenue in [from, to).
	// Returns ErrInvalidWindow unless to is after from.
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)

	// ScanRevenueAnomalies scans the trailing window for days whose revenue
	// deviates beyond the z-score threshold, caches the report, and returns
	// how many anomalies it found. The periodic anomaly_scan task calls
	// this.
	ScanRevenueAnomalies(ctx context.Context) (int, error)

	// Anomalies returns the most recent anomaly report, running a scan when
	// none is cached.
	Anomalies(ctx context.Context) (*AnomalyReport, error)
}

// analyticsServiceImpl implements the AnalyticsService interface.
type analyticsServiceImpl struct {
	analyticsStore store.AnalyticsStore
	cache          *cache.Cache
	logger         *slog.Logger
	timeFunc       func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(
	analyticsStore store.AnalyticsStore,
	dataCache *cache.Cache,
	logger *slog.Logger,
) (AnalyticsService, error) {
	if analyticsStore == nil {
		return nil, domain.NewValidationError("analyticsStore", "cannot be nil", domain.ErrValidation)
	}
	if dataCache == nil {
		return nil, domain.NewValidationError("dataCache", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &analyticsServiceImpl{
		analyticsStore: analyticsStore,
		cache:          dataCache,
		logger:         logger.With("component", "analytics_service"),
		timeFunc:       time.Now,
	}, nil
}

func (s *analyticsServiceImpl) Forecast(ctx context.Context, horizonDays int) (*RevenueForecast, error) {
	if horizonDays <= 0 {
		horizonDays = defaultForecastHorizon
	}

	params := cache.HashParams(struct{ Horizon int }{horizonDays})
	if data, ok := s.cache.Get(ctx, cache.NamespaceForecast, cache.KeyRevenue, params); ok {
		var cached RevenueForecast
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached forecast")
	}

	forecast, err := s.computeForecast(ctx, horizonDays)
	if err != nil {
		return nil, err
	}
	s.cacheForecast(ctx, forecast)

	return forecast, nil
}

func (s *analyticsServiceImpl) RefreshForecast(ctx context.Context) error {
	forecast, err := s.computeForecast(ctx, defaultForecastHorizon)
	if err != nil {
		return fmt.Errorf("failed to refresh forecast: %w", err)
	}
	s.cacheForecast(ctx, forecast)

	s.logger.InfoContext(ctx, "revenue forecast refreshed",
		"horizon_days", forecast.HorizonDays,
		"slope_cents_per_day", forecast.SlopeCentsPerDay)
	return nil
}

func (s *analyticsServiceImpl) cacheForecast(ctx context.Context, forecast *RevenueForecast) {
	params := cache.HashParams(struct{ Horizon int }{forecast.HorizonDays})
	if data, err := json.Marshal(forecast); err == nil {
		s.cache.Set(ctx, cache.NamespaceForecast, data, cache.KeyRevenue, params)
	}
}

// computeForecast fits a least-squares line over the trailing history and
// projects it forward. Partial today is excluded from the fit.
func (s *analyticsServiceImpl) computeForecast(
	ctx context.Context,
	horizonDays int,
) (*RevenueForecast, error) {
	now := s.timeFunc().UTC()
	historyEnd := now.Truncate(24 * time.Hour)
	historyStart := historyEnd.AddDate(0, 0, -forecastHistoryDays)

	series, err := s.analyticsStore.DailyRevenueSeries(ctx, historyStart, historyEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast history: %w", err)
	}

	slope, intercept := linearFit(series)

	points := make([]ForecastPoint, 0, horizonDays)
	for offset := 0; offset < horizonDays; offset++ {
		x := float64(len(series) + offset)
		projected := intercept + slope*x
		if projected < 0 {
			projected = 0
		}
		points = append(points, ForecastPoint{
			Day:           historyEnd.AddDate(0, 0, offset),
			ForecastCents: int64(math.Round(projected)),
		})
	}

	return &RevenueForecast{
		GeneratedAt:      now,
		HistoryDays:      forecastHistoryDays,
		HorizonDays:      horizonDays,
		SlopeCentsPerDay: slope,
		Points:           points,
	}, nil
}

func (s *analyticsServiceImpl) DailySalesReport(
	ctx context.Context,
	day time.Time,
) (*DailySalesReport, error) {
	day = day.UTC().Truncate(24 * time.Hour)

	if data, ok := s.cache.Get(ctx, cache.NamespaceReport, cache.KeyDailyReport, day.Format("2006-01-02")); ok {
		var cached DailySalesReport
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached daily report")
	}

	return s.buildDailyReport(ctx, day)
}

func (s *analyticsServiceImpl) BuildDailySalesReport(ctx context.Context, day time.Time) error {
	report, err := s.buildDailyReport(ctx, day.UTC().Truncate(24*time.Hour))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "daily sales report built",
		"day", report.Day.Format("2006-01-02"),
		"revenue_cents", report.RevenueCents,
		"invoices", report.InvoiceCount)
	return nil
}

func (s *analyticsServiceImpl) buildDailyReport(
	ctx context.Context,
	day time.Time,
) (*DailySalesReport, error) {
	next := day.AddDate(0, 0, 1)

	totals, err := s.analyticsStore.RevenueBetween(ctx, day, next)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate day: %w", err)
	}

	top, err := s.analyticsStore.TopProducts(ctx, day, next, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	newCustomers, err := s.analyticsStore.NewCustomerCount(ctx, day, next)
	if err != nil {
		return nil, fmt.Errorf("failed to count new customers: %w", err)
	}

	report := &DailySalesReport{
		Day:          day,
		RevenueCents: totals.RevenueCents,
		TaxCents:     totals.TaxCents,
		InvoiceCount: totals.InvoiceCount,
		ItemsSold:    totals.ItemsSold,
		NewCustomers: newCustomers,
		TopProducts:  toTopProducts(top),
	}

	if data, err := json.Marshal(report); err == nil {
		s.cache.Set(ctx, cache.NamespaceReport, data, cache.KeyDailyReport, day.Format("2006-01-02"))
	}

	return report, nil
}

func (s *analyticsServiceImpl) WeeklySummary(
	ctx context.Context,
	weekEnding time.Time,
) (*WeeklySummary, error) {
	weekEnd := weekEnding.UTC().Truncate(24 * time.Hour)

	if data, ok := s.cache.Get(ctx, cache.NamespaceReport, cache.KeyWeeklyReport, weekEnd.Format("2006-01-02")); ok {
		var cached WeeklySummary
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached weekly summary")
	}

	return s.buildWeeklySummary(ctx, weekEnd)
}

func (s *analyticsServiceImpl) BuildWeeklySummary(ctx context.Context, weekEnding time.Time) error {
	summary, err := s.buildWeeklySummary(ctx, weekEnding.UTC().Truncate(24*time.Hour))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "weekly summary built",
		"week_start", summary.WeekStart.Format("2006-01-02"),
		"revenue_cents", summary.RevenueCents,
		"invoices", summary.InvoiceCount)
	return nil
}

func (s *analyticsServiceImpl) buildWeeklySummary(
	ctx context.Context,
	weekEnd time.Time,
) (*WeeklySummary, error) {
	weekStart := weekEnd.AddDate(0, 0, -7)

	totals, err := s.analyticsStore.RevenueBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate week: %w", err)
	}

	series, err := s.analyticsStore.DailyRevenueSeries(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load week series: %w", err)
	}

	top, err := s.analyticsStore.TopProducts(ctx, weekStart, weekEnd, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	active, err := s.analyticsStore.ActiveCustomerCount(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count active customers: %w", err)
	}

	summary := &WeeklySummary{
		WeekStart:       weekStart,
		WeekEnd:         weekEnd,
		RevenueCents:    totals.RevenueCents,
		TaxCents:        totals.TaxCents,
		InvoiceCount:    totals.InvoiceCount,
		ItemsSold:       totals.ItemsSold,
		ActiveCustomers: active,
		DailySeries:     toTrendPoints(series),
		TopProducts:     toTopProducts(top),
	}

	if data, err := json.Marshal(summary); err == nil {
		s.cache.Set(ctx, cache.NamespaceReport, data, cache.KeyWeeklyReport, weekEnd.Format("2006-01-02"))
	}

	return summary, nil
}

func (s *analyticsServiceImpl) RevenueSeries(
	ctx context.Context,
	from, to time.Time,
) ([]TrendPoint, error) {
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}

	params := cache.HashParams(struct{ From, To time.Time }{from.UTC(), to.UTC()})
	if data, ok := s.cache.Get(ctx, cache.NamespaceChart, cache.KeyRevenueSeries, params); ok {
		var cached []TrendPoint
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached series")
	}

	series, err := s.analyticsStore.DailyRevenueSeries(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue series: %w", err)
	}

	points := toTrendPoints(series)
	if data, err := json.Marshal(points); err == nil {
		s.cache.Set(ctx, cache.NamespaceChart, data, cache.KeyRevenueSeries, params)
	}

	return points, nil
}

func (s *analyticsServiceImpl) TopProducts(
	ctx context.Context,
	from, to time.Time,
	limit int,
) ([]TopProduct, error) {
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}
	if limit <= 0 {
		limit = 10
	}

	params := cache.HashParams(struct {
		From, To time.Time
		Limit    int
	}{from.UTC(), to.UTC(), limit})
	if data, ok := s.cache.Get(ctx, cache.NamespaceChart, cache.KeyTopProducts, params); ok {
		var cached []TopProduct
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached ranking")
	}

	top, err := s.analyticsStore.TopProducts(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	rows := toTopProducts(top)
	if data, err := json.Marshal(rows); err == nil {
		s.cache.Set(ctx, cache.NamespaceChart, data, cache.KeyTopProducts, params)
	}

	return rows, nil
}

func (s *analyticsServiceImpl) ScanRevenueAnomalies(ctx context.Context) (int, error) {
	report, err := s.scanAnomalies(ctx)
	if err != nil {
		return 0, err
	}
	return len(report.Anomalies), nil
}

func (s *analyticsServiceImpl) Anomalies(ctx context.Context) (*AnomalyReport, error) {
	if data, ok := s.cache.Get(ctx, cache.NamespaceAggregation, cache.KeyAnomalies); ok {
		var cached AnomalyReport
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cached anomaly report")
	}

	return s.scanAnomalies(ctx)
}

// scanAnomalies z-scores each day of the trailing window against the window
// mean. A flat window (zero standard deviation) has no anomalies.
func (s *analyticsServiceImpl) scanAnomalies(ctx context.Context) (*AnomalyReport, error) {
	now := s.timeFunc().UTC()
	windowEnd := now.Truncate(24 * time.Hour)
	windowStart := windowEnd.AddDate(0, 0, -anomalyWindowDays)

	series, err := s.analyticsStore.DailyRevenueSeries(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load anomaly window: %w", err)
	}

	mean, stddev := meanStdDev(series)

	report := &AnomalyReport{
		GeneratedAt: now,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		MeanCents:   mean,
		StdDevCents: stddev,
	}

	if stddev > 0 {
		for _, point := range series {
			z := (float64(point.RevenueCents) - mean) / stddev
			if math.Abs(z) >= anomalyZThreshold {
				report.Anomalies = append(report.Anomalies, RevenueAnomaly{
					Day:          point.Day,
					RevenueCents: point.RevenueCents,
					ZScore:       z,
				})
			}
		}
	}

	if data, err := json.Marshal(report); err == nil {
		s.cache.Set(ctx, cache.NamespaceAggregation, data, cache.KeyAnomalies)
	}

	return report, nil
}

// linearFit returns the least-squares slope and intercept of the series
// with days indexed from zero. A series shorter than two points is flat.
func linearFit(series []store.DailyRevenue) (slope, intercept float64) {
	if len(series) == 0 {
		return 0, 0
	}
	if len(series) == 1 {
		return 0, float64(series[0].RevenueCents)
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
		return 0, sumY / n
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// meanStdDev returns the mean and population standard deviation of daily
// revenue.
func meanStdDev(series []store.DailyRevenue) (mean, stddev float64) {
	if len(series) == 0 {
		return 0, 0
	}

	for _, point := range series {
		mean += float64(point.RevenueCents)
	}
	mean /= float64(len(series))

	var variance float64
	for _, point := range series {
		diff := float64(point.RevenueCents) - mean
		variance += diff * diff
	}
	variance /= float64(len(series))

	return mean, math.Sqrt(variance)
}

func toTopProducts(rows []store.ProductSales) []TopProduct {
	out := make([]TopProduct, len(rows))
	for i, row := range rows {
		out[i] = TopProduct{
			ProductID:    row.ProductID,
			Description:  row.Description,
			QuantitySold: row.QuantitySold,
			RevenueCents: row.RevenueCents,
		}
	}
	return out
}
