package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumhq/aurum-api/internal/domain"
	"github.com/aurumhq/aurum-api/internal/store"
)

func newTestAnalyticsService(t *testing.T, analytics *fakeAnalyticsStore) AnalyticsService {
	t.Helper()
	svc, err := NewAnalyticsService(analytics, newTestCache(), testLogger())
	require.NoError(t, err)
	return svc
}

// linearSeries builds a daily series following y = base + step*i.
func linearSeries(start time.Time, days int, base, step int64) []store.DailyRevenue {
	out := make([]store.DailyRevenue, days)
	for i := range out {
		out[i] = store.DailyRevenue{
			Day:          start.AddDate(0, 0, i),
			RevenueCents: base + step*int64(i),
		}
	}
	return out
}

func TestNewAnalyticsServiceValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewAnalyticsService(nil, newTestCache(), testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewAnalyticsService(&fakeAnalyticsStore{}, nil, testLogger())
	assert.ErrorIs(t, err, domain.ErrValidation)

	svc, err := NewAnalyticsService(&fakeAnalyticsStore{}, newTestCache(), nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestForecastProjectsLinearTrend(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)
	historyEnd := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	historyStart := historyEnd.AddDate(0, 0, -forecastHistoryDays)

	analytics := &fakeAnalyticsStore{
		seriesFn: func(from, to time.Time) ([]store.DailyRevenue, error) {
			assert.Equal(t, historyStart, from)
			assert.Equal(t, historyEnd, to)
			return linearSeries(historyStart, 3, 100000, 10000), nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	fixedClock(t, svc, now)

	forecast, err := svc.Forecast(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, now, forecast.GeneratedAt)
	assert.Equal(t, forecastHistoryDays, forecast.HistoryDays)
	assert.Equal(t, 2, forecast.HorizonDays)
	assert.InDelta(t, 10000.0, forecast.SlopeCentsPerDay, 0.001)

	// The fit continues the line: after days 0..2 the projections for days
	// 3 and 4 follow the same step.
	require.Len(t, forecast.Points, 2)
	assert.Equal(t, historyEnd, forecast.Points[0].Day)
	assert.Equal(t, int64(130000), forecast.Points[0].ForecastCents)
	assert.Equal(t, historyEnd.AddDate(0, 0, 1), forecast.Points[1].Day)
	assert.Equal(t, int64(140000), forecast.Points[1].ForecastCents)
}

func TestForecastClampsNegativeProjections(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	analytics := &fakeAnalyticsStore{
		seriesFn: func(from, _ time.Time) ([]store.DailyRevenue, error) {
			return linearSeries(from, 3, 100000, -50000), nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	fixedClock(t, svc, now)

	forecast, err := svc.Forecast(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, forecast.Points, 3)
	for _, point := range forecast.Points {
		assert.Equal(t, int64(0), point.ForecastCents)
	}
}

func TestForecastDefaultsHorizon(t *testing.T) {
	t.Parallel()

	svc := newTestAnalyticsService(t, &fakeAnalyticsStore{})

	forecast, err := svc.Forecast(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultForecastHorizon, forecast.HorizonDays)
	assert.Len(t, forecast.Points, defaultForecastHorizon)
}

func TestRefreshForecastWarmsDefaultHorizon(t *testing.T) {
	t.Parallel()

	calls := 0
	analytics := &fakeAnalyticsStore{
		seriesFn: func(from, _ time.Time) ([]store.DailyRevenue, error) {
			calls++
			return linearSeries(from, 5, 80000, 2000), nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	ctx := context.Background()

	require.NoError(t, svc.RefreshForecast(ctx))
	assert.Equal(t, 1, calls)

	// Default-horizon reads now come from the cache.
	_, err := svc.Forecast(ctx, 0)
	require.NoError(t, err)
	_, err = svc.Forecast(ctx, defaultForecastHorizon)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// A different horizon is a different cache key.
	_, err = svc.Forecast(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDailySalesReport(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	productID := uuid.New()
	calls := 0

	analytics := &fakeAnalyticsStore{
		revenueFn: func(from, to time.Time) (store.RevenueTotals, error) {
			calls++
			assert.Equal(t, day, from)
			assert.Equal(t, day.AddDate(0, 0, 1), to)
			return store.RevenueTotals{
				RevenueCents: 180000, TaxCents: 12600, InvoiceCount: 7, ItemsSold: 11,
			}, nil
		},
		topFn: func(_, _ time.Time, limit int) ([]store.ProductSales, error) {
			assert.Equal(t, 5, limit)
			return []store.ProductSales{
				{ProductID: productID, Description: "Gold Band", QuantitySold: 4, RevenueCents: 90000},
			}, nil
		},
		newCustFn: func(_, _ time.Time) (int, error) { return 2, nil },
	}
	svc := newTestAnalyticsService(t, analytics)

	// The hour on the requested day must not matter.
	report, err := svc.DailySalesReport(context.Background(), day.Add(17*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, day, report.Day)
	assert.Equal(t, int64(180000), report.RevenueCents)
	assert.Equal(t, int64(12600), report.TaxCents)
	assert.Equal(t, 7, report.InvoiceCount)
	assert.Equal(t, 11, report.ItemsSold)
	assert.Equal(t, 2, report.NewCustomers)
	require.Len(t, report.TopProducts, 1)
	assert.Equal(t, productID, report.TopProducts[0].ProductID)
	assert.Equal(t, "Gold Band", report.TopProducts[0].Description)

	// Rereads are cache hits.
	_, err = svc.DailySalesReport(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuildDailySalesReportCachesForReads(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	calls := 0
	analytics := &fakeAnalyticsStore{
		revenueFn: func(_, _ time.Time) (store.RevenueTotals, error) {
			calls++
			return store.RevenueTotals{RevenueCents: 75000, InvoiceCount: 3}, nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	ctx := context.Background()

	require.NoError(t, svc.BuildDailySalesReport(ctx, day))
	assert.Equal(t, 1, calls)

	report, err := svc.DailySalesReport(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), report.RevenueCents)
	assert.Equal(t, 1, calls)
}

func TestWeeklySummary(t *testing.T) {
	t.Parallel()

	weekEnd := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	weekStart := weekEnd.AddDate(0, 0, -7)

	analytics := &fakeAnalyticsStore{
		revenueFn: func(from, to time.Time) (store.RevenueTotals, error) {
			assert.Equal(t, weekStart, from)
			assert.Equal(t, weekEnd, to)
			return store.RevenueTotals{
				RevenueCents: 560000, TaxCents: 39200, InvoiceCount: 21, ItemsSold: 34,
			}, nil
		},
		seriesFn: func(from, _ time.Time) ([]store.DailyRevenue, error) {
			return linearSeries(from, 7, 80000, 0), nil
		},
		topFn: func(_, _ time.Time, limit int) ([]store.ProductSales, error) {
			assert.Equal(t, 5, limit)
			return []store.ProductSales{
				{ProductID: uuid.New(), Description: "Gold Chain", QuantitySold: 9, RevenueCents: 180000},
			}, nil
		},
		activeFn: func(_, _ time.Time) (int, error) { return 13, nil },
	}
	svc := newTestAnalyticsService(t, analytics)

	summary, err := svc.WeeklySummary(context.Background(), weekEnd.Add(9*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, weekStart, summary.WeekStart)
	assert.Equal(t, weekEnd, summary.WeekEnd)
	assert.Equal(t, int64(560000), summary.RevenueCents)
	assert.Equal(t, int64(39200), summary.TaxCents)
	assert.Equal(t, 21, summary.InvoiceCount)
	assert.Equal(t, 34, summary.ItemsSold)
	assert.Equal(t, 13, summary.ActiveCustomers)
	assert.Len(t, summary.DailySeries, 7)
	require.Len(t, summary.TopProducts, 1)
	assert.Equal(t, "Gold Chain", summary.TopProducts[0].Description)
}

func TestBuildWeeklySummaryCachesForReads(t *testing.T) {
	t.Parallel()

	weekEnd := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	calls := 0
	analytics := &fakeAnalyticsStore{
		revenueFn: func(_, _ time.Time) (store.RevenueTotals, error) {
			calls++
			return store.RevenueTotals{RevenueCents: 420000}, nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	ctx := context.Background()

	require.NoError(t, svc.BuildWeeklySummary(ctx, weekEnd))
	assert.Equal(t, 1, calls)

	summary, err := svc.WeeklySummary(ctx, weekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(420000), summary.RevenueCents)
	assert.Equal(t, 1, calls)
}

func TestRevenueSeries(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)
	calls := 0

	analytics := &fakeAnalyticsStore{
		seriesFn: func(gotFrom, gotTo time.Time) ([]store.DailyRevenue, error) {
			calls++
			assert.Equal(t, from, gotFrom)
			assert.Equal(t, to, gotTo)
			return linearSeries(from, 3, 60000, 5000), nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	ctx := context.Background()

	points, err := svc.RevenueSeries(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, from, points[0].Day)
	assert.Equal(t, int64(60000), points[0].RevenueCents)
	assert.Equal(t, int64(70000), points[2].RevenueCents)

	_, err = svc.RevenueSeries(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = svc.RevenueSeries(ctx, from, from)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestTopProductsDefaultsLimit(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var gotLimit int

	analytics := &fakeAnalyticsStore{
		topFn: func(_, _ time.Time, limit int) ([]store.ProductSales, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)

	_, err := svc.TopProducts(context.Background(), from, from.AddDate(0, 0, 7), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit)

	_, err = svc.TopProducts(context.Background(), from, from, 5)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestScanRevenueAnomalies(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	windowStart := windowEnd.AddDate(0, 0, -anomalyWindowDays)
	spikeDay := windowStart.AddDate(0, 0, 20)

	analytics := &fakeAnalyticsStore{
		seriesFn: func(from, to time.Time) ([]store.DailyRevenue, error) {
			assert.Equal(t, windowStart, from)
			assert.Equal(t, windowEnd, to)
			series := linearSeries(windowStart, anomalyWindowDays, 100000, 0)
			series[20].RevenueCents = 200000
			return series, nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)
	fixedClock(t, svc, now)
	ctx := context.Background()

	count, err := svc.ScanRevenueAnomalies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	report, err := svc.Anomalies(ctx)
	require.NoError(t, err)

	assert.Equal(t, windowStart, report.WindowStart)
	assert.Equal(t, windowEnd, report.WindowEnd)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, spikeDay, report.Anomalies[0].Day)
	assert.Equal(t, int64(200000), report.Anomalies[0].RevenueCents)
	assert.Greater(t, report.Anomalies[0].ZScore, anomalyZThreshold)
	assert.Greater(t, report.StdDevCents, 0.0)
}

func TestScanRevenueAnomaliesFlatWindow(t *testing.T) {
	t.Parallel()

	analytics := &fakeAnalyticsStore{
		seriesFn: func(from, _ time.Time) ([]store.DailyRevenue, error) {
			return linearSeries(from, anomalyWindowDays, 100000, 0), nil
		},
	}
	svc := newTestAnalyticsService(t, analytics)

	count, err := svc.ScanRevenueAnomalies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	report, err := svc.Anomalies(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, 0.0, report.StdDevCents)
	assert.InDelta(t, 100000.0, report.MeanCents, 0.001)
}
