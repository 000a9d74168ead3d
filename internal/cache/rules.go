package cache

// DefaultRules maps database tables to the cache patterns their writes make
// stale. Patterns are built from the same namespace and key-family constants
// the services cache under, so every pattern names a family that actually
// exists. The table is deliberately conservative: a rule may evict more than
// strictly necessary, because recomputing a number is cheap and serving a
// stale one is not.
//
// Tables without an entry evict nothing. Users, tasks, and backups feed no
// cached read model; neither do ledger entries, whose balances (trial
// balance, per-account) are always computed live.
func DefaultRules() map[string][]string {
	// Every read model is revenue-derived, so an invoice write stales all of
	// them: the KPI window and the forecast directly, the reports and charts
	// through their revenue aggregates, the dashboard through today's and the
	// month's totals, and the anomaly scan through the daily series.
	revenueDerived := []string{
		FamilyPattern(NamespaceKPI, KeyRevenue),
		FamilyPattern(NamespaceForecast, KeyRevenue),
		FamilyPattern(NamespaceReport, KeyDailyReport),
		FamilyPattern(NamespaceReport, KeyWeeklyReport),
		FamilyPattern(NamespaceChart, KeyRevenueSeries),
		FamilyPattern(NamespaceChart, KeyTopProducts),
		FamilyPattern(NamespaceAggregation, KeyDashboard),
		FamilyPattern(NamespaceAggregation, KeyAnomalies),
	}

	return map[string][]string{
		"invoices":      revenueDerived,
		"invoice_items": revenueDerived,

		// Products appear in the dashboard's inventory summary and by name
		// in the ranked product listings on both reports.
		"products": {
			FamilyPattern(NamespaceAggregation, KeyDashboard),
			FamilyPattern(NamespaceChart, KeyTopProducts),
			FamilyPattern(NamespaceReport, KeyDailyReport),
			FamilyPattern(NamespaceReport, KeyWeeklyReport),
		},

		// Customer counts (new, active) appear on the dashboard and both
		// reports.
		"customers": {
			FamilyPattern(NamespaceAggregation, KeyDashboard),
			FamilyPattern(NamespaceReport, KeyDailyReport),
			FamilyPattern(NamespaceReport, KeyWeeklyReport),
		},
	}
}
