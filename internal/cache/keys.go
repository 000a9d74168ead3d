package cache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// keyPrefix namespaces every cache entry so the application can share a Redis
// database with other tenants without key collisions.
const keyPrefix = "aurum"

// Key families: the leading subkey each service writes under its namespace.
// DefaultRules builds its eviction patterns from these same constants, so a
// renamed key family changes the rule table with it instead of drifting past
// it.
const (
	KeyRevenue       = "revenue"        // NamespaceKPI, NamespaceForecast
	KeyDashboard     = "dashboard"      // NamespaceAggregation
	KeyAnomalies     = "anomalies"      // NamespaceAggregation
	KeyDailyReport   = "daily"          // NamespaceReport
	KeyWeeklyReport  = "weekly"         // NamespaceReport
	KeyRevenueSeries = "revenue_series" // NamespaceChart
	KeyTopProducts   = "top_products"   // NamespaceChart
)

// FamilyPattern returns the glob that matches every key in one family,
// including the bare namespace:family key written without further subkeys.
func FamilyPattern(namespace, family string) string {
	return namespace + ":" + family + "*"
}

// buildKey assembles the full backend key: prefix, namespace, then subkeys,
// colon separated.
func buildKey(namespace string, subkeys ...string) string {
	parts := make([]string, 0, len(subkeys)+2)
	parts = append(parts, keyPrefix, namespace)
	parts = append(parts, subkeys...)
	return strings.Join(parts, ":")
}

// HashParams returns a short stable hash of a parameter value, for use as a
// cache subkey when the parameters (date ranges, filters) are too unwieldy to
// spell out in the key. The hash is FNV-1a over the value's JSON encoding;
// encoding/json sorts map keys and preserves struct field order, so equal
// parameters always produce equal hashes.
func HashParams(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Unmarshalable parameters should not exist; fall back to the Go
		// representation so the key is still deterministic.
		data = []byte(fmt.Sprintf("%#v", v))
	}

	h := fnv.New64a()
	h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}
