package cache

import (
	"time"

	"github.com/aurumhq/aurum-api/internal/config"
)

// Policy maps namespaces to their TTLs. It is built once from configuration
// and never mutated, so lookups need no locking.
type Policy struct {
	ttls map[string]time.Duration
}

// NewPolicy builds the TTL policy from configuration. Every known namespace
// gets exactly one TTL; validation on CacheConfig guarantees the values are
// positive.
func NewPolicy(cfg config.CacheConfig) Policy {
	return Policy{
		ttls: map[string]time.Duration{
			NamespaceKPI:         time.Duration(cfg.KPITTLSeconds) * time.Second,
			NamespaceForecast:    time.Duration(cfg.ForecastTTLSeconds) * time.Second,
			NamespaceChart:       time.Duration(cfg.ChartTTLSeconds) * time.Second,
			NamespaceReport:      time.Duration(cfg.ReportTTLSeconds) * time.Second,
			NamespaceAggregation: time.Duration(cfg.AggregationTTLSeconds) * time.Second,
		},
	}
}

// TTLFor returns the TTL for a namespace and whether the namespace is known.
func (p Policy) TTLFor(namespace string) (time.Duration, bool) {
	ttl, ok := p.ttls[namespace]
	return ttl, ok
}
