// Package cache provides the read-side cache for analytics and reporting.
//
// All keys live under a single prefix and are grouped into namespaces (kpi,
// forecast, chart, report, aggregation). Time-to-live is a property of the
// namespace, drawn from configuration at construction time; callers never
// choose a TTL per call.
//
// The cache degrades gracefully: a backend outage turns every read into a
// miss and every write into a no-op, so request handling never fails because
// Redis is down. Backend errors are counted and visible through Stats.
//
// Invalidation is event driven. The Invalidator subscribes to data-change
// events and evicts glob patterns according to a static rule table, erring on
// the side of evicting too much rather than serving stale numbers.
package cache
