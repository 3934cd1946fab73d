// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Catalog and price-history sync outcomes, durations and row counts
//   - Live trade tap connection state and message rates
//   - HTTP API request counts by route and status
//
// All methods are safe on a nil *Metrics so components can run unobserved.
package metrics
