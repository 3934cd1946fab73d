package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/polymarket-data/internal/model"
)

const namespace = "polymarket"

// Result labels.
const (
	ResultOK                  = "ok"
	ResultUnknownMarket       = "unknown_market"
	ResultUnsupportedInterval = "unsupported_interval"
	ResultSourceError         = "source_error"
	ResultStoreError          = "store_error"
	ResultInProgress          = "in_progress"
	ResultCanceled            = "canceled"
	ResultError               = "error"
)

// Metrics holds all Prometheus collectors for the syncer.
type Metrics struct {
	registry *prometheus.Registry

	HistorySyncs    *prometheus.CounterVec   // labels: interval, result
	HistoryPoints   *prometheus.CounterVec   // labels: interval, kind=written|changed
	HistoryDuration *prometheus.HistogramVec // labels: interval

	CatalogSyncs    *prometheus.CounterVec // labels: result
	CatalogMarkets  prometheus.Counter
	CatalogSkipped  prometheus.Counter
	CatalogDuration prometheus.Histogram

	StreamConnected  prometheus.Gauge
	StreamReconnects prometheus.Counter
	StreamMessages   *prometheus.CounterVec // labels: type
	StreamPoints     prometheus.Counter

	HTTPRequests *prometheus.CounterVec // labels: route, code
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HistorySyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_syncs_total",
			Help:      "Price-history sync runs by interval and result",
		}, []string{"interval", "result"}),
		HistoryPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_points_total",
			Help:      "Price points upserted (written) and inserted or repriced (changed)",
		}, []string{"interval", "kind"}),
		HistoryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_sync_duration_seconds",
			Help:      "Price-history sync latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"interval"}),

		CatalogSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_syncs_total",
			Help:      "Catalog sync runs by result",
		}, []string{"result"}),
		CatalogMarkets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_markets_synced_total",
			Help:      "Markets upserted by catalog syncs",
		}),
		CatalogSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_markets_skipped_total",
			Help:      "Markets skipped for invalid token ids, duplicates or low volume",
		}),
		CatalogDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_sync_duration_seconds",
			Help:      "Catalog sync latency",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		StreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_connected",
			Help:      "Live trade tap connection state (1=connected)",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Live trade tap reconnection attempts",
		}),
		StreamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Live trade tap messages by event type",
		}, []string{"type"}),
		StreamPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_points_changed_total",
			Help:      "Price points inserted or repriced by the live trade tap",
		}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HistorySyncs,
		m.HistoryPoints,
		m.HistoryDuration,
		m.CatalogSyncs,
		m.CatalogMarkets,
		m.CatalogSkipped,
		m.CatalogDuration,
		m.StreamConnected,
		m.StreamReconnects,
		m.StreamMessages,
		m.StreamPoints,
		m.HTTPRequests,
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ResultLabel maps a sync error onto a bounded label value.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, model.ErrUnknownMarket):
		return ResultUnknownMarket
	case errors.Is(err, model.ErrUnsupportedInterval):
		return ResultUnsupportedInterval
	case errors.Is(err, model.ErrSyncInProgress):
		return ResultInProgress
	case errors.Is(err, context.Canceled):
		return ResultCanceled
	case errors.Is(err, model.ErrSourceUnavailable):
		return ResultSourceError
	case errors.Is(err, model.ErrStoreUnavailable):
		return ResultStoreError
	default:
		return ResultError
	}
}

// ObserveHistorySync records one price-history sync.
func (m *Metrics) ObserveHistorySync(interval string, written, changed int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.HistorySyncs.WithLabelValues(interval, ResultLabel(err)).Inc()
	m.HistoryDuration.WithLabelValues(interval).Observe(d.Seconds())
	if written > 0 {
		m.HistoryPoints.WithLabelValues(interval, "written").Add(float64(written))
	}
	if changed > 0 {
		m.HistoryPoints.WithLabelValues(interval, "changed").Add(float64(changed))
	}
}

// ObserveCatalogSync records one catalog sync.
func (m *Metrics) ObserveCatalogSync(synced, skipped int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CatalogSyncs.WithLabelValues(ResultLabel(err)).Inc()
	m.CatalogMarkets.Add(float64(synced))
	m.CatalogSkipped.Add(float64(skipped))
	m.CatalogDuration.Observe(d.Seconds())
}

// SetStreamConnected records the live tap connection state.
func (m *Metrics) SetStreamConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.StreamConnected.Set(1)
	} else {
		m.StreamConnected.Set(0)
	}
}

// IncStreamReconnect counts one reconnection attempt.
func (m *Metrics) IncStreamReconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

// IncStreamMessage counts one inbound message of the given event type.
func (m *Metrics) IncStreamMessage(eventType string) {
	if m == nil {
		return
	}
	m.StreamMessages.WithLabelValues(eventType).Inc()
}

// AddStreamPoints counts points changed by the live tap.
func (m *Metrics) AddStreamPoints(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StreamPoints.Add(float64(n))
}

// IncHTTPRequest counts one HTTP API request.
func (m *Metrics) IncHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
