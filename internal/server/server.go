// Package server exposes the sync and read operations over HTTP:
//   - POST /markets/sync: catalog sync, optionally followed by history sync
//   - POST /price-history/sync: one (token, interval) history sync
//   - GET /price-history: stored series
//   - GET /markets, GET /markets/{tokenId}: catalog reads
//   - GET /price-changes: daily, weekly and monthly moves
//   - GET /health: store liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/polymarket-data/internal/catalog"
	"github.com/rickgao/polymarket-data/internal/history"
	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/reader"
)

// CatalogSyncer runs one catalog sync.
type CatalogSyncer interface {
	SyncAllMarkets(ctx context.Context, opts catalog.Options) (catalog.Result, error)
}

// PipelineSyncer runs a catalog sync followed by history for every refreshed market.
type PipelineSyncer interface {
	SyncMarketsAndHistory(ctx context.Context, opts catalog.Options, interval model.Interval) (catalog.Result, history.Summary, error)
}

// HistorySyncer runs one price-history sync.
type HistorySyncer interface {
	SyncPriceHistory(ctx context.Context, tokenID string, interval model.Interval) (history.Result, error)
}

// Reader serves stored data.
type Reader interface {
	GetPriceHistory(ctx context.Context, tokenID string, interval model.Interval, q reader.Query) ([]model.PricePoint, error)
	GetMarket(ctx context.Context, tokenID string) (model.Market, error)
	ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error)
	PriceChanges(ctx context.Context, tokenID string, current int) (reader.PriceChanges, error)
}

// Pinger reports backend liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the operations the HTTP API calls into.
type Deps struct {
	Catalog  CatalogSyncer
	Pipeline PipelineSyncer
	History  HistorySyncer
	Reader   Reader
	Store    Pinger
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// DefaultHistoryInterval is used by POST /markets/sync when the body sets
	// syncPriceHistory without an interval.
	DefaultHistoryInterval model.Interval
}

// Handler implements the HTTP API.
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !deps.DefaultHistoryInterval.Valid() {
		deps.DefaultHistoryInterval = model.Interval1h
	}
	return &Handler{deps: deps, logger: logger}
}

// RegisterRoutes registers the HTTP routes with the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, "POST /markets/sync", h.SyncMarkets)
	h.handle(mux, "POST /price-history/sync", h.SyncPriceHistory)
	h.handle(mux, "GET /price-history", h.GetPriceHistory)
	h.handle(mux, "GET /markets/{tokenId}", h.GetMarket)
	h.handle(mux, "GET /markets", h.ListMarkets)
	h.handle(mux, "GET /price-changes", h.GetPriceChanges)
	h.handle(mux, "GET /health", h.Health)
}

// Routes returns a mux with every route registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

// handle registers fn and counts requests per route pattern.
func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		fn(rec, r)
		h.deps.Metrics.IncHTTPRequest(pattern, rec.status)
		h.logger.Debug("http request",
			"route", pattern,
			"status", rec.status,
			"duration", time.Since(start),
		)
	}))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.deps.Store.Ping(ctx); err != nil {
		h.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"store":  err.Error(),
		})
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": "connected"})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownMarket):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnsupportedInterval), errors.Is(err, model.ErrInvalidTokenID):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr writes err with the status its taxonomy maps to.
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Warn("request failed", "status", status, "error", err)
	}
	h.respondError(w, status, err.Error())
}
