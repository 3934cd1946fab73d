package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/catalog"
	"github.com/rickgao/polymarket-data/internal/history"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/reader"
)

// syncMarketsRequest is the POST /markets/sync body. Every field is optional.
type syncMarketsRequest struct {
	MaxMarkets       int     `json:"maxMarkets"`
	MinVolume        float64 `json:"minVolume"`
	SyncPriceHistory bool    `json:"syncPriceHistory"`
	Interval         string  `json:"interval"`
}

type syncMarketsResponse struct {
	MarketsSynced int      `json:"marketsSynced"`
	Pages         int      `json:"pages"`
	Skipped       int      `json:"skipped"`
	TokenIDs      []string `json:"tokenIds,omitempty"`
	HistorySynced int      `json:"historySynced,omitempty"`
	HistoryFailed int      `json:"historyFailed,omitempty"`
	PointsWritten int      `json:"pointsWritten,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// SyncMarkets handles POST /markets/sync. A partial failure still reports
// how many markets were committed.
func (h *Handler) SyncMarkets(w http.ResponseWriter, r *http.Request) {
	var req syncMarketsRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := catalog.Options{MaxMarkets: req.MaxMarkets, MinVolume: req.MinVolume}
	var (
		resp syncMarketsResponse
		res  catalog.Result
		err  error
	)

	if req.SyncPriceHistory {
		interval := h.deps.DefaultHistoryInterval
		if req.Interval != "" {
			if interval, err = model.ParseInterval(req.Interval); err != nil {
				h.respondErr(w, err)
				return
			}
		}
		var sum history.Summary
		res, sum, err = h.deps.Pipeline.SyncMarketsAndHistory(r.Context(), opts, interval)
		resp.HistorySynced = sum.Synced
		resp.HistoryFailed = sum.Failed
		resp.PointsWritten = sum.PointsWritten
	} else {
		res, err = h.deps.Catalog.SyncAllMarkets(r.Context(), opts)
	}

	resp.MarketsSynced = res.MarketsSynced
	resp.Pages = res.Pages
	resp.Skipped = res.Skipped
	resp.TokenIDs = res.TokenIDs
	if err != nil {
		resp.Error = err.Error()
		h.respondJSON(w, statusFor(err), resp)
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

type syncHistoryRequest struct {
	TokenID  string `json:"tokenId"`
	Interval string `json:"interval"`
}

type syncHistoryResponse struct {
	TokenID       string `json:"tokenId"`
	Interval      string `json:"interval"`
	PointsWritten int    `json:"pointsWritten"`
	PointsChanged int    `json:"pointsChanged"`
	Backfill      bool   `json:"backfill"`
	WindowStart   int64  `json:"windowStart"`
	WindowEnd     int64  `json:"windowEnd"`
	CursorBefore  int64  `json:"cursorBefore"`
	CursorAfter   int64  `json:"cursorAfter"`
}

// SyncPriceHistory handles POST /price-history/sync.
func (h *Handler) SyncPriceHistory(w http.ResponseWriter, r *http.Request) {
	var req syncHistoryRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TokenID == "" {
		h.respondError(w, http.StatusBadRequest, "tokenId is required")
		return
	}
	if req.Interval == "" {
		req.Interval = string(model.Interval1h)
	}

	interval, err := model.ParseInterval(req.Interval)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	res, err := h.deps.History.SyncPriceHistory(r.Context(), req.TokenID, interval)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, syncHistoryResponse{
		TokenID:       res.TokenID,
		Interval:      string(res.Interval),
		PointsWritten: res.PointsWritten,
		PointsChanged: res.PointsChanged,
		Backfill:      res.Backfill,
		WindowStart:   res.Window.Start,
		WindowEnd:     res.Window.End,
		CursorBefore:  res.CursorBefore,
		CursorAfter:   res.CursorAfter,
	})
}

// pointJSON is one bucket on the wire. Timestamp is unix seconds; price is
// the 0-1 outcome price.
type pointJSON struct {
	Timestamp int64           `json:"timestamp"`
	BucketTS  int64           `json:"bucketTs"`
	Price     decimal.Decimal `json:"price"`
}

type priceHistoryResponse struct {
	TokenID  string      `json:"tokenId"`
	Interval string      `json:"interval"`
	Count    int         `json:"count"`
	Points   []pointJSON `json:"points"`
}

// GetPriceHistory handles GET /price-history.
func (h *Handler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID := q.Get("tokenId")
	if tokenID == "" {
		h.respondError(w, http.StatusBadRequest, "tokenId is required")
		return
	}
	intervalParam := q.Get("interval")
	if intervalParam == "" {
		intervalParam = string(model.Interval1h)
	}
	interval, err := model.ParseInterval(intervalParam)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	var query reader.Query
	if query.Start, err = parseTime(q.Get("start")); err != nil {
		h.respondError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	if query.End, err = parseTime(q.Get("end")); err != nil {
		h.respondError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}
	if query.Limit, err = parseInt(q.Get("limit")); err != nil {
		h.respondError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	query.FillGaps = parseBool(q.Get("fill"))

	points, err := h.deps.Reader.GetPriceHistory(r.Context(), tokenID, interval, query)
	if err != nil {
		h.respondErr(w, err)
		return
	}

	out := make([]pointJSON, len(points))
	for i, p := range points {
		out[i] = pointJSON{
			Timestamp: p.BucketTS / 1_000_000,
			BucketTS:  p.BucketTS,
			Price:     decimal.New(int64(p.Price), -5),
		}
	}
	h.respondJSON(w, http.StatusOK, priceHistoryResponse{
		TokenID:  tokenID,
		Interval: string(interval),
		Count:    len(out),
		Points:   out,
	})
}

type marketJSON struct {
	TokenID      string          `json:"tokenId"`
	MarketID     string          `json:"marketId"`
	ConditionID  string          `json:"conditionId"`
	Question     string          `json:"question"`
	Slug         string          `json:"slug"`
	EventSlug    string          `json:"eventSlug,omitempty"`
	YesPrice     decimal.Decimal `json:"yesPrice"`
	NoPrice      decimal.Decimal `json:"noPrice"`
	Volume24h    float64         `json:"volume24h"`
	VolumeTotal  float64         `json:"volumeTotal"`
	Liquidity    float64         `json:"liquidity"`
	Tags         []string        `json:"tags,omitempty"`
	Outcomes     []string        `json:"outcomes,omitempty"`
	ClobTokenIDs []string        `json:"clobTokenIds,omitempty"`
	Active       bool            `json:"active"`
	Closed       bool            `json:"closed"`
	EndDate      string          `json:"endDate,omitempty"`
	UpdatedAt    string          `json:"updatedAt"`
}

func toMarketJSON(m model.Market) marketJSON {
	out := marketJSON{
		TokenID:      m.TokenID,
		MarketID:     m.MarketID,
		ConditionID:  m.ConditionID,
		Question:     m.Question,
		Slug:         m.Slug,
		EventSlug:    m.EventSlug,
		YesPrice:     decimal.New(int64(m.YesPrice), -5),
		NoPrice:      decimal.New(int64(m.NoPrice), -5),
		Volume24h:    m.Volume24h,
		VolumeTotal:  m.VolumeTotal,
		Liquidity:    m.Liquidity,
		Tags:         m.Tags,
		Outcomes:     m.Outcomes,
		ClobTokenIDs: m.ClobTokenIDs,
		Active:       m.Active,
		Closed:       m.Closed,
		UpdatedAt:    time.UnixMicro(m.UpdatedAt).UTC().Format(time.RFC3339),
	}
	if m.EndTS > 0 {
		out.EndDate = time.UnixMicro(m.EndTS).UTC().Format(time.RFC3339)
	}
	return out
}

// GetMarket handles GET /markets/{tokenId}.
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.Reader.GetMarket(r.Context(), r.PathValue("tokenId"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toMarketJSON(m))
}

// ListMarkets handles GET /markets.
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "limit: "+err.Error())
		return
	}
	if limit == 0 {
		limit = 100
	}

	markets, err := h.deps.Reader.ListMarkets(r.Context(), model.MarketFilter{
		ActiveOnly: parseBool(q.Get("active")),
		Limit:      limit,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]marketJSON, len(markets))
	for i, m := range markets {
		out[i] = toMarketJSON(m)
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"markets": out,
	})
}

// GetPriceChanges handles GET /price-changes. current is a 0-1 price; when
// omitted the latest stored price is used.
func (h *Handler) GetPriceChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID := q.Get("tokenId")
	if tokenID == "" {
		h.respondError(w, http.StatusBadRequest, "tokenId is required")
		return
	}

	current := reader.CurrentFromStore
	if s := q.Get("current"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
			h.respondError(w, http.StatusBadRequest, "current must be a price between 0 and 1")
			return
		}
		current = int(d.Shift(5).Round(0).IntPart())
	}

	changes, err := h.deps.Reader.PriceChanges(r.Context(), tokenID, current)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, changes)
}

// decodeBody decodes an optional JSON body. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// parseTime accepts unix seconds or RFC3339 and returns µs since epoch.
// Empty means unbounded.
func parseTime(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n * 1_000_000, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("want unix seconds or RFC3339, got %q", s)
	}
	return t.UnixMicro(), nil
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("want a non-negative integer, got %q", s)
	}
	return n, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}
