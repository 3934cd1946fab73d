// Package store persists the market catalog and normalized price history.
//
// Three backends share one contract:
//   - Postgres: pgx pool, batched upserts inside a transaction
//   - SQLite: database/sql with mattn/go-sqlite3, same schema
//   - Memory: maps behind a mutex, for tests and the CLI
//
// Every upsert call is atomic: either all rows in the call commit or none do.
// Price points are unique on (token, interval, bucket); re-upserting an
// identical point is a no-op and a changed price overwrites. Markets are
// last-write-wins on UpdatedAt, ties going to the incoming row.
package store

import (
	"context"
	"errors"

	"github.com/rickgao/polymarket-data/internal/model"
)

// ErrNotFound is returned by GetMarket for unknown token ids.
var ErrNotFound = errors.New("not found")

var errClosed = errors.New("store closed")

// Store is the time-series store used by the sync engines and the read path.
type Store interface {
	// UpsertMarkets inserts or refreshes catalog rows atomically.
	UpsertMarkets(ctx context.Context, markets []model.Market) error

	// GetMarket returns one catalog row or ErrNotFound.
	GetMarket(ctx context.Context, tokenID string) (model.Market, error)

	// ListMarkets returns catalog rows ordered by 24h volume, highest first.
	ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error)

	// UpsertPricePoints writes points atomically and returns how many rows were
	// inserted or had their price changed.
	UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error)

	// QueryPricePoints returns points for one series within r, ascending by
	// bucket. limit > 0 keeps the first limit points.
	QueryPricePoints(ctx context.Context, tokenID string, interval model.Interval, r model.TimeRange, limit int) ([]model.PricePoint, error)

	// MaxTimestamp returns the latest bucket stored for a series; ok is false
	// when the series is empty.
	MaxTimestamp(ctx context.Context, tokenID string, interval model.Interval) (ts int64, ok bool, err error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

type seriesKey struct {
	tokenID  string
	interval model.Interval
}

type pointKey struct {
	seriesKey
	bucket int64
}

// dedupePoints keeps the last occurrence of each (token, interval, bucket).
func dedupePoints(points []model.PricePoint) []model.PricePoint {
	idx := make(map[pointKey]int, len(points))
	out := make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		k := pointKey{seriesKey{p.TokenID, p.Interval}, p.BucketTS}
		if i, ok := idx[k]; ok {
			out[i] = p
			continue
		}
		idx[k] = len(out)
		out = append(out, p)
	}
	return out
}

// dedupeMarkets keeps, per token id, the row with the newest UpdatedAt
// (later occurrence on ties).
func dedupeMarkets(markets []model.Market) []model.Market {
	idx := make(map[string]int, len(markets))
	out := make([]model.Market, 0, len(markets))
	for _, m := range markets {
		if i, ok := idx[m.TokenID]; ok {
			if m.UpdatedAt >= out[i].UpdatedAt {
				out[i] = m
			}
			continue
		}
		idx[m.TokenID] = len(out)
		out = append(out, m)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
