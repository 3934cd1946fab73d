// Package reader implements the Read Service: normalized price history and
// catalog lookups served from the store only. It never calls the source.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/normalize"
	"github.com/rickgao/polymarket-data/internal/store"
)

// Query narrows a history read. Zero values mean unbounded.
type Query struct {
	Start    int64 // Earliest bucket, µs inclusive
	End      int64 // Latest bucket, µs inclusive
	Limit    int   // Keep the first Limit points of the ascending range
	FillGaps bool  // Forward-fill missing buckets between returned points
}

// Service serves reads.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock used by PriceChanges.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPriceHistory returns the stored series for (tokenID, interval) ascending
// by bucket. A known market with no stored points yields an empty slice.
func (s *Service) GetPriceHistory(ctx context.Context, tokenID string, interval model.Interval, q Query) ([]model.PricePoint, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedInterval, interval)
	}
	if err := s.requireMarket(ctx, tokenID); err != nil {
		return nil, err
	}
	if q.Start != 0 && q.End != 0 && q.Start > q.End {
		return []model.PricePoint{}, nil
	}

	points, err := s.store.QueryPricePoints(ctx, tokenID, interval, model.TimeRange{Start: q.Start, End: q.End}, max(q.Limit, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: query price points: %w", model.ErrStoreUnavailable, err)
	}
	if q.FillGaps {
		points = normalize.FillGaps(points)
	}
	return points, nil
}

// GetMarket returns one catalog row.
func (s *Service) GetMarket(ctx context.Context, tokenID string) (model.Market, error) {
	m, err := s.store.GetMarket(ctx, tokenID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Market{}, fmt.Errorf("%w: %s", model.ErrUnknownMarket, tokenID)
	}
	if err != nil {
		return model.Market{}, fmt.Errorf("%w: get market: %w", model.ErrStoreUnavailable, err)
	}
	return m, nil
}

// ListMarkets returns catalog rows ordered by 24h volume, highest first.
func (s *Service) ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error) {
	markets, err := s.store.ListMarkets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list markets: %w", model.ErrStoreUnavailable, err)
	}
	if markets == nil {
		markets = []model.Market{}
	}
	return markets, nil
}

func (s *Service) requireMarket(ctx context.Context, tokenID string) error {
	_, err := s.GetMarket(ctx, tokenID)
	return err
}
