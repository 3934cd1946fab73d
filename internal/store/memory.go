package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	markets map[string]model.Market
	series  map[seriesKey]map[int64]int
	closed  bool
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		markets: make(map[string]model.Market),
		series:  make(map[seriesKey]map[int64]int),
	}
}

func (s *Memory) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	for _, m := range markets {
		if cur, ok := s.markets[m.TokenID]; ok && cur.UpdatedAt > m.UpdatedAt {
			continue
		}
		s.markets[m.TokenID] = cloneMarket(m)
	}
	return nil
}

func (s *Memory) GetMarket(ctx context.Context, tokenID string) (model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Market{}, errClosed
	}

	m, ok := s.markets[tokenID]
	if !ok {
		return model.Market{}, ErrNotFound
	}
	return cloneMarket(m), nil
}

func (s *Memory) ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	out := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		if filter.ActiveOnly && (!m.Active || m.Closed) {
			continue
		}
		if filter.MinVolume > 0 && m.RankingVolume() < filter.MinVolume {
			continue
		}
		out = append(out, cloneMarket(m))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Volume24h != out[j].Volume24h {
			return out[i].Volume24h > out[j].Volume24h
		}
		return out[i].TokenID < out[j].TokenID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Memory) UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errClosed
	}

	var changed int
	for _, p := range dedupePoints(points) {
		k := seriesKey{p.TokenID, p.Interval}
		buckets, ok := s.series[k]
		if !ok {
			buckets = make(map[int64]int)
			s.series[k] = buckets
		}
		if cur, ok := buckets[p.BucketTS]; ok && cur == p.Price {
			continue
		}
		buckets[p.BucketTS] = p.Price
		changed++
	}
	return changed, nil
}

func (s *Memory) QueryPricePoints(ctx context.Context, tokenID string, interval model.Interval, r model.TimeRange, limit int) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	buckets := s.series[seriesKey{tokenID, interval}]
	keys := make([]int64, 0, len(buckets))
	for ts := range buckets {
		if r.Contains(ts) {
			keys = append(keys, ts)
		}
	}
	slices.Sort(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]model.PricePoint, 0, len(keys))
	for _, ts := range keys {
		out = append(out, model.PricePoint{
			TokenID:  tokenID,
			Interval: interval,
			BucketTS: ts,
			Price:    buckets[ts],
		})
	}
	return out, nil
}

func (s *Memory) MaxTimestamp(ctx context.Context, tokenID string, interval model.Interval) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, errClosed
	}

	buckets := s.series[seriesKey{tokenID, interval}]
	var max int64
	var ok bool
	for ts := range buckets {
		if !ok || ts > max {
			max, ok = ts, true
		}
	}
	return max, ok, nil
}

func (s *Memory) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Memory) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func cloneMarket(m model.Market) model.Market {
	m.Tags = slices.Clone(m.Tags)
	m.Outcomes = slices.Clone(m.Outcomes)
	m.ClobTokenIDs = slices.Clone(m.ClobTokenIDs)
	return m
}
