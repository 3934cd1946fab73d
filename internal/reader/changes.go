package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// CurrentFromStore asks PriceChanges to use the latest stored 1h price.
const CurrentFromStore = -1

// Lookbacks for PriceChanges.
const (
	dayAgo   = 24 * time.Hour
	weekAgo  = 7 * dayAgo
	monthAgo = 30 * dayAgo
)

// PriceChanges holds price moves in percentage points (0-100 scale).
// A nil field means no stored point exists at or before the reference time.
type PriceChanges struct {
	Current int      `json:"current"`
	Daily   *float64 `json:"daily"`
	Weekly  *float64 `json:"weekly"`
	Monthly *float64 `json:"monthly"`
}

// PriceChanges compares current against the 1h series one day, one week and
// thirty days ago. Each reference is the latest stored bucket at or before
// the reference time. Pass CurrentFromStore to compare against the latest
// stored price instead of a caller-supplied one.
func (s *Service) PriceChanges(ctx context.Context, tokenID string, current int) (PriceChanges, error) {
	if err := s.requireMarket(ctx, tokenID); err != nil {
		return PriceChanges{}, err
	}

	now := s.now()
	points, err := s.store.QueryPricePoints(ctx, tokenID, model.Interval1h, model.TimeRange{}, 0)
	if err != nil {
		return PriceChanges{}, fmt.Errorf("%w: query price points: %w", model.ErrStoreUnavailable, err)
	}

	if current < 0 {
		if len(points) == 0 {
			return PriceChanges{}, nil
		}
		current = points[len(points)-1].Price
	}

	out := PriceChanges{Current: current}
	if len(points) == 0 {
		return out, nil
	}
	out.Daily = changeSince(points, now.Add(-dayAgo), current)
	out.Weekly = changeSince(points, now.Add(-weekAgo), current)
	out.Monthly = changeSince(points, now.Add(-monthAgo), current)
	return out, nil
}

// changeSince returns current minus the latest price at or before t, in
// percentage points. points must be ascending.
func changeSince(points []model.PricePoint, t time.Time, current int) *float64 {
	target := t.UnixMicro()
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].BucketTS <= target {
			// Prices are hundred-thousandths: 1000 units is one percentage point.
			change := float64(current-points[i].Price) / 1000.0
			return &change
		}
	}
	return nil
}
