package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// GetPriceHistory fetches raw CLOB history for one token over [start, end]
// (Unix seconds) at the given fidelity in minutes.
func (c *Client) GetPriceHistory(ctx context.Context, tokenID string, start, end int64, fidelityMinutes int) (*PriceHistoryResponse, error) {
	query := url.Values{}
	query.Set("market", tokenID)
	query.Set("startTs", strconv.FormatInt(start, 10))
	query.Set("endTs", strconv.FormatInt(end, 10))
	if fidelityMinutes > 0 {
		query.Set("fidelity", strconv.Itoa(fidelityMinutes))
	}

	var resp PriceHistoryResponse
	if err := c.get(ctx, c.clobURL, "/prices-history", query, &resp); err != nil {
		return nil, fmt.Errorf("get price history %s: %w", tokenID, err)
	}

	return &resp, nil
}

// GetSamples returns raw samples for tokenID between start and end (µs since
// epoch), sampled at the interval's width. Windows wider than the per-request
// limit are fetched in consecutive chunks. Samples are returned in source order.
func (c *Client) GetSamples(ctx context.Context, tokenID string, interval model.Interval, start, end int64) ([]model.Sample, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedInterval, interval)
	}
	if end < start {
		return []model.Sample{}, nil
	}

	fidelity := int(interval.Width() / time.Minute)
	startSec := start / 1_000_000
	endSec := end / 1_000_000
	chunk := int64(interval.Width()/time.Second) * int64(c.maxPointsPerRequest)

	samples := make([]model.Sample, 0)
	for from := startSec; from <= endSec; from += chunk {
		to := min(from+chunk-1, endSec)

		resp, err := c.GetPriceHistory(ctx, tokenID, from, to, fidelity)
		if err != nil {
			return nil, err
		}
		for _, p := range resp.History {
			samples = append(samples, p.ToSample())
		}

		c.logger.Debug("fetched price history chunk",
			"token_id", tokenID,
			"interval", interval,
			"start", from,
			"end", to,
			"count", len(resp.History),
		)
	}

	return samples, nil
}
