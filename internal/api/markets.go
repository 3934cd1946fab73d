package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/polymarket-data/internal/model"
)

// GetMarketsOptions selects a page of the Gamma market listing.
type GetMarketsOptions struct {
	Limit     int
	Offset    int
	Active    bool
	Closed    bool
	Order     string // e.g. "volume24hr"
	Ascending bool
}

// GetMarkets fetches one page of raw Gamma markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) ([]GammaMarket, error) {
	query := url.Values{}
	query.Set("active", strconv.FormatBool(opts.Active))
	query.Set("closed", strconv.FormatBool(opts.Closed))

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Order != "" {
		query.Set("order", opts.Order)
		query.Set("ascending", strconv.FormatBool(opts.Ascending))
	}

	var resp []GammaMarket
	if err := c.get(ctx, c.gammaURL, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return resp, nil
}

// ListMarkets fetches page n (0-based) of open markets ordered by 24h volume,
// highest first. A page shorter than PageSize() is the last one.
func (c *Client) ListMarkets(ctx context.Context, page int) ([]model.Market, error) {
	raw, err := c.GetMarkets(ctx, GetMarketsOptions{
		Limit:     c.pageSize,
		Offset:    page * c.pageSize,
		Active:    true,
		Closed:    false,
		Order:     "volume24hr",
		Ascending: false,
	})
	if err != nil {
		return nil, fmt.Errorf("list markets page %d: %w", page, err)
	}

	now := NowMicro()
	markets := make([]model.Market, 0, len(raw))
	for i := range raw {
		markets = append(markets, raw[i].ToModel(now))
	}

	return markets, nil
}
