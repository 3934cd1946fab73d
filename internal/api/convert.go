package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/model"
)

var hundredThousand = decimal.NewFromInt(100000)

// DollarsToInternal converts a dollar string to internal representation.
// "0.52" -> 52000, "0.5250" -> 52500, "0.52505" -> 52505
// Returns 0 for empty or invalid input.
func DollarsToInternal(dollars string) int {
	dollars = strings.TrimSpace(dollars)
	if dollars == "" {
		return 0
	}

	d, err := decimal.NewFromString(dollars)
	if err != nil {
		return 0
	}
	return int(d.Mul(hundredThousand).Round(0).IntPart())
}

// FloatToInternal converts a float dollar price to internal representation.
// 0.525 -> 52500
func FloatToInternal(p float64) int {
	return int(decimal.NewFromFloat(p).Mul(hundredThousand).Round(0).IntPart())
}

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Gamma sometimes omits the zone or the time.
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			t, err = time.Parse("2006-01-02", iso)
			if err != nil {
				return 0
			}
		}
	}

	return t.UnixMicro()
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// ToModel converts a GammaMarket to model.Market. TokenID is the first CLOB
// token id, or empty when the market has none.
func (m *GammaMarket) ToModel(updatedAt int64) model.Market {
	var tokenID string
	if len(m.ClobTokenIDs) > 0 {
		tokenID = strings.TrimSpace(m.ClobTokenIDs[0])
	}

	var yes, no int
	if len(m.OutcomePrices) > 0 {
		yes = DollarsToInternal(m.OutcomePrices[0])
	}
	if len(m.OutcomePrices) > 1 {
		no = DollarsToInternal(m.OutcomePrices[1])
	}

	tags := make([]string, 0, len(m.Tags))
	for _, tag := range m.Tags {
		if tag.Label != "" {
			tags = append(tags, tag.Label)
		}
	}

	var eventSlug string
	if len(m.Events) > 0 {
		eventSlug = m.Events[0].Slug
	}

	return model.Market{
		TokenID:      tokenID,
		MarketID:     m.ID,
		ConditionID:  m.ConditionID,
		Question:     m.Question,
		Slug:         m.Slug,
		EventSlug:    eventSlug,
		Description:  m.Description,
		YesPrice:     yes,
		NoPrice:      no,
		Volume24h:    m.Volume24hr,
		VolumeTotal:  m.VolumeNum,
		Liquidity:    m.LiquidityNum,
		Tags:         tags,
		Outcomes:     []string(m.Outcomes),
		ClobTokenIDs: []string(m.ClobTokenIDs),
		Active:       m.Active,
		Closed:       m.Closed,
		EndTS:        ParseTimestamp(m.EndDate),
		UpdatedAt:    updatedAt,
	}
}

// ToSample converts a CLOB history point to a model.Sample.
func (p HistoryPoint) ToSample() model.Sample {
	return model.Sample{
		TS:    p.T * 1_000_000,
		Price: FloatToInternal(p.P),
	}
}
