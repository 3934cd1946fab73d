package api

import (
	"encoding/json"
	"fmt"
)

// GammaMarket is a market as returned by the Gamma /markets endpoint.
type GammaMarket struct {
	ID            string          `json:"id"`
	ConditionID   string          `json:"conditionId"`
	Question      string          `json:"question"`
	Slug          string          `json:"slug"`
	Description   string          `json:"description"`
	Active        bool            `json:"active"`
	Closed        bool            `json:"closed"`
	EndDate       string          `json:"endDate"`
	Volume24hr    float64         `json:"volume24hr"`
	VolumeNum     float64         `json:"volumeNum"`
	LiquidityNum  float64         `json:"liquidityNum"`
	Outcomes      StringList      `json:"outcomes"`
	OutcomePrices StringList      `json:"outcomePrices"`
	ClobTokenIDs  StringList      `json:"clobTokenIds"`
	Tags          []GammaTag      `json:"tags"`
	Events        []GammaEventRef `json:"events"`
}

// GammaTag is a tag attached to a market.
type GammaTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// GammaEventRef is the parent event embedded in a market.
type GammaEventRef struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// PriceHistoryResponse is the CLOB /prices-history response.
type PriceHistoryResponse struct {
	History []HistoryPoint `json:"history"`
}

// HistoryPoint is one observation: t in Unix seconds, p in dollars (0-1).
type HistoryPoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// StringList decodes either a JSON array of strings or a string holding a
// JSON-encoded array, which is how Gamma serializes outcomes, outcomePrices
// and clobTokenIds.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if encoded == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), &arr); err != nil {
		return fmt.Errorf("string list %q: %w", encoded, err)
	}
	*l = arr
	return nil
}
