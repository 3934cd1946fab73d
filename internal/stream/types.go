package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Event types on the market channel.
const (
	EventBook           = "book"
	EventPriceChange    = "price_change"
	EventTickSizeChange = "tick_size_change"
	EventLastTradePrice = "last_trade_price"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// SubscribeRequest subscribes a connection to the market channel.
type SubscribeRequest struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"` // "market"
}

// Event is one market channel event. Only the fields the tap reads are decoded.
type Event struct {
	EventType string     `json:"event_type"`
	AssetID   string     `json:"asset_id"`
	Market    string     `json:"market"`
	Price     string     `json:"price"`
	Side      string     `json:"side"`
	Size      string     `json:"size"`
	Timestamp flexMillis `json:"timestamp"`
}

// flexMillis decodes a millisecond timestamp sent as a number or a string.
type flexMillis int64

func (f *flexMillis) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexMillis(n)
	return nil
}

// ParseEvents decodes a frame holding one event or an array of events.
func ParseEvents(data []byte) ([]Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var events []Event
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return []Event{ev}, nil
}

// Sample converts a last_trade_price event into a sample. ok is false for
// other event types and for events without a usable price or timestamp.
func (e Event) Sample() (model.Sample, bool) {
	if e.EventType != EventLastTradePrice || e.AssetID == "" || e.Timestamp <= 0 {
		return model.Sample{}, false
	}
	price, err := decimal.NewFromString(e.Price)
	if err != nil || price.IsNegative() || price.GreaterThan(decimal.NewFromInt(1)) {
		return model.Sample{}, false
	}
	return model.Sample{
		TS:    int64(e.Timestamp) * 1000,
		Price: int(price.Mul(decimal.NewFromInt(100_000)).Round(0).IntPart()),
	}, true
}
