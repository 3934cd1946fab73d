package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const gammaPage = `[
  {
    "id": "512345",
    "conditionId": "0xabc",
    "question": "Will it rain tomorrow?",
    "slug": "will-it-rain-tomorrow",
    "description": "Resolves YES if it rains.",
    "active": true,
    "closed": false,
    "endDate": "2025-01-31T12:00:00Z",
    "volume24hr": 15234.5,
    "volumeNum": 990000.25,
    "liquidityNum": 4200,
    "outcomes": "[\"Yes\", \"No\"]",
    "outcomePrices": "[\"0.525\", \"0.475\"]",
    "clobTokenIds": "[\"71321045679252212594626385532706912750332728571942532289631379312455583992563\", \"52114319501245915516055106046884209969926127482827954674443846427813813222426\"]",
    "tags": [{"id": "1", "label": "Weather", "slug": "weather"}],
    "events": [{"id": "9", "slug": "rain-event", "title": "Rain"}]
  },
  {
    "id": "512346",
    "question": "No tokens yet",
    "active": true,
    "closed": false
  }
]`

func TestGetMarkets(t *testing.T) {
	t.Run("query parameters", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/markets" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/markets")
			}
			q := r.URL.Query()
			want := map[string]string{
				"limit":     "100",
				"offset":    "200",
				"active":    "true",
				"closed":    "false",
				"order":     "volume24hr",
				"ascending": "false",
			}
			for k, v := range want {
				if q.Get(k) != v {
					t.Errorf("%s = %q, want %q", k, q.Get(k), v)
				}
			}
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		markets, err := c.ListMarkets(context.Background(), 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(markets) != 0 {
			t.Errorf("len(markets) = %d, want 0", len(markets))
		}
	})

	t.Run("first page has no offset", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.URL.Query()["offset"]; ok {
				t.Error("offset should be omitted on the first page")
			}
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		if _, err := newTestClient(server.URL).ListMarkets(context.Background(), 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("converts gamma markets", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(gammaPage))
		}))
		defer server.Close()

		markets, err := newTestClient(server.URL).ListMarkets(context.Background(), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(markets) != 2 {
			t.Fatalf("len(markets) = %d, want 2", len(markets))
		}

		m := markets[0]
		if m.TokenID != "71321045679252212594626385532706912750332728571942532289631379312455583992563" {
			t.Errorf("TokenID = %q", m.TokenID)
		}
		if m.MarketID != "512345" || m.ConditionID != "0xabc" {
			t.Errorf("ids = %q/%q", m.MarketID, m.ConditionID)
		}
		if m.YesPrice != 52500 || m.NoPrice != 47500 {
			t.Errorf("prices = %d/%d, want 52500/47500", m.YesPrice, m.NoPrice)
		}
		if m.Volume24h != 15234.5 || m.VolumeTotal != 990000.25 || m.Liquidity != 4200 {
			t.Errorf("volume = %v/%v/%v", m.Volume24h, m.VolumeTotal, m.Liquidity)
		}
		if m.EventSlug != "rain-event" {
			t.Errorf("EventSlug = %q", m.EventSlug)
		}
		if len(m.Tags) != 1 || m.Tags[0] != "Weather" {
			t.Errorf("Tags = %v", m.Tags)
		}
		if len(m.Outcomes) != 2 || m.Outcomes[0] != "Yes" {
			t.Errorf("Outcomes = %v", m.Outcomes)
		}
		if len(m.ClobTokenIDs) != 2 {
			t.Errorf("ClobTokenIDs = %v", m.ClobTokenIDs)
		}
		if m.EndTS != 1738324800000000 {
			t.Errorf("EndTS = %d", m.EndTS)
		}
		if m.UpdatedAt == 0 {
			t.Error("UpdatedAt should be set")
		}

		if markets[1].TokenID != "" {
			t.Errorf("market without tokens TokenID = %q, want empty", markets[1].TokenID)
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := newTestClient(server.URL, WithRetries(0, 0))
		_, err := c.ListMarkets(context.Background(), 0)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !IsTransient(err) {
			t.Errorf("503 should be transient: %v", err)
		}
	})
}
