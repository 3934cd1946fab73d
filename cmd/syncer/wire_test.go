package main

import (
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/model"
)

func TestPollerConfig(t *testing.T) {
	cfg := config.Default("test")
	cfg.History.Intervals = []string{"1m", "1w"}
	cfg.Catalog.SyncHistory = true
	cfg.Catalog.HistoryInterval = "6h"

	got := pollerConfig(cfg)
	if len(got.Intervals) != 2 || got.Intervals[1] != model.Interval1w {
		t.Errorf("Intervals = %v", got.Intervals)
	}
	if got.CatalogHistory != model.Interval6h {
		t.Errorf("CatalogHistory = %q, want 6h", got.CatalogHistory)
	}

	cfg.Catalog.SyncHistory = false
	if got := pollerConfig(cfg); got.CatalogHistory != "" {
		t.Errorf("CatalogHistory = %q, want empty", got.CatalogHistory)
	}
}

func TestHistoryConfigOverridesLookback(t *testing.T) {
	cfg := config.Default("test")
	cfg.History.Lookback["1h"] = 48 * time.Hour

	got := historyConfig(cfg.History)
	if got.Lookback[model.Interval1h] != 48*time.Hour {
		t.Errorf("1h lookback = %v, want 48h", got.Lookback[model.Interval1h])
	}
	if got.Lookback[model.Interval1d] != 365*24*time.Hour {
		t.Errorf("1d lookback = %v", got.Lookback[model.Interval1d])
	}
}

func TestStreamConfig(t *testing.T) {
	cfg := config.Default("test")
	cfg.API.WSURL = "ws://localhost:9999/ws"

	got := streamConfig(cfg)
	if got.URL != cfg.API.WSURL || got.Interval != model.Interval1m {
		t.Errorf("got %+v", got)
	}
	if got.WriteTimeout == 0 {
		t.Error("WriteTimeout should keep its default")
	}
}
