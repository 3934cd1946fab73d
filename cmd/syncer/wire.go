package main

import (
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/history"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/poller"
	"github.com/rickgao/polymarket-data/internal/stream"
)

// Config values reaching these helpers have passed config.Validate, so
// interval strings are known to parse.

func historyConfig(cfg config.HistoryConfig) history.Config {
	out := history.DefaultConfig()
	for iv, d := range cfg.Lookback {
		out.Lookback[model.Interval(iv)] = d
	}
	out.FetchTimeout = cfg.FetchTimeout
	out.Concurrency = cfg.Concurrency
	return out
}

func pollerConfig(cfg *config.SyncerConfig) poller.Config {
	intervals := make([]model.Interval, len(cfg.History.Intervals))
	for i, iv := range cfg.History.Intervals {
		intervals[i] = model.Interval(iv)
	}

	out := poller.Config{
		CatalogInterval: cfg.Catalog.Interval,
		HistoryInterval: cfg.History.Interval,
		Intervals:       intervals,
		MaxTokens:       cfg.History.MaxTokens,
		MinVolume:       cfg.Catalog.MinVolume,
	}
	if cfg.Catalog.SyncHistory {
		out.CatalogHistory = model.Interval(cfg.Catalog.HistoryInterval)
	}
	return out
}

func streamConfig(cfg *config.SyncerConfig) stream.Config {
	out := stream.DefaultConfig()
	out.URL = cfg.API.WSURL
	out.Interval = model.Interval(cfg.Stream.Interval)
	out.MaxTokens = cfg.Stream.MaxTokens
	out.PingInterval = cfg.Stream.PingInterval
	out.ReadTimeout = cfg.Stream.ReadTimeout
	out.ReconnectBaseDelay = cfg.Stream.ReconnectBaseDelay
	out.ReconnectMaxDelay = cfg.Stream.ReconnectMaxDelay
	return out
}
