package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/polymarket-data/internal/catalog"
	"github.com/rickgao/polymarket-data/internal/history"
	"github.com/rickgao/polymarket-data/internal/model"
)

// CatalogSyncer refreshes the market catalog.
type CatalogSyncer interface {
	SyncAllMarkets(ctx context.Context, opts catalog.Options) (catalog.Result, error)
}

// HistorySyncer refreshes price history for many series.
type HistorySyncer interface {
	SyncMany(ctx context.Context, tokens []string, intervals []model.Interval) history.Summary
}

// MarketLister provides the markets whose history is kept current.
type MarketLister interface {
	ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error)
}

// Config holds poller configuration.
type Config struct {
	CatalogInterval time.Duration    // Catalog poll interval; 0 disables the catalog loop
	HistoryInterval time.Duration    // History poll interval; 0 disables the history loop
	Intervals       []model.Interval // Intervals kept current for each token
	MaxTokens       int              // Tokens per history poll, by 24h volume (0 = all active)
	MaxMarkets      int              // Catalog cap per poll (0 = engine default)
	MinVolume       float64          // Catalog volume floor
	CatalogHistory  model.Interval   // When set, each catalog poll is followed by this interval's history
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CatalogInterval: 30 * time.Minute,
		HistoryInterval: 15 * time.Minute,
		Intervals:       []model.Interval{model.Interval1h, model.Interval1d},
	}
}

// Poller periodically syncs the catalog and price history.
type Poller struct {
	cfg     Config
	catalog CatalogSyncer
	history HistorySyncer
	markets MarketLister
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, cat CatalogSyncer, hist HistorySyncer, markets MarketLister, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		catalog: cat,
		history: hist,
		markets: markets,
		logger:  logger,
	}
}

// Start begins the polling loops.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if p.cfg.CatalogInterval > 0 {
		p.wg.Add(1)
		go p.run(p.cfg.CatalogInterval, p.pollCatalog)
	}
	if p.cfg.HistoryInterval > 0 {
		p.wg.Add(1)
		go p.run(p.cfg.HistoryInterval, p.pollHistory)
	}

	p.logger.Info("sync poller started",
		"catalog_interval", p.cfg.CatalogInterval,
		"history_interval", p.cfg.HistoryInterval,
		"intervals", p.cfg.Intervals,
		"max_tokens", p.cfg.MaxTokens,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("sync poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run calls poll immediately and then on every tick.
func (p *Poller) run(interval time.Duration, poll func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// pollCatalog runs one catalog sync. Failures are logged by the engine.
func (p *Poller) pollCatalog() {
	opts := catalog.Options{
		MaxMarkets: p.cfg.MaxMarkets,
		MinVolume:  p.cfg.MinVolume,
	}
	if p.cfg.CatalogHistory == "" {
		_, _ = p.catalog.SyncAllMarkets(p.ctx, opts)
		return
	}
	if _, _, err := p.SyncMarketsAndHistory(p.ctx, opts, p.cfg.CatalogHistory); err != nil {
		p.logger.Debug("post-catalog history skipped", "err", err)
	}
}

// pollHistory syncs every configured interval for the top active markets.
func (p *Poller) pollHistory() {
	start := time.Now()

	markets, err := p.markets.ListMarkets(p.ctx, model.MarketFilter{
		ActiveOnly: true,
		Limit:      p.cfg.MaxTokens,
	})
	if err != nil {
		p.logger.Warn("failed to list markets for history poll", "err", err)
		return
	}
	if len(markets) == 0 {
		p.logger.Debug("no active markets to poll")
		return
	}

	tokens := make([]string, len(markets))
	for i, m := range markets {
		tokens[i] = m.TokenID
	}

	sum := p.history.SyncMany(p.ctx, tokens, p.cfg.Intervals)

	p.logger.Info("history poll complete",
		"tokens", len(tokens),
		"synced", sum.Synced,
		"failed", sum.Failed,
		"in_progress", sum.InProgress,
		"changed", sum.PointsChanged,
		"duration", time.Since(start),
	)
}

// SyncMarketsAndHistory runs a catalog sync and then, when it completes
// without error, syncs interval history for every market it refreshed.
func (p *Poller) SyncMarketsAndHistory(ctx context.Context, opts catalog.Options, interval model.Interval) (catalog.Result, history.Summary, error) {
	if !interval.Valid() {
		return catalog.Result{}, history.Summary{}, fmt.Errorf("%w: %q", model.ErrUnsupportedInterval, interval)
	}

	res, err := p.catalog.SyncAllMarkets(ctx, opts)
	if err != nil {
		return res, history.Summary{}, err
	}
	if len(res.TokenIDs) == 0 {
		return res, history.Summary{}, nil
	}

	sum := p.history.SyncMany(ctx, res.TokenIDs, []model.Interval{interval})
	p.logger.Info("post-catalog history sync complete",
		"interval", interval,
		"tokens", len(res.TokenIDs),
		"synced", sum.Synced,
		"failed", sum.Failed,
	)
	return res, sum, nil
}
