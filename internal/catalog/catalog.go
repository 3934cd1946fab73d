// Package catalog implements the Market Catalog Sync Engine.
//
// A sync walks the source's market listing page by page in source order and
// upserts each page before asking for the next, so a failure part way keeps
// every page already committed.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/lock"
	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/store"
)

// DefaultMaxMarkets caps a sync when neither the caller nor Config sets one.
const DefaultMaxMarkets = 1000

// Source lists markets one page at a time. Page numbers start at 0; a page
// with fewer than PageSize markets is the last.
type Source interface {
	ListMarkets(ctx context.Context, page int) ([]model.Market, error)
	PageSize() int
}

// Config holds catalog sync configuration.
type Config struct {
	DefaultMaxMarkets int // Cap applied when Options.MaxMarkets <= 0
}

// Options controls one sync.
type Options struct {
	MaxMarkets int     // <= 0 uses Config.DefaultMaxMarkets
	MinVolume  float64 // Skip markets whose ranking volume is below this
}

// Result describes one sync, complete or partial.
type Result struct {
	MarketsSynced int      // Distinct markets upserted
	Pages         int      // Pages fetched successfully
	Skipped       int      // Invalid token ids, duplicates and low-volume markets
	TokenIDs      []string // Synced token ids in source order
}

// Syncer runs catalog syncs.
type Syncer struct {
	cfg     Config
	source  Source
	store   store.Store
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLocker prevents overlapping catalog walks.
func WithLocker(l lock.Locker) Option {
	return func(s *Syncer) {
		s.locker = l
	}
}

// WithMetrics records sync outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Syncer.
func New(cfg Config, source Source, st store.Store, opts ...Option) *Syncer {
	if cfg.DefaultMaxMarkets <= 0 {
		cfg.DefaultMaxMarkets = DefaultMaxMarkets
	}
	s := &Syncer{
		cfg:    cfg,
		source: source,
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncAllMarkets refreshes up to opts.MaxMarkets catalog rows from the source.
//
// On a page or store failure the returned Result still reports what was
// committed, alongside an error wrapping ErrSourceUnavailable or
// ErrStoreUnavailable.
func (s *Syncer) SyncAllMarkets(ctx context.Context, opts Options) (res Result, err error) {
	start := time.Now()
	maxMarkets := opts.MaxMarkets
	if maxMarkets <= 0 {
		maxMarkets = s.cfg.DefaultMaxMarkets
	}

	defer func() {
		s.metrics.ObserveCatalogSync(res.MarketsSynced, res.Skipped, time.Since(start), err)
		if err != nil && !errors.Is(err, model.ErrSyncInProgress) {
			s.logger.Warn("catalog sync failed",
				"synced", res.MarketsSynced,
				"pages", res.Pages,
				"transient", model.IsTransient(err),
				"err", err,
			)
			return
		}
		s.logger.Info("catalog sync complete",
			"synced", res.MarketsSynced,
			"pages", res.Pages,
			"skipped", res.Skipped,
			"max_markets", maxMarkets,
			"duration", time.Since(start),
		)
	}()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, lock.CatalogKey)
		switch {
		case err != nil:
			// Market upserts are last-write-wins by UpdatedAt, so running unlocked is safe.
			s.logger.Warn("catalog lock unavailable, continuing unlocked", "err", err)
		case !ok:
			return res, fmt.Errorf("%w: catalog", model.ErrSyncInProgress)
		default:
			defer release()
		}
	}

	pageSize := s.source.PageSize()
	seen := make(map[string]struct{})

	for page := 0; res.MarketsSynced < maxMarkets; page++ {
		markets, err := s.source.ListMarkets(ctx, page)
		if ctx.Err() != nil {
			return res, fmt.Errorf("catalog sync: %w", ctx.Err())
		}
		if err != nil {
			return res, &model.SourceError{
				Op:        fmt.Sprintf("list markets page %d", page),
				Transient: api.IsTransient(err),
				Err:       err,
			}
		}
		res.Pages++

		keep := make([]model.Market, 0, len(markets))
		for _, m := range markets {
			if res.MarketsSynced+len(keep) >= maxMarkets {
				break
			}
			if reason := s.skipReason(m, opts, seen); reason != "" {
				s.logger.Debug("skipping market", "market_id", m.MarketID, "token_id", m.TokenID, "reason", reason)
				res.Skipped++
				continue
			}
			seen[m.TokenID] = struct{}{}
			keep = append(keep, m)
		}

		if len(keep) > 0 {
			if err := s.store.UpsertMarkets(ctx, keep); err != nil {
				if ctx.Err() != nil {
					return res, fmt.Errorf("catalog sync: %w", ctx.Err())
				}
				return res, fmt.Errorf("%w: upsert markets page %d: %w", model.ErrStoreUnavailable, page, err)
			}
			res.MarketsSynced += len(keep)
			for _, m := range keep {
				res.TokenIDs = append(res.TokenIDs, m.TokenID)
			}
		}

		if len(markets) == 0 || len(markets) < pageSize {
			break
		}
	}

	return res, nil
}

func (s *Syncer) skipReason(m model.Market, opts Options, seen map[string]struct{}) string {
	if err := model.ValidateTokenID(m.TokenID); err != nil {
		return "invalid token id"
	}
	if _, dup := seen[m.TokenID]; dup {
		return "duplicate"
	}
	if opts.MinVolume > 0 && m.RankingVolume() < opts.MinVolume {
		return "below min volume"
	}
	return ""
}
