package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/lock"
	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/normalize"
	"github.com/rickgao/polymarket-data/internal/store"
)

// Source fetches raw price samples for one token.
type Source interface {
	GetSamples(ctx context.Context, tokenID string, interval model.Interval, start, end int64) ([]model.Sample, error)
}

// Config holds sync engine configuration.
type Config struct {
	Lookback     map[model.Interval]time.Duration // Backfill window when a series is empty
	FetchTimeout time.Duration                    // Bound on one source fetch
	Concurrency  int                              // Max concurrent syncs in SyncMany
}

// fallbackLookbackBuckets sizes the backfill for intervals missing from Lookback.
const fallbackLookbackBuckets = 1000

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Lookback: map[model.Interval]time.Duration{
			model.Interval1m: 24 * time.Hour,
			model.Interval1h: 30 * 24 * time.Hour,
			model.Interval6h: 90 * 24 * time.Hour,
			model.Interval1d: 365 * 24 * time.Hour,
			model.Interval1w: 730 * 24 * time.Hour,
		},
		FetchTimeout: 60 * time.Second,
		Concurrency:  8,
	}
}

// Result describes one completed sync.
type Result struct {
	TokenID       string
	Interval      model.Interval
	PointsWritten int             // Points passed to the store
	PointsChanged int             // Rows inserted or repriced
	Window        model.TimeRange // Requested source window
	Backfill      bool            // Series was empty before the sync
	CursorBefore  int64           // Latest bucket before the sync (0 when empty)
	CursorAfter   int64           // Latest bucket after the sync (0 when still empty)
}

// Syncer runs price-history syncs.
type Syncer struct {
	cfg     Config
	source  Source
	store   store.Store
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLocker serializes syncs per (token, interval). Without it concurrent
// syncs of one series both run and converge through the idempotent upsert.
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

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// New creates a Syncer.
func New(cfg Config, source Source, st store.Store, opts ...Option) *Syncer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	s := &Syncer{
		cfg:    cfg,
		source: source,
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncPriceHistory brings the stored series for (tokenID, interval) up to date.
//
// Errors wrap the model taxonomy: ErrUnsupportedInterval, ErrUnknownMarket,
// ErrSyncInProgress, ErrSourceUnavailable (as *model.SourceError) and
// ErrStoreUnavailable. On any error nothing has been written.
func (s *Syncer) SyncPriceHistory(ctx context.Context, tokenID string, interval model.Interval) (res Result, err error) {
	start := time.Now()
	res = Result{TokenID: tokenID, Interval: interval}

	defer func() {
		s.metrics.ObserveHistorySync(string(interval), res.PointsWritten, res.PointsChanged, time.Since(start), err)
		switch {
		case err == nil:
			s.logger.Debug("price history synced",
				"token_id", tokenID,
				"interval", interval,
				"written", res.PointsWritten,
				"changed", res.PointsChanged,
				"backfill", res.Backfill,
				"duration", time.Since(start),
			)
		case errors.Is(err, model.ErrSyncInProgress):
			s.logger.Debug("price history sync skipped", "token_id", tokenID, "interval", interval)
		default:
			s.logger.Warn("price history sync failed",
				"token_id", tokenID,
				"interval", interval,
				"transient", model.IsTransient(err),
				"err", err,
			)
		}
	}()

	if !interval.Valid() {
		return res, fmt.Errorf("%w: %q", model.ErrUnsupportedInterval, interval)
	}

	if _, err := s.store.GetMarket(ctx, tokenID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("%w: %s", model.ErrUnknownMarket, tokenID)
		}
		return res, fmt.Errorf("%w: lookup market: %w", model.ErrStoreUnavailable, err)
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, lock.SeriesKey(tokenID, string(interval)))
		switch {
		case err != nil:
			// Upserts are idempotent, so a lock outage only costs duplicate fetches.
			s.logger.Warn("sync lock unavailable, continuing unlocked",
				"token_id", tokenID,
				"interval", interval,
				"err", err,
			)
		case !ok:
			return res, fmt.Errorf("%w: %s/%s", model.ErrSyncInProgress, tokenID, interval)
		default:
			defer release()
		}
	}

	cursor, hasCursor, err := s.store.MaxTimestamp(ctx, tokenID, interval)
	if err != nil {
		return res, fmt.Errorf("%w: read cursor: %w", model.ErrStoreUnavailable, err)
	}
	if hasCursor {
		res.CursorBefore = cursor
		res.CursorAfter = cursor
	}
	res.Backfill = !hasCursor
	res.Window = s.window(interval, cursor, hasCursor)

	samples, err := s.fetch(ctx, tokenID, interval, res.Window)
	if err != nil {
		return res, err
	}

	points := normalize.Normalize(tokenID, interval, normalize.InWindow(samples, res.Window))
	if len(points) == 0 {
		return res, nil
	}

	changed, err := s.store.UpsertPricePoints(ctx, points)
	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("sync %s/%s: %w", tokenID, interval, ctx.Err())
		}
		return res, fmt.Errorf("%w: upsert price points: %w", model.ErrStoreUnavailable, err)
	}

	res.PointsWritten = len(points)
	res.PointsChanged = changed
	if last := points[len(points)-1].BucketTS; !hasCursor || last > res.CursorAfter {
		res.CursorAfter = last
	}
	return res, nil
}

// window computes the source window for one sync. With a cursor the window
// starts one bucket before it, clamped to the lookback; without one it spans
// the whole lookback.
func (s *Syncer) window(interval model.Interval, cursor int64, hasCursor bool) model.TimeRange {
	now := s.now().UnixMicro()
	earliest := now - s.lookback(interval).Microseconds()

	start := earliest
	if hasCursor {
		start = max(cursor-interval.WidthMicro(), earliest)
	}
	return model.TimeRange{Start: min(start, now), End: now}
}

func (s *Syncer) lookback(interval model.Interval) time.Duration {
	if d, ok := s.cfg.Lookback[interval]; ok && d > 0 {
		return d
	}
	return interval.Width() * fallbackLookbackBuckets
}

// fetch calls the source under FetchTimeout. Caller cancellation is returned
// as-is; every other failure becomes a *model.SourceError.
func (s *Syncer) fetch(ctx context.Context, tokenID string, interval model.Interval, w model.TimeRange) ([]model.Sample, error) {
	fetchCtx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	samples, err := s.source.GetSamples(fetchCtx, tokenID, interval, w.Start, w.End)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("sync %s/%s: %w", tokenID, interval, ctx.Err())
	}
	if err != nil {
		return nil, &model.SourceError{
			Op:        "get samples " + tokenID,
			Transient: api.IsTransient(err),
			Err:       err,
		}
	}
	return samples, nil
}

// Summary aggregates a SyncMany run.
type Summary struct {
	Synced        int
	Failed        int
	InProgress    int // Skipped because another sync held the lock
	PointsWritten int
	PointsChanged int
}

// SyncMany syncs every (token, interval) pair with bounded concurrency.
// Individual failures are logged and counted; SyncMany itself only stops
// early when ctx is done.
func (s *Syncer) SyncMany(ctx context.Context, tokens []string, intervals []model.Interval) Summary {
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	var synced, failed, inProgress, written, changed atomic.Int64

loop:
	for _, tokenID := range tokens {
		for _, interval := range intervals {
			if ctx.Err() != nil {
				break loop
			}
			// Acquire a slot before starting the goroutine.
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break loop
			}

			wg.Add(1)
			go func(tokenID string, interval model.Interval) {
				defer wg.Done()
				defer func() { <-sem }()

				res, err := s.SyncPriceHistory(ctx, tokenID, interval)
				switch {
				case err == nil:
					synced.Add(1)
					written.Add(int64(res.PointsWritten))
					changed.Add(int64(res.PointsChanged))
				case errors.Is(err, model.ErrSyncInProgress):
					inProgress.Add(1)
				default:
					failed.Add(1)
				}
			}(tokenID, interval)
		}
	}

	wg.Wait()

	return Summary{
		Synced:        int(synced.Load()),
		Failed:        int(failed.Load()),
		InProgress:    int(inProgress.Load()),
		PointsWritten: int(written.Load()),
		PointsChanged: int(changed.Load()),
	}
}
