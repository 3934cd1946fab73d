package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/normalize"
)

// TokenSource provides the markets to subscribe to.
type TokenSource interface {
	ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error)
}

// PointWriter persists normalized points.
type PointWriter interface {
	UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error)
}

// Config holds tap configuration.
type Config struct {
	URL                string
	Interval           model.Interval // Bucket interval written by the tap
	MaxTokens          int            // Tokens subscribed, by 24h volume
	PingInterval       time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	FlushInterval      time.Duration // How often buffered samples are written
	RefreshInterval    time.Duration // How often the subscription is rebuilt from the catalog
	BufferSize         int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		Interval:           model.Interval1m,
		MaxTokens:          200,
		PingInterval:       10 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		FlushInterval:      time.Second,
		RefreshInterval:    30 * time.Minute,
		BufferSize:         10000,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if !c.Interval.Valid() {
		c.Interval = d.Interval
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		c.ReconnectMaxDelay = max(d.ReconnectMaxDelay, c.ReconnectBaseDelay)
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}

// Tap streams last trade prices into the store.
type Tap struct {
	cfg     Config
	tokens  TokenSource
	writer  PointWriter
	metrics *metrics.Metrics
	logger  *slog.Logger

	pending map[string][]model.Sample
	written map[string]map[int64]int64 // token -> bucket -> latest raw sample ts stored

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Tap.
type Option func(*Tap)

// WithMetrics records connection state and throughput.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tap) {
		t.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tap) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Tap.
func New(cfg Config, tokens TokenSource, writer PointWriter, opts ...Option) *Tap {
	t := &Tap{
		cfg:     cfg.withDefaults(),
		tokens:  tokens,
		writer:  writer,
		logger:  slog.Default(),
		pending: make(map[string][]model.Sample),
		written: make(map[string]map[int64]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins streaming in the background.
func (t *Tap) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.run()

	t.logger.Info("trade tap started",
		"url", t.cfg.URL,
		"interval", t.cfg.Interval,
		"max_tokens", t.cfg.MaxTokens,
	)
	return nil
}

// Stop closes the connection and flushes buffered samples.
func (t *Tap) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("trade tap stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run keeps a session open until the tap is stopped.
func (t *Tap) run() {
	defer t.wg.Done()
	defer t.metrics.SetStreamConnected(false)

	wait := t.cfg.ReconnectBaseDelay
	for {
		connected, err := t.session()
		if t.ctx.Err() != nil {
			return
		}
		if connected {
			wait = t.cfg.ReconnectBaseDelay
		}
		if err != nil {
			t.logger.Warn("trade tap session ended", "error", err, "retry_in", wait)
			t.metrics.IncStreamReconnect()

			select {
			case <-t.ctx.Done():
				return
			case <-time.After(wait):
			}

			// Exponential backoff
			wait *= 2
			if wait > t.cfg.ReconnectMaxDelay {
				wait = t.cfg.ReconnectMaxDelay
			}
		}
	}
}

// session runs one connection: subscribe, consume, flush. It returns
// connected=true once the subscription was sent, and a nil error when the
// session ended for a scheduled subscription refresh.
func (t *Tap) session() (connected bool, err error) {
	assets, err := t.subscribedTokens()
	if err != nil {
		return false, err
	}
	if len(assets) == 0 {
		return false, fmt.Errorf("no active markets to subscribe")
	}

	sessionID := uuid.NewString()
	logger := t.logger.With("session", sessionID)

	c := newConn(ConnConfig{
		URL:          t.cfg.URL,
		PingInterval: t.cfg.PingInterval,
		ReadTimeout:  t.cfg.ReadTimeout,
		WriteTimeout: t.cfg.WriteTimeout,
		BufferSize:   t.cfg.BufferSize,
	}, logger)
	if err := c.Connect(t.ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	req, err := json.Marshal(SubscribeRequest{AssetsIDs: assets, Type: "market"})
	if err != nil {
		return false, fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := c.Send(req); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	t.metrics.SetStreamConnected(true)
	defer t.metrics.SetStreamConnected(false)
	logger.Info("trade tap subscribed", "tokens", len(assets))

	known := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		known[a] = struct{}{}
	}

	flush := time.NewTicker(t.cfg.FlushInterval)
	defer flush.Stop()
	refresh := time.NewTimer(t.cfg.RefreshInterval)
	defer refresh.Stop()

	// Samples buffered when the session ends are still written.
	defer t.flush()

	for {
		select {
		case <-t.ctx.Done():
			return true, nil

		case err := <-c.Errors():
			return true, err

		case msg := <-c.Messages():
			t.handle(msg.Data, known, logger)

		case <-flush.C:
			t.flush()

		case <-refresh.C:
			logger.Debug("refreshing trade tap subscription")
			return true, nil
		}
	}
}

func (t *Tap) subscribedTokens() ([]string, error) {
	ctx, cancel := context.WithTimeout(t.ctx, 10*time.Second)
	defer cancel()

	markets, err := t.tokens.ListMarkets(ctx, model.MarketFilter{ActiveOnly: true, Limit: t.cfg.MaxTokens})
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	tokens := make([]string, 0, len(markets))
	for _, m := range markets {
		if m.TokenID != "" {
			tokens = append(tokens, m.TokenID)
		}
	}
	return tokens, nil
}

// handle buffers last trade prices for subscribed tokens.
func (t *Tap) handle(data []byte, known map[string]struct{}, logger *slog.Logger) {
	events, err := ParseEvents(data)
	if err != nil {
		logger.Debug("failed to parse message", "error", err, "size", len(data))
		t.metrics.IncStreamMessage("invalid")
		return
	}

	for _, ev := range events {
		t.metrics.IncStreamMessage(ev.EventType)
		sample, ok := ev.Sample()
		if !ok {
			continue
		}
		if _, ok := known[ev.AssetID]; !ok {
			continue
		}
		t.pending[ev.AssetID] = append(t.pending[ev.AssetID], sample)
	}
}

// writtenBuckets is how many recent buckets per token keep their latest
// stored sample time. Trades older than that are not expected on the feed.
const writtenBuckets = 16

// flush normalizes buffered samples and writes them in one store call.
// A sample older than one already stored for its bucket is dropped, so a
// delayed trade never replaces a newer price from an earlier flush.
func (t *Tap) flush() {
	if len(t.pending) == 0 {
		return
	}

	var points []model.PricePoint
	latest := make(map[string]map[int64]int64, len(t.pending))
	for tokenID, samples := range t.pending {
		seen := t.written[tokenID]
		fresh := samples[:0]
		for _, smp := range samples {
			b := t.cfg.Interval.Floor(smp.TS)
			if ts, ok := seen[b]; ok && smp.TS < ts {
				continue
			}
			fresh = append(fresh, smp)
			if m := latest[tokenID]; m == nil {
				latest[tokenID] = map[int64]int64{b: smp.TS}
			} else if smp.TS >= m[b] {
				m[b] = smp.TS
			}
		}
		points = append(points, normalize.Normalize(tokenID, t.cfg.Interval, fresh)...)
	}
	clear(t.pending)

	if len(points) == 0 {
		return
	}

	// Writes outlive a stopping tap so the final flush is not lost.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), 10*time.Second)
	defer cancel()

	changed, err := t.writer.UpsertPricePoints(ctx, points)
	if err != nil {
		t.logger.Warn("failed to write trade tap points", "points", len(points), "error", err)
		return
	}
	t.remember(latest)
	t.metrics.AddStreamPoints(changed)
	t.logger.Debug("trade tap flushed", "points", len(points), "changed", changed)
}

// remember records stored sample times and prunes buckets that have fallen
// out of the recent window.
func (t *Tap) remember(latest map[string]map[int64]int64) {
	width := t.cfg.Interval.WidthMicro()
	for tokenID, buckets := range latest {
		seen := t.written[tokenID]
		if seen == nil {
			seen = make(map[int64]int64, len(buckets))
			t.written[tokenID] = seen
		}
		var newest int64
		for b, ts := range buckets {
			seen[b] = ts
		}
		for b := range seen {
			newest = max(newest, b)
		}
		for b := range seen {
			if b < newest-writtenBuckets*width {
				delete(seen, b)
			}
		}
	}
}
