// synctl runs one-off syncs and reads against a syncer's store.
//
// Usage:
//
//	synctl [-config path] markets [-max N] [-min-volume V] [-history] [-interval 1h]
//	synctl [-config path] history -token ID [-interval 1h]
//	synctl [-config path] show -token ID [-interval 1h] [-limit N] [-fill]
//	synctl [-config path] probe -token ID [-interval 1h] [-hours 24]
//	synctl version
//
// Without -config the CLI uses a local SQLite store and a process-local lock.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/catalog"
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/history"
	"github.com/rickgao/polymarket-data/internal/lock"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/normalize"
	"github.com/rickgao/polymarket-data/internal/poller"
	"github.com/rickgao/polymarket-data/internal/reader"
	"github.com/rickgao/polymarket-data/internal/store"
	"github.com/rickgao/polymarket-data/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: local SQLite store)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "synctl:", err)
		os.Exit(1)
	}

	var run func(context.Context, *app, []string) error
	switch cmd {
	case "markets":
		run = runMarkets
	case "history":
		run = runHistory
	case "show":
		run = runShow
	case "probe":
		run = runProbe
	default:
		fmt.Fprintf(os.Stderr, "synctl: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	a, err := newApp(ctx, cfg, logger, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "synctl:", err)
		os.Exit(1)
	}
	defer a.close()

	if err := run(ctx, a, args); err != nil {
		fmt.Fprintln(os.Stderr, "synctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: synctl [-config path] [-v] <markets|history|show|probe|version> [flags]")
	flag.PrintDefaults()
}

func loadConfig(path string) (*config.SyncerConfig, error) {
	if path == "" {
		cfg := config.Default("synctl")
		cfg.Database.Driver = config.DriverSQLite
		return cfg, nil
	}
	return config.LoadAndValidate(path)
}

// app holds the components a subcommand needs.
type app struct {
	store   store.Store
	locker  lock.Locker
	client  *api.Client
	catalog *catalog.Syncer
	history *history.Syncer
	poller  *poller.Poller
	reader  *reader.Service
	out     io.Writer
}

func newApp(ctx context.Context, cfg *config.SyncerConfig, logger *slog.Logger, out io.Writer) (*app, error) {
	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	locker, err := lock.New(ctx, cfg.Lock, cfg.Redis, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create locker: %w", err)
	}

	client := api.NewClient(cfg.API.GammaURL, cfg.API.ClobURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithRateLimit(cfg.API.RateLimitPerMin),
		api.WithPageSize(cfg.API.PageSize),
		api.WithMaxPointsPerRequest(cfg.API.MaxPointsPerRequest),
	)

	hcfg := history.DefaultConfig()
	hcfg.FetchTimeout = cfg.History.FetchTimeout
	hcfg.Concurrency = cfg.History.Concurrency
	for iv, d := range cfg.History.Lookback {
		hcfg.Lookback[model.Interval(iv)] = d
	}

	hist := history.New(hcfg, client, st, history.WithLocker(locker), history.WithLogger(logger))
	cat := catalog.New(catalog.Config{DefaultMaxMarkets: cfg.Catalog.DefaultMaxMarkets}, client, st,
		catalog.WithLocker(locker),
		catalog.WithLogger(logger),
	)

	return &app{
		store:   st,
		locker:  locker,
		client:  client,
		catalog: cat,
		history: hist,
		poller:  poller.New(poller.Config{}, cat, hist, st, logger),
		reader:  reader.New(st, reader.WithLogger(logger)),
		out:     out,
	}, nil
}

func (a *app) close() {
	a.locker.Close()
	a.store.Close()
}

func runMarkets(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("markets", flag.ContinueOnError)
	maxMarkets := fs.Int("max", 0, "maximum markets to sync (0 = configured default)")
	minVolume := fs.Float64("min-volume", 0, "skip markets below this 24h volume")
	withHistory := fs.Bool("history", false, "sync price history for every synced market")
	intervalFlag := fs.String("interval", "1h", "history interval used with -history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := catalog.Options{MaxMarkets: *maxMarkets, MinVolume: *minVolume}
	start := time.Now()

	if !*withHistory {
		res, err := a.catalog.SyncAllMarkets(ctx, opts)
		fmt.Fprintf(a.out, "markets synced: %d (pages %d, skipped %d) in %s\n",
			res.MarketsSynced, res.Pages, res.Skipped, time.Since(start).Round(time.Millisecond))
		return err
	}

	interval, err := model.ParseInterval(*intervalFlag)
	if err != nil {
		return err
	}
	res, sum, err := a.poller.SyncMarketsAndHistory(ctx, opts, interval)
	fmt.Fprintf(a.out, "markets synced: %d (pages %d, skipped %d)\n", res.MarketsSynced, res.Pages, res.Skipped)
	if err == nil {
		fmt.Fprintf(a.out, "history %s: %d synced, %d failed, %d points written\n",
			interval, sum.Synced, sum.Failed, sum.PointsWritten)
	}
	fmt.Fprintf(a.out, "done in %s\n", time.Since(start).Round(time.Millisecond))
	return err
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	token := fs.String("token", "", "CLOB token id")
	intervalFlag := fs.String("interval", "1h", "bucket interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("history: -token is required")
	}
	interval, err := model.ParseInterval(*intervalFlag)
	if err != nil {
		return err
	}

	res, err := a.history.SyncPriceHistory(ctx, *token, interval)
	if err != nil {
		return err
	}

	mode := "incremental"
	if res.Backfill {
		mode = "backfill"
	}
	fmt.Fprintf(a.out, "%s %s (%s): %d points written, %d changed, window %s .. %s\n",
		res.TokenID, res.Interval, mode, res.PointsWritten, res.PointsChanged,
		formatTS(res.Window.Start), formatTS(res.Window.End))
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	token := fs.String("token", "", "CLOB token id")
	intervalFlag := fs.String("interval", "1h", "bucket interval")
	limit := fs.Int("limit", 50, "maximum points (0 = all)")
	fill := fs.Bool("fill", false, "forward-fill missing buckets")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("show: -token is required")
	}
	interval, err := model.ParseInterval(*intervalFlag)
	if err != nil {
		return err
	}

	points, err := a.reader.GetPriceHistory(ctx, *token, interval, reader.Query{Limit: *limit, FillGaps: *fill})
	if err != nil {
		return err
	}
	return printPoints(a.out, points)
}

func runProbe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	token := fs.String("token", "", "CLOB token id")
	intervalFlag := fs.String("interval", "1h", "bucket interval")
	hours := fs.Int("hours", 24, "hours of history to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return errors.New("probe: -token is required")
	}
	interval, err := model.ParseInterval(*intervalFlag)
	if err != nil {
		return err
	}

	end := time.Now()
	w := model.TimeRange{Start: end.Add(-time.Duration(*hours) * time.Hour).UnixMicro(), End: end.UnixMicro()}

	samples, err := a.client.GetSamples(ctx, *token, interval, w.Start, w.End)
	if err != nil {
		return err
	}
	points := normalize.Normalize(*token, interval, normalize.InWindow(samples, w))
	fmt.Fprintf(a.out, "%d samples -> %d buckets (not stored)\n", len(samples), len(points))
	return printPoints(a.out, points)
}

func printPoints(out io.Writer, points []model.PricePoint) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tPRICE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\n", formatTS(p.BucketTS), decimal.New(int64(p.Price), -5).StringFixed(5))
	}
	return tw.Flush()
}

func formatTS(us int64) string {
	return time.UnixMicro(us).UTC().Format(time.RFC3339)
}
