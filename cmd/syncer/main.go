package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/polymarket-data/internal/api"
	"github.com/rickgao/polymarket-data/internal/catalog"
	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/history"
	"github.com/rickgao/polymarket-data/internal/lock"
	"github.com/rickgao/polymarket-data/internal/metrics"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/poller"
	"github.com/rickgao/polymarket-data/internal/reader"
	"github.com/rickgao/polymarket-data/internal/server"
	"github.com/rickgao/polymarket-data/internal/store"
	"github.com/rickgao/polymarket-data/internal/stream"
	"github.com/rickgao/polymarket-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncer.local.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config is expanded")
	noPoll := flag.Bool("no-poll", false, "serve the API without the background pollers")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting syncer",
		"version", version.String(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
		"driver", cfg.Database.Driver,
		"lock", cfg.Lock.Backend,
	)

	if err := run(cfg, *noPoll, logger); err != nil {
		logger.Error("syncer failed", "error", err)
		os.Exit(1)
	}
	logger.Info("syncer stopped")
}

func run(cfg *config.SyncerConfig, noPoll bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	locker, err := lock.New(ctx, cfg.Lock, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("create locker: %w", err)
	}
	defer locker.Close()

	client := newAPIClient(cfg.API, logger)

	histSyncer := history.New(historyConfig(cfg.History), client, st,
		history.WithLocker(locker),
		history.WithMetrics(m),
		history.WithLogger(logger),
	)
	catSyncer := catalog.New(catalog.Config{DefaultMaxMarkets: cfg.Catalog.DefaultMaxMarkets}, client, st,
		catalog.WithLocker(locker),
		catalog.WithMetrics(m),
		catalog.WithLogger(logger),
	)
	pol := poller.New(pollerConfig(cfg), catSyncer, histSyncer, st, logger)
	rd := reader.New(st, reader.WithLogger(logger))

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsMux(cfg.Metrics.Path, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve(metricsServer, "metrics", logger)

	// API server
	handler := server.NewHandler(server.Deps{
		Catalog:                catSyncer,
		Pipeline:               pol,
		History:                histSyncer,
		Reader:                 rd,
		Store:                  st,
		Metrics:                m,
		Logger:                 logger,
		DefaultHistoryInterval: model.Interval(cfg.Catalog.HistoryInterval),
	})
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve(apiServer, "api", logger)

	if !noPoll {
		if err := pol.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
		defer shutdown(logger, "poller", pol.Stop)
	}

	if cfg.Stream.Enabled {
		tap := stream.New(streamConfig(cfg), st, st,
			stream.WithMetrics(m),
			stream.WithLogger(logger),
		)
		if err := tap.Start(ctx); err != nil {
			return fmt.Errorf("start stream tap: %w", err)
		}
		defer shutdown(logger, "stream tap", tap.Stop)
	}

	logger.Info("syncer running",
		"api_url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
		"polling", !noPoll,
		"stream", cfg.Stream.Enabled,
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdown(logger, "api server", apiServer.Shutdown)
	shutdown(logger, "metrics server", metricsServer.Shutdown)
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newAPIClient(cfg config.APIConfig, logger *slog.Logger) *api.Client {
	return api.NewClient(cfg.GammaURL, cfg.ClobURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Timeout),
		api.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
		api.WithRateLimit(cfg.RateLimitPerMin),
		api.WithPageSize(cfg.PageSize),
		api.WithMaxPointsPerRequest(cfg.MaxPointsPerRequest),
	)
}

func metricsMux(path string, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	return mux
}

func serve(srv *http.Server, name string, logger *slog.Logger) {
	logger.Info("starting server", "name", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "name", name, "error", err)
	}
}

// shutdown stops a component with a bounded grace period.
func shutdown(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("shutdown incomplete", "component", name, "error", err)
	}
}
