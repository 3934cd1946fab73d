package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/database"
)

// Open builds the Store selected by cfg.Driver and applies migrations when
// cfg.MigrateOnStart is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	target, err := database.DescribeDSN(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("opening store", "driver", cfg.Driver, "target", target)

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.MigrateOnStart() {
			if _, err := database.NewPostgresMigrator(pool, logger).ApplyAll(ctx); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		logger.Info("store opened", "driver", cfg.Driver, "host", cfg.Postgres.Host, "database", cfg.Postgres.Name)
		return NewPostgres(pool), nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart() {
			if _, err := database.NewSQLiteMigrator(db, logger).ApplyAll(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate sqlite: %w", err)
			}
		}
		logger.Info("store opened", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return NewSQLite(db), nil

	case config.DriverMemory:
		logger.Info("store opened", "driver", cfg.Driver)
		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
