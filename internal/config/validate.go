package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.PageSize < 1 {
		return errors.New("api.page_size must be >= 1")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return errors.New("database.sqlite_path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of postgres, sqlite, memory, got %q", c.Database.Driver)
	}

	switch c.Lock.Backend {
	case LockLocal, LockNone:
	case LockRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when lock.backend is redis")
		}
		if c.Lock.TTL < time.Second {
			return fmt.Errorf("lock.ttl must be >= 1s, got %v", c.Lock.TTL)
		}
	default:
		return fmt.Errorf("lock.backend must be one of local, redis, none, got %q", c.Lock.Backend)
	}

	if c.Catalog.DefaultMaxMarkets < 1 {
		return errors.New("catalog.default_max_markets must be >= 1")
	}
	if c.Catalog.MinVolume < 0 {
		return errors.New("catalog.min_volume must be >= 0")
	}
	if _, err := model.ParseInterval(c.Catalog.HistoryInterval); err != nil {
		return fmt.Errorf("catalog.history_interval: %w", err)
	}

	for _, iv := range c.History.Intervals {
		if _, err := model.ParseInterval(iv); err != nil {
			return fmt.Errorf("history.intervals: %w", err)
		}
	}
	for iv, d := range c.History.Lookback {
		if _, err := model.ParseInterval(iv); err != nil {
			return fmt.Errorf("history.lookback: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("history.lookback.%s must be positive", iv)
		}
	}
	if c.History.Concurrency < 1 {
		return errors.New("history.concurrency must be >= 1")
	}
	if c.History.FetchTimeout <= 0 {
		return errors.New("history.fetch_timeout must be positive")
	}
	if c.Lock.Backend == LockRedis && c.Lock.TTL <= c.History.FetchTimeout {
		return fmt.Errorf("lock.ttl (%v) must exceed history.fetch_timeout (%v)", c.Lock.TTL, c.History.FetchTimeout)
	}

	if c.Stream.Enabled {
		if _, err := model.ParseInterval(c.Stream.Interval); err != nil {
			return fmt.Errorf("stream.interval: %w", err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
