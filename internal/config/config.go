package config

import "time"

// SyncerConfig is the root configuration for a syncer instance.
type SyncerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Lock     LockConfig     `yaml:"lock"`
	Redis    RedisConfig    `yaml:"redis"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	History  HistoryConfig  `yaml:"history"`
	Stream   StreamConfig   `yaml:"stream"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this syncer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Polymarket API settings.
type APIConfig struct {
	GammaURL            string        `yaml:"gamma_url"`
	ClobURL             string        `yaml:"clob_url"`
	WSURL               string        `yaml:"ws_url"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryBackoff        time.Duration `yaml:"retry_backoff"`
	RateLimitPerMin     int           `yaml:"rate_limit_per_min"`
	PageSize            int           `yaml:"page_size"`              // Markets per catalog page
	MaxPointsPerRequest int           `yaml:"max_points_per_request"` // Buckets per price-history request
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// DatabaseConfig selects and configures the time-series store.
type DatabaseConfig struct {
	Driver     string   `yaml:"driver"` // postgres, sqlite or memory
	Postgres   DBConfig `yaml:"postgres"`
	SQLitePath string   `yaml:"sqlite_path"`
	Migrate    *bool    `yaml:"migrate"` // Apply migrations on startup (default true)
}

// MigrateOnStart reports whether migrations should run at startup.
func (d DatabaseConfig) MigrateOnStart() bool {
	return d.Migrate == nil || *d.Migrate
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
	LockNone  = "none"
)

// LockConfig selects the per-key sync lock.
type LockConfig struct {
	Backend string        `yaml:"backend"` // local, redis or none
	TTL     time.Duration `yaml:"ttl"`     // Redis lease; must exceed the longest sync
}

// RedisConfig holds the Redis connection used by the redis lock backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// CatalogConfig holds market catalog sync settings.
type CatalogConfig struct {
	Interval          time.Duration `yaml:"interval"`            // Poll interval
	DefaultMaxMarkets int           `yaml:"default_max_markets"` // Cap when callers pass none
	MinVolume         float64       `yaml:"min_volume"`          // Skip markets below this 24h volume
	SyncHistory       bool          `yaml:"sync_history"`        // Sync history for synced markets after each catalog run
	HistoryInterval   string        `yaml:"history_interval"`    // Interval used when SyncHistory is set
}

// HistoryConfig holds price-history sync settings.
type HistoryConfig struct {
	Intervals    []string                 `yaml:"intervals"`     // Intervals the poller keeps current
	Lookback     map[string]time.Duration `yaml:"lookback"`      // Backfill window per interval
	FetchTimeout time.Duration            `yaml:"fetch_timeout"` // Bound on one source fetch
	Concurrency  int                      `yaml:"concurrency"`
	Interval     time.Duration            `yaml:"interval"`   // Poll interval
	MaxTokens    int                      `yaml:"max_tokens"` // Tokens synced per poll (0 = all active)
}

// StreamConfig holds the live trade tap settings.
type StreamConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Interval           string        `yaml:"interval"`   // Bucket interval written by the tap
	MaxTokens          int           `yaml:"max_tokens"` // Tokens subscribed
	PingInterval       time.Duration `yaml:"ping_interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
