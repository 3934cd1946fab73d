package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGammaURL            = "https://gamma-api.polymarket.com"
	DefaultClobURL             = "https://clob.polymarket.com"
	DefaultWSURL               = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultAPITimeout          = 30 * time.Second
	DefaultMaxRetries          = 3
	DefaultRetryBackoff        = 1 * time.Second
	DefaultRateLimitPerMin     = 300
	DefaultPageSize            = 100
	DefaultMaxPointsPerRequest = 1000
	DefaultDriver              = DriverPostgres
	DefaultSQLitePath          = "polymarket.db"
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultLockBackend         = LockLocal
	DefaultLockTTL             = 5 * time.Minute
	DefaultRedisKeyPrefix      = "polymarket"
	DefaultCatalogInterval     = 30 * time.Minute
	DefaultMaxMarkets          = 1000
	DefaultCatalogHistory      = "1h"
	DefaultFetchTimeout        = 60 * time.Second
	DefaultHistoryConcurrency  = 8
	DefaultHistoryInterval     = 15 * time.Minute
	DefaultStreamInterval      = "1m"
	DefaultStreamMaxTokens     = 200
	DefaultPingInterval        = 10 * time.Second
	DefaultReadTimeout         = 60 * time.Second
	DefaultReconnectBaseDelay  = 1 * time.Second
	DefaultReconnectMaxDelay   = 60 * time.Second
	DefaultServerPort          = 8080
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// DefaultIntervals are kept current by the history poller when none are configured.
var DefaultIntervals = []string{"1h", "1d"}

// DefaultLookback is the backfill window per interval.
var DefaultLookback = map[string]time.Duration{
	"1m": 24 * time.Hour,
	"1h": 30 * 24 * time.Hour,
	"6h": 90 * 24 * time.Hour,
	"1d": 365 * 24 * time.Hour,
	"1w": 2 * 365 * 24 * time.Hour,
}

func (c *SyncerConfig) applyDefaults() {
	// API defaults
	if c.API.GammaURL == "" {
		c.API.GammaURL = DefaultGammaURL
	}
	if c.API.ClobURL == "" {
		c.API.ClobURL = DefaultClobURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.RateLimitPerMin == 0 {
		c.API.RateLimitPerMin = DefaultRateLimitPerMin
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}
	if c.API.MaxPointsPerRequest == 0 {
		c.API.MaxPointsPerRequest = DefaultMaxPointsPerRequest
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = DefaultSQLitePath
	}
	applyDBDefaults(&c.Database.Postgres)

	// Lock defaults
	if c.Lock.Backend == "" {
		c.Lock.Backend = DefaultLockBackend
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = DefaultLockTTL
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// Catalog defaults
	if c.Catalog.Interval == 0 {
		c.Catalog.Interval = DefaultCatalogInterval
	}
	if c.Catalog.DefaultMaxMarkets == 0 {
		c.Catalog.DefaultMaxMarkets = DefaultMaxMarkets
	}
	if c.Catalog.HistoryInterval == "" {
		c.Catalog.HistoryInterval = DefaultCatalogHistory
	}

	// History defaults
	if len(c.History.Intervals) == 0 {
		c.History.Intervals = append([]string(nil), DefaultIntervals...)
	}
	if c.History.Lookback == nil {
		c.History.Lookback = make(map[string]time.Duration, len(DefaultLookback))
	}
	for iv, d := range DefaultLookback {
		if _, ok := c.History.Lookback[iv]; !ok {
			c.History.Lookback[iv] = d
		}
	}
	if c.History.FetchTimeout == 0 {
		c.History.FetchTimeout = DefaultFetchTimeout
	}
	if c.History.Concurrency == 0 {
		c.History.Concurrency = DefaultHistoryConcurrency
	}
	if c.History.Interval == 0 {
		c.History.Interval = DefaultHistoryInterval
	}

	// Stream defaults
	if c.Stream.Interval == "" {
		c.Stream.Interval = DefaultStreamInterval
	}
	if c.Stream.MaxTokens == 0 {
		c.Stream.MaxTokens = DefaultStreamMaxTokens
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.ReadTimeout == 0 {
		c.Stream.ReadTimeout = DefaultReadTimeout
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	// Server and metrics defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
