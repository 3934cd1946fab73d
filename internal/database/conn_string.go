package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/rickgao/polymarket-data/internal/config"
)

// PostgresDSN builds a pgx connection URL. Credentials are escaped by net/url.
func PostgresDSN(cfg config.DBConfig) string {
	return postgresURL(cfg).String()
}

func postgresURL(cfg config.DBConfig) *url.URL {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
}

// SQLiteDSN adds the busy timeout, foreign keys and, for file databases, WAL
// journaling. A path that already carries parameters is used as is.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	dsn := path + "?_busy_timeout=5000&_foreign_keys=on"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	return dsn
}

// DescribeDSN returns a loggable target for the configured driver, with any
// password redacted.
func DescribeDSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgresURL(cfg.Postgres).Redacted(), nil
	case config.DriverSQLite:
		return "sqlite:" + SQLiteDSN(cfg.SQLitePath), nil
	case config.DriverMemory:
		return "memory", nil
	default:
		return "", fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
