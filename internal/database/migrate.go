package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations
var migrationFS embed.FS

// Dialect selects the migration set.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Migration is one embedded SQL file.
type Migration struct {
	Filename string
	SQL      string
	Checksum string
}

// Migrations returns the embedded migrations for a dialect in apply order.
func Migrations(d Dialect) ([]Migration, error) {
	dir := path.Join("migrations", string(d))
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %s: %w", d, err)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(migrationFS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{
			Filename: entry.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// migrationTarget abstracts the driver-specific bookkeeping.
type migrationTarget interface {
	ensureTable(ctx context.Context) error
	applied(ctx context.Context) (map[string]string, error)
	apply(ctx context.Context, m Migration) error
}

// Migrator applies embedded migrations that have not been applied yet and
// refuses to run when an applied file has changed.
type Migrator struct {
	dialect Dialect
	target  migrationTarget
	logger  *slog.Logger
}

// NewPostgresMigrator creates a migrator for a pgx pool.
func NewPostgresMigrator(pool *pgxpool.Pool, logger *slog.Logger) *Migrator {
	return newMigrator(DialectPostgres, &pgTarget{pool: pool}, logger)
}

// NewSQLiteMigrator creates a migrator for a SQLite database.
func NewSQLiteMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	return newMigrator(DialectSQLite, &sqliteTarget{db: db}, logger)
}

func newMigrator(d Dialect, t migrationTarget, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{dialect: d, target: t, logger: logger}
}

// ApplyAll applies pending migrations and returns how many ran.
func (m *Migrator) ApplyAll(ctx context.Context) (int, error) {
	migrations, err := Migrations(m.dialect)
	if err != nil {
		return 0, err
	}

	if err := m.target.ensureTable(ctx); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.target.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("get applied migrations: %w", err)
	}

	var count int
	for _, mig := range migrations {
		if sum, ok := applied[mig.Filename]; ok {
			if sum != mig.Checksum {
				return count, fmt.Errorf("migration %s has been modified (expected checksum %s, got %s)",
					mig.Filename, sum, mig.Checksum)
			}
			continue
		}

		if err := m.target.apply(ctx, mig); err != nil {
			return count, fmt.Errorf("apply migration %s: %w", mig.Filename, err)
		}
		count++

		m.logger.Info("applied migration",
			"dialect", m.dialect,
			"file", mig.Filename,
			"checksum", mig.Checksum[:8],
		)
	}

	return count, nil
}

// -----------------------------------------------------------------------------
// PostgreSQL
// -----------------------------------------------------------------------------

type pgTarget struct {
	pool *pgxpool.Pool
}

func (t *pgTarget) ensureTable(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (t *pgTarget) applied(ctx context.Context) (map[string]string, error) {
	rows, err := t.pool.Query(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, err
		}
		applied[filename] = checksum
	}
	return applied, rows.Err()
}

func (t *pgTarget) apply(ctx context.Context, m Migration) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("rollback migration", "file", m.Filename, "err", err)
		}
	}()

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration sql: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
		m.Filename, m.Checksum); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit(ctx)
}

// -----------------------------------------------------------------------------
// SQLite
// -----------------------------------------------------------------------------

type sqliteTarget struct {
	db *sql.DB
}

func (t *sqliteTarget) ensureTable(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (t *sqliteTarget) applied(ctx context.Context) (map[string]string, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, err
		}
		applied[filename] = checksum
	}
	return applied, rows.Err()
}

func (t *sqliteTarget) apply(ctx context.Context, m Migration) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES (?, ?)",
		m.Filename, m.Checksum); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
