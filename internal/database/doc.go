// Package database opens store connections and applies schema migrations.
//
// Two backends are supported:
//   - PostgreSQL (or TimescaleDB) through a pgx connection pool
//   - SQLite through database/sql and mattn/go-sqlite3
//
// Migrations are embedded SQL files, one directory per dialect, applied in
// filename order and recorded with a sha256 checksum in schema_migrations.
package database
