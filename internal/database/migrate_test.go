package database

import (
	"context"
	"strings"
	"testing"
)

func TestMigrations(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		t.Run(string(d), func(t *testing.T) {
			migs, err := Migrations(d)
			if err != nil {
				t.Fatalf("Migrations(%s) error: %v", d, err)
			}
			if len(migs) == 0 {
				t.Fatal("no migrations embedded")
			}
			if migs[0].Filename != "0001_init.sql" {
				t.Errorf("first migration = %q, want 0001_init.sql", migs[0].Filename)
			}
			for _, m := range migs {
				if len(m.Checksum) != 64 {
					t.Errorf("%s checksum length = %d, want 64", m.Filename, len(m.Checksum))
				}
				if !strings.Contains(m.SQL, "price_history") && m.Filename == "0001_init.sql" {
					t.Errorf("%s does not create price_history", m.Filename)
				}
			}
		})
	}

	if _, err := Migrations("mysql"); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestSQLiteMigrator(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	m := NewSQLiteMigrator(db, nil)

	n, err := m.ApplyAll(ctx)
	if err != nil {
		t.Fatalf("ApplyAll: %v", err)
	}
	want, _ := Migrations(DialectSQLite)
	if n != len(want) {
		t.Errorf("applied = %d, want %d", n, len(want))
	}

	// Second run is a no-op.
	n, err = m.ApplyAll(ctx)
	if err != nil {
		t.Fatalf("second ApplyAll: %v", err)
	}
	if n != 0 {
		t.Errorf("second run applied = %d, want 0", n)
	}

	for _, table := range []string{"markets", "price_history"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// A changed checksum is refused.
	if _, err := db.ExecContext(ctx, "UPDATE schema_migrations SET checksum = 'bogus'"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := m.ApplyAll(ctx); err == nil || !strings.Contains(err.Error(), "has been modified") {
		t.Errorf("expected checksum error, got %v", err)
	}
}
