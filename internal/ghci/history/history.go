// Package history persists a durable record of every completed
// compilation (initial startup, including after a restart, or a reload
// epoch with its adds) to a local SQLite database, for "ghcisup history"
// queries after the fact.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is a handle to the compilation-history database. It implements
// ghci.HistorySink.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dsn and
// applies any pending migrations.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set WAL mode: %w", err)
	}
	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	if _, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := d.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		tx, err := d.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// RecordCompilation inserts one row into the compilation history.
// An insert error is discarded, neither returned nor logged, matching
// the fire-and-forget nature of history collection.
func (d *DB) RecordCompilation(kind string, ok bool, modules int, diagnostics int) {
	_, _ = d.db.Exec(
		`INSERT INTO compilations (kind, ok, modules, diagnostics) VALUES (?, ?, ?, ?)`,
		kind, ok, modules, diagnostics,
	)
}

// Entry is one recorded compilation, as returned by Last.
type Entry struct {
	OccurredAt  time.Time
	Kind        string
	Ok          bool
	Modules     int
	Diagnostics int
}

// Last returns the n most recent compilation-history entries, most
// recent first.
func (d *DB) Last(n int) ([]Entry, error) {
	rows, err := d.db.Query(
		`SELECT occurred_at, kind, ok, modules, diagnostics FROM compilations
		 ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query last %d: %w", n, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.OccurredAt, &e.Kind, &e.Ok, &e.Modules, &e.Diagnostics); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
