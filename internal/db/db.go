// Package db opens the SQLite database that backs short-lived server-side
// state and applies the embedded schema migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/moviescript/moviescript-web/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the single sqlite connection pool.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS _migrations (
    name TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
)`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// New opens (creating if needed) the database at dbPath, brings the schema
// up to date and drops results that expired while the server was down.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn, logger: logger}
	if err := db.init(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) init(ctx context.Context) error {
	for _, pragma := range pragmas {
		if _, err := d.conn.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	if err := d.migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	n, err := d.purgeExpiredResults(ctx)
	switch {
	case err != nil:
		d.logger.Warn("failed to purge expired results", "error", err)
	case n > 0:
		d.logger.Info("purged expired results", "count", n)
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// migrate applies, in name order, every embedded migration not yet recorded.
// Each migration and its record commit together.
func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, file := range names {
		name := path.Base(file)
		if applied[name] {
			continue
		}
		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := d.apply(ctx, name, string(content)); err != nil {
			return err
		}
		d.logger.Info("applied migration", "name", name)
	}
	return nil
}

func (d *DB) apply(ctx context.Context, name, script string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return tx.Commit()
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT name FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Results left behind by a previous run are never readable, so drop them on open.
func (d *DB) purgeExpiredResults(ctx context.Context) (int64, error) {
	res, err := d.conn.ExecContext(ctx,
		`DELETE FROM pending_results WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
