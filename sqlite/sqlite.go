// Package sqlite stores subscribers in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed migration/*.sql
var migrationFS embed.FS

const migrateTimeout = 30 * time.Second

// DB represents the database connection.
type DB struct {
	sqlDB *sql.DB
	path  string
}

// NewDB returns new database
func NewDB(path string) *DB {
	return &DB{
		path: path,
	}
}

// Open opens the database file and applies pending migrations
func (db *DB) Open() (err error) {
	if db.path == "" {
		return errors.New("path required")
	}
	if db.sqlDB != nil {
		return nil
	}

	if db.sqlDB, err = sql.Open("sqlite3", dsn(db.path)); err != nil {
		return errors.Wrap(err, "open")
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := migrate(ctx, db.sqlDB); err != nil {
		return errors.Wrap(err, "migrate")
	}

	return nil
}

// dsn makes every transaction take the write lock up front so that a
// membership replace never interleaves with another writer.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000"
}

// migrate applies the embedded scripts in name order, each in its own
// transaction, skipping those recorded in schema_migrations.
func migrate(ctx context.Context, sqlDB *sql.DB) error {
	if _, err := sqlDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return errors.Wrap(err, "cannot create schema_migrations table")
	}

	names, err := fs.Glob(migrationFS, "migration/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		applied, err := apply(ctx, sqlDB, name)
		if err != nil {
			return errors.Wrapf(err, "migration %s", name)
		}
		if applied {
			log.Info().Str("migration", name).Msg("sqlite migration applied")
		}
	}

	return nil
}

func apply(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	var done bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = ?)`, name).Scan(&done); err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	script, err := fs.ReadFile(migrationFS, name)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, name); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// Close closes database connection
func (db *DB) Close() error {
	if db.sqlDB == nil {
		return nil
	}

	if err := db.sqlDB.Close(); err != nil {
		log.Error().Err(err).Str("path", db.path).Msg("Error closing database")
	}
	db.sqlDB = nil

	return nil
}
