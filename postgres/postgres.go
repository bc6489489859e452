// Package postgres stores subscribers in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed migration/*.sql
var migrationFS embed.FS

const (
	connectTimeout = 5 * time.Second
	migrateTimeout = 30 * time.Second

	// migrationLockKey serializes migrations of replicas starting together.
	migrationLockKey = 7343521
)

// DB represents the database connection.
type DB struct {
	sqlDB *sql.DB
	dsn   string
}

// NewDB returns new database
func NewDB(dsn string) *DB {
	return &DB{
		dsn: strings.TrimSpace(dsn),
	}
}

// Open connects to the server and applies pending migrations
func (db *DB) Open() (err error) {
	if db.dsn == "" {
		return errors.New("dsn required")
	}
	if db.sqlDB != nil {
		return nil
	}

	if db.sqlDB, err = sql.Open("postgres", db.dsn); err != nil {
		return errors.Wrap(err, "open")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping")
	}

	ctx, cancel = context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := migrate(ctx, db.sqlDB); err != nil {
		return errors.Wrap(err, "migrate")
	}

	return nil
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	if _, err := sqlDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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
			log.Info().Str("migration", name).Msg("postgres migration applied")
		}
	}

	return nil
}

// apply runs one script under a transaction scoped advisory lock.
func apply(ctx context.Context, sqlDB *sql.DB, name string) (bool, error) {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return false, err
	}

	var done bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&done); err != nil {
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
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
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
		log.Error().Err(err).Msg("Error closing database")
	}
	db.sqlDB = nil

	return nil
}
