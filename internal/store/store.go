package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/tsql2/internal/dialect"
)

// Driver names accepted by Open.
const (
	DriverSQLite3  = "sqlite3"
	DriverModernc  = "sqlite"
	DriverPostgres = "pgx"
)

// Schema version tracking for SQLite files:
// 0 - Not yet opened by tsql2
// 1 - Catalog tables _TEMPORAL_SPEC, _SURROGATE, _TEMPORAL_KEY
// 2 - _TEMPORAL_SPEC.table_key holds the folded table name
const currentSchemaVersion = 2

// Store is an open database together with the dialect its statements use.
type Store struct {
	db      *sql.DB
	driver  string
	dialect dialect.Config
}

// Option configures Open.
type Option func(*Store)

// WithDialect overrides the dialect implied by the driver.
func WithDialect(d dialect.Config) Option {
	return func(s *Store) { s.dialect = d }
}

// DialectFor returns the dialect a driver implies.
func DialectFor(driver string) (dialect.Config, error) {
	switch driver {
	case DriverSQLite3, DriverModernc:
		return dialect.SQLite(), nil
	case DriverPostgres:
		return dialect.Postgres(), nil
	}
	return dialect.Config{}, fmt.Errorf("unknown driver %q (want %s, %s or %s)",
		driver, DriverSQLite3, DriverModernc, DriverPostgres)
}

// Open connects to dsn through driver and verifies the connection.
//
// For the SQLite drivers dsn is a file path (or ":memory:"); the pool is
// limited to one connection, pragmas are applied and the schema version is
// checked. For pgx dsn is a PostgreSQL connection string.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	s := &Store{driver: driver, dialect: d}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.dialect.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	if !s.IsSQLite() {
		return s, nil
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := checkVersion(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the dialect statements must be generated in.
func (s *Store) Dialect() dialect.Config {
	return s.dialect
}

// IsSQLite reports whether the store uses one of the SQLite drivers.
func (s *Store) IsSQLite() bool {
	return s.driver == DriverSQLite3 || s.driver == DriverModernc
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// checkVersion stamps a fresh file with the current schema version and
// refuses files written by any other release.
func checkVersion(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}
	if version != 0 {
		return fmt.Errorf("database schema version %d has no _TEMPORAL_SPEC.table_key; recreate the database", version)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, expected) {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
