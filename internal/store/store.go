// Package store persists the reference taxonomy, the accession index and
// classification results in SQL. SQLite is the default backend; PostgreSQL
// is supported through pgx.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/taxassign/internal/cache"

	// PostgreSQL driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Store reads and writes taxonomy rows. It implements taxonomy.Source and is
// safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect string
	cache   cache.Backend
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCache routes taxonomy reads through b. Writes made through the Store
// invalidate the affected keys.
func WithCache(b cache.Backend) Option {
	return func(s *Store) { s.cache = b }
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.With("component", "store")
		}
	}
}

// Open connects to the database named by dsn using driver, applies SQLite
// pragmas where relevant and creates missing tables.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	d, err := dialectOf(driver)
	if err != nil {
		return nil, err
	}

	if d == dialect.SQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if d == dialect.SQLite {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	s := &Store{db: db, dialect: d, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.dialect)
}

func dialectOf(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return dialect.SQLite, nil
	case DriverPostgres:
		return dialect.Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (want %q or %q)", driver, DriverSQLite, DriverPostgres)
	}
}

// sqliteDSN turns on foreign keys for every pooled connection. Schema
// migration refuses to run against a connection without them.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. TAXASSIGN_DB environment variable
// 2. $XDG_DATA_HOME/taxassign/taxonomy.db
// 3. ~/.local/share/taxassign/taxonomy.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("TAXASSIGN_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "taxassign", "taxonomy.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
