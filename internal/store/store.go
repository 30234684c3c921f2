package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/config"
	"github.com/roach88/deskquery/internal/metrics"
	"github.com/roach88/deskquery/internal/querysql"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Schema version tracking:
// 0 - no schema
// 1 - documents and positional postings
// 2 - postings carry every analyzer form of a word
const currentSchemaVersion = 2

// Store indexes documents and answers backend queries.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records store operation counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Open connects to the database named by cfg, applies pragmas and runs
// migrations.
//
// Drivers:
//   - "sqlite": pure Go SQLite (modernc.org/sqlite)
//   - "sqlite3": cgo SQLite (github.com/mattn/go-sqlite3)
//   - "pgx": PostgreSQL; DSN is a pgx connection string
//
// SQLite databases are configured with WAL mode, NORMAL synchronous mode, a
// 5-second busy timeout and foreign key enforcement.
//
// Open is idempotent - safe to call multiple times on one database.
func Open(ctx context.Context, cfg config.StoreConfig, opts ...Option) (*Store, error) {
	dialect, err := querysql.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch cfg.Driver {
	case "pgx":
		pcfg, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		db = stdlib.OpenDB(*pcfg)
	default:
		db, err = sql.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if dialect == querysql.SQLite {
		// SQLite only supports one writer at a time.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s.logger.Debug("store opened", "driver", cfg.Driver, "dialect", dialect.String())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the connected database.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// q rewrites placeholders for the store's dialect.
func (s *Store) q(query string) string {
	return querysql.Rebind(s.dialect, query)
}

// applyPragmas sets required SQLite configuration.
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

// applySchema creates tables if they don't exist, migrates older schemas and
// records the schema version. This function is idempotent.
func (s *Store) applySchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == querysql.Postgres {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version == 1 {
		if err := s.migrateFormColumns(ctx); err != nil {
			return err
		}
	}
	if err := s.createFormIndexes(ctx); err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}
	return s.setSchemaVersion(ctx, currentSchemaVersion)
}

// migrateFormColumns adds the per-form term columns to a version 1 postings
// table. Existing words are copied into every form; documents must be
// indexed again for case or diacritic sensitive matching.
func (s *Store) migrateFormColumns(ctx context.Context) error {
	for f := backend.Cased; f < backend.NumForms; f++ {
		col := querysql.TermColumn(f)
		stmts := []string{
			fmt.Sprintf("ALTER TABLE postings ADD COLUMN %s TEXT NOT NULL DEFAULT ''", col),
			fmt.Sprintf("UPDATE postings SET %s = term", col),
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate postings: %w", err)
			}
		}
	}
	s.logger.Warn("postings migrated to schema version 2; reindex documents for case and diacritic sensitive matching")
	return nil
}

// createFormIndexes indexes every per-form term column the way the primary
// term column is indexed.
func (s *Store) createFormIndexes(ctx context.Context) error {
	for f := backend.Cased; f < backend.NumForms; f++ {
		col := querysql.TermColumn(f)
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_postings_%s ON postings(field, %s, doc_id)", col, col)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", col, err)
		}
	}
	return nil
}

// schemaVersion reads the recorded schema version: PRAGMA user_version on
// SQLite, the schema_version table on PostgreSQL.
func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var version int
	query := "PRAGMA user_version"
	if s.dialect == querysql.Postgres {
		query = "SELECT COALESCE(MAX(version), 0) FROM schema_version"
	}
	if err := s.db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	var err error
	if s.dialect == querysql.Postgres {
		_, err = s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES ($1)", version)
	} else {
		_, err = s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	}
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
