/*
Package sqldb persists lifecycle entities, budgets and the usage log in SQL.

PURPOSE:
  Implements generic.EntityStore[T] and generic.UsageLog over database/sql.
  The same schema and queries serve SQLite (mattn/go-sqlite3) and PostgreSQL
  (jackc/pgx/v5 stdlib driver); queries are written with ? placeholders and
  rebound to $N for PostgreSQL.

KEY TABLES:
  entities:           Quotes and pending orders as JSON payloads, keyed by
                      (kind, id), with the state copied into its own column
  budgets:            One row per budget, amounts as decimal strings
  usage_transactions: Append-only usage log, ordered by seq

TIMESTAMPS:
  RFC 3339 text with the original UTC offset, so calendar-local period
  checks answer the same after a round trip. updated_at comes from the
  injected generic.Clock.

UPSERTS:
  Save is INSERT ... ON CONFLICT DO UPDATE. The seq column is assigned on
  first insert only, so List returns rows in first-save order like the
  in-memory store.

USAGE:
  s, err := sqldb.OpenSQLite("./b2b.db")
  if err != nil {
      return err
  }
  defer s.Close()

  quotes := sqldb.NewEntityStore[quote.Quote](s, "quote")
  budgets := sqldb.NewBudgetStore(s)
  usage := sqldb.NewUsageLog(s)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/warp/b2b-engine/generic"
)

// Dialect selects the SQL flavour of a Store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Store is a database handle plus its dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
	opts    generic.Options
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates it.
// Use ":memory:" for an in-memory database.
func OpenSQLite(path string, opts ...generic.Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; ":memory:" is also per connection.
	db.SetMaxOpenConns(1)

	return newStore(context.Background(), db, SQLite, opts)
}

// OpenPostgres connects through the pgx stdlib driver, pings, and migrates.
func OpenPostgres(ctx context.Context, dsn string, opts ...generic.Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return newStore(ctx, db, Postgres, opts)
}

func newStore(ctx context.Context, db *sql.DB, dialect Dialect, opts []generic.Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect, opts: generic.NewOptions(opts...)}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which driver the store was opened with.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// =============================================================================
// SCHEMA
// =============================================================================

func (s *Store) migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			seq ` + serial + `,
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(kind, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_kind_state ON entities(kind, state)`,

		`CREATE TABLE IF NOT EXISTS budgets (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			used_amount TEXT NOT NULL,
			renews_type TEXT NOT NULL,
			last_renewal TEXT,
			notify BOOLEAN NOT NULL DEFAULT FALSE,
			sent BOOLEAN NOT NULL DEFAULT FALSE,
			threshold_type TEXT,
			threshold_value TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS usage_transactions (
			seq ` + serial + `,
			id TEXT NOT NULL UNIQUE,
			budget_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL,
			running_total TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_budget ON usage_transactions(budget_id, seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

const timeLayout = time.RFC3339Nano

// formatTime keeps t's UTC offset. Period identity is calendar-local, so a
// budget renewed at 00:30+02:00 on Feb 1 must not come back as Jan 31.
func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation recognizes unique/primary key failures from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
