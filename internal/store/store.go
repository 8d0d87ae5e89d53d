package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema.sqlite.sql
var sqliteSchema string

//go:embed schema.postgres.sql
var postgresSchema string

// DefaultDSN is the database used when none is configured.
const DefaultDSN = "poller.db"

// ErrNotFound is returned by natural-key lookups that match no row.
var ErrNotFound = errors.New("not found")

// Dialect identifies the SQL flavour behind a Store.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Store is the entity store for routes, trips and waypoints.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to dsn, applies the schema and returns a ready Store.
//
// postgres:// and postgresql:// DSNs use the pgx driver. Anything else is
// treated as a SQLite path (optionally prefixed with sqlite:// or file:),
// with ":memory:" selecting a private in-memory database.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	driver, source, dialect, memory := resolveDSN(dsn)

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	switch {
	case memory:
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	case dialect == Postgres:
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to %s database: %w", dialect, err)
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("entity store ready", "dialect", dialect.String(), "memory", memory)
	return s, nil
}

func resolveDSN(dsn string) (driver, source string, dialect Dialect, memory bool) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "pgx", dsn, Postgres, false
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	path = strings.TrimPrefix(path, "file:")
	if path == "" {
		path = DefaultDSN
	}
	if path == ":memory:" {
		return "sqlite", "file::memory:?_pragma=foreign_keys(1)", SQLite, true
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "sqlite", "file:" + path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", SQLite, false
}

func (s *Store) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == Postgres {
		schema = postgresSchema
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting migration: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	for _, stmt := range strings.Split(schema, "-- migrate") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema statement %q: %w", firstLine(stmt), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing migration: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Dialect reports which SQL flavour the store is using.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into the dialect's form.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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
