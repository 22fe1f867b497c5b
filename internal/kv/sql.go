package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax for SQLStore queries.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Rebind rewrites '?' placeholders into the dialect's syntax.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
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

var _ Store = (*SQLStore)(nil)

// SQLStore keeps collections in the kv_collections table created by the
// bundled migrations. The same queries run on Postgres and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// OpenPostgres opens a pgx-backed database with pool defaults.
func OpenPostgres(dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("kv: postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("kv: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewSQLStore(db, Postgres), nil
}

// OpenSQLite opens (or creates) a SQLite file.
func OpenSQLite(path string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kv: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY on concurrent collection rewrites.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kv: ping sqlite: %w", err)
	}
	return NewSQLStore(db, SQLite), nil
}

// DB exposes the handle for migrations and readiness probes.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect reports the placeholder dialect of the store.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.dialect.Rebind(`select value from kv_collections where name = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		insert into kv_collections(name, value, updated_at) values (?, ?, ?)
		on conflict (name) do update set value = excluded.value, updated_at = excluded.updated_at
	`), key, string(value), s.now().UTC())
	return err
}

func (s *SQLStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`delete from kv_collections where name = ?`), key)
	return err
}
