// Package sqlitedb is the SQLite store used for local runs and tests.
// It mirrors the PostgreSQL store method for method.
package sqlitedb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store wraps a SQLite database handle.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path, creating the file if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One writer at a time; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenMemory opens and migrates a fresh in-memory store.
func OpenMemory(ctx context.Context) (*Store, error) {
	s, err := Open(ctx, MemoryPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// Migrate applies the embedded schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// likePattern wraps a term for LIKE ... ESCAPE '\'. SQLite LIKE is case-insensitive for ASCII.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
