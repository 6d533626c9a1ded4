package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"mercator-hq/conduit/pkg/usage"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteBackend implements Backend on SQLite through the pure Go
// modernc.org/sqlite driver.
type SQLiteBackend struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger

	mu     sync.RWMutex
	stmts  map[string]*sql.Stmt
	closed bool
}

// NewSQLiteBackend opens (creating if needed) the database and its schema.
func NewSQLiteBackend(config SQLiteConfig) (*SQLiteBackend, error) {
	if config.Path == "" {
		return nil, newError("sqlite", "open", errors.New("database path is required"))
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newError("sqlite", "mkdir", err)
		}
	}

	// busy_timeout is per connection, so it goes in the DSN to reach the
	// whole pool.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteBackend{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "usage.storage.sqlite"),
		stmts:  make(map[string]*sql.Stmt),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite usage storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteBackend) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return newError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return newError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return newError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return newError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	for name, query := range map[string]string{
		"upsert": upsertEvent,
		"prune":  pruneEvents,
		"count":  countEvents,
	} {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return newError("sqlite", "prepare_"+name, err)
		}
		s.stmts[name] = stmt
	}
	return nil
}

// stmt returns a prepared statement, or ErrClosed.
func (s *SQLiteBackend) stmt(name string) (*sql.Stmt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.stmts[name], nil
}

// Save implements Backend.
func (s *SQLiteBackend) Save(ctx context.Context, ev usage.Event) error {
	stmt, err := s.stmt("upsert")
	if err != nil {
		return newError("sqlite", "save", err)
	}
	_, err = stmt.ExecContext(ctx,
		ev.RequestID, ev.ProviderID, ev.ContentType, ev.Tokens, ev.Cost,
		ev.Success, ev.Completed, ev.ResponseTime, ev.Strategy, ev.Timestamp.UnixNano(),
	)
	if err != nil {
		return newError("sqlite", "save", err)
	}
	return nil
}

// List implements Backend.
func (s *SQLiteBackend) List(ctx context.Context, f Filter) ([]usage.Event, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, newError("sqlite", "list", ErrClosed)
	}

	var (
		where []string
		args  []any
	)
	if f.ProviderID != "" {
		where = append(where, "provider_id = ?")
		args = append(args, f.ProviderID)
	}
	if f.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, f.ContentType)
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, f.Until.UnixNano())
	}

	query := selectEvents
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp ASC, rowid ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newError("sqlite", "list", err)
	}
	defer rows.Close()

	out := make([]usage.Event, 0)
	for rows.Next() {
		var (
			ev       usage.Event
			strategy sql.NullString
			ts       int64
		)
		if err := rows.Scan(
			&ev.RequestID, &ev.ProviderID, &ev.ContentType, &ev.Tokens, &ev.Cost,
			&ev.Success, &ev.Completed, &ev.ResponseTime, &strategy, &ts,
		); err != nil {
			return nil, newError("sqlite", "scan", err)
		}
		ev.Strategy = strategy.String
		ev.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("sqlite", "list", err)
	}
	return out, nil
}

// Prune implements Backend.
func (s *SQLiteBackend) Prune(ctx context.Context, before time.Time) (int64, error) {
	stmt, err := s.stmt("prune")
	if err != nil {
		return 0, newError("sqlite", "prune", err)
	}
	res, err := stmt.ExecContext(ctx, before.UnixNano())
	if err != nil {
		return 0, newError("sqlite", "prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newError("sqlite", "prune", err)
	}
	return n, nil
}

// Count implements Backend.
func (s *SQLiteBackend) Count(ctx context.Context) (int64, error) {
	stmt, err := s.stmt("count")
	if err != nil {
		return 0, newError("sqlite", "count", err)
	}
	var n int64
	if err := stmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, newError("sqlite", "count", err)
	}
	return n, nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	return s.db.Close()
}
