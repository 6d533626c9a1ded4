package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/usage"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("usage storage closed")

// Backend persists usage events.
type Backend interface {
	// Save inserts the event, or replaces the outcome fields of the stored
	// event with the same request ID.
	Save(ctx context.Context, ev usage.Event) error

	// List returns the events matching the filter, oldest first.
	List(ctx context.Context, f Filter) ([]usage.Event, error)

	// Prune deletes events recorded before the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Count returns the number of stored events.
	Count(ctx context.Context) (int64, error)

	// Close releases the backend's resources.
	Close() error
}

// Filter selects usage events. Zero fields match everything.
type Filter struct {
	ProviderID  string
	ContentType string
	Since       time.Time // inclusive
	Until       time.Time // exclusive
	Limit       int
}

// Matches reports whether ev passes the filter. Limit is not considered.
func (f Filter) Matches(ev usage.Event) bool {
	if f.ProviderID != "" && ev.ProviderID != f.ProviderID {
		return false
	}
	if f.ContentType != "" && ev.ContentType != f.ContentType {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !ev.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

// Error represents a failed backend operation.
type Error struct {
	Backend   string // "memory" or "sqlite"
	Operation string // "save", "list", "prune", ...
	Cause     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("usage storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(backend, operation string, cause error) *Error {
	return &Error{Backend: backend, Operation: operation, Cause: cause}
}

// Open creates the backend selected by the usage configuration. It returns
// a nil Backend when durable storage is disabled.
func Open(cfg config.UsageConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		return NewSQLiteBackend(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
			WALMode:     true,
		})
	default:
		return nil, fmt.Errorf("unknown usage backend %q", cfg.Backend)
	}
}
