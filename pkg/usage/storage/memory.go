package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/usage"
)

// MemoryBackend keeps usage events in a map. It is meant for tests and
// single-process deployments that only want durable-store semantics.
type MemoryBackend struct {
	mu     sync.RWMutex
	events map[string]usage.Event
	seq    map[string]uint64
	next   uint64
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		events: make(map[string]usage.Event),
		seq:    make(map[string]uint64),
	}
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, ev usage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return newError("memory", "save", ErrClosed)
	}
	if cur, ok := m.events[ev.RequestID]; ok {
		if cur.Completed && !ev.Completed {
			return nil
		}
		cur.Apply(usage.Result{Success: ev.Success, ResponseTime: ev.ResponseTime, Cost: ev.Cost})
		cur.Completed = ev.Completed
		m.events[ev.RequestID] = cur
		return nil
	}
	m.events[ev.RequestID] = ev
	m.seq[ev.RequestID] = m.next
	m.next++
	return nil
}

// List implements Backend.
func (m *MemoryBackend) List(ctx context.Context, f Filter) ([]usage.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, newError("memory", "list", ErrClosed)
	}

	out := make([]usage.Event, 0)
	for _, ev := range m.events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return m.seq[out[i].RequestID] < m.seq[out[j].RequestID]
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Prune implements Backend.
func (m *MemoryBackend) Prune(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, newError("memory", "prune", ErrClosed)
	}

	var deleted int64
	for id, ev := range m.events {
		if ev.Timestamp.Before(before) {
			delete(m.events, id)
			delete(m.seq, id)
			deleted++
		}
	}
	return deleted, nil
}

// Count implements Backend.
func (m *MemoryBackend) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, newError("memory", "count", ErrClosed)
	}
	return int64(len(m.events)), nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
