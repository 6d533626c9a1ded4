package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// RoutingStats is a point-in-time snapshot of engine counters.
type RoutingStats struct {
	TotalSelections      int64            `json:"totalSelections"`
	SelectionsByProvider map[string]int64 `json:"selectionsByProvider"`
	SelectionsByStrategy map[string]int64 `json:"selectionsByStrategy"`
	SelectionsByReason   map[string]int64 `json:"selectionsByReason"`
	NoProviderFailures   int64            `json:"noProviderFailures"`
	OutcomesReported     int64            `json:"outcomesReported"`
	OutcomesUnmatched    int64            `json:"outcomesUnmatched"`
	LastResetTime        time.Time        `json:"lastResetTime"`
}

// AtomicRoutingStats implements thread-safe routing statistics using atomic operations.
type AtomicRoutingStats struct {
	totalSelections atomic.Int64

	// per-key counters, map[string]*atomic.Int64
	byProvider sync.Map
	byStrategy sync.Map
	byReason   sync.Map

	noProvider atomic.Int64
	outcomes   atomic.Int64
	unmatched  atomic.Int64

	mu            sync.RWMutex
	lastResetTime time.Time
}

// NewAtomicRoutingStats creates a new atomic routing statistics tracker.
func NewAtomicRoutingStats() *AtomicRoutingStats {
	return &AtomicRoutingStats{
		lastResetTime: time.Now(),
	}
}

// RecordSelection counts a successful selection.
func (s *AtomicRoutingStats) RecordSelection(providerID string, strategy Strategy, reason string) {
	s.totalSelections.Add(1)
	increment(&s.byProvider, providerID)
	increment(&s.byStrategy, string(strategy))
	increment(&s.byReason, reason)
}

// IncrementNoProvider counts a selection that found no candidate.
func (s *AtomicRoutingStats) IncrementNoProvider() {
	s.noProvider.Add(1)
}

// RecordOutcome counts a reported outcome. matched tells whether it could
// be attached to a usage event.
func (s *AtomicRoutingStats) RecordOutcome(matched bool) {
	s.outcomes.Add(1)
	if !matched {
		s.unmatched.Add(1)
	}
}

func increment(m *sync.Map, key string) {
	val, _ := m.LoadOrStore(key, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func collect(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}

func clearMap(m *sync.Map) {
	m.Range(func(key, _ any) bool {
		m.Delete(key)
		return true
	})
}

// Snapshot returns a point-in-time snapshot of the statistics.
func (s *AtomicRoutingStats) Snapshot() RoutingStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return RoutingStats{
		TotalSelections:      s.totalSelections.Load(),
		SelectionsByProvider: collect(&s.byProvider),
		SelectionsByStrategy: collect(&s.byStrategy),
		SelectionsByReason:   collect(&s.byReason),
		NoProviderFailures:   s.noProvider.Load(),
		OutcomesReported:     s.outcomes.Load(),
		OutcomesUnmatched:    s.unmatched.Load(),
		LastResetTime:        s.lastResetTime,
	}
}

// Reset resets all statistics to zero.
func (s *AtomicRoutingStats) Reset() {
	s.totalSelections.Store(0)
	s.noProvider.Store(0)
	s.outcomes.Store(0)
	s.unmatched.Store(0)

	clearMap(&s.byProvider)
	clearMap(&s.byStrategy)
	clearMap(&s.byReason)

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
