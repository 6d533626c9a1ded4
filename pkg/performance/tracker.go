// Package performance keeps rolling per-provider performance metrics fed by
// reported request outcomes.
package performance

import (
	"math"
	"sync"
	"time"
)

// Alpha is the smoothing factor of every exponential moving average kept by
// the tracker.
const Alpha = 0.1

// Record is the performance history of one provider.
type Record struct {
	ProviderID          string    `json:"providerId"`
	TotalRequests       int       `json:"totalRequests"`
	SuccessfulRequests  int       `json:"successfulRequests"`
	FailedRequests      int       `json:"failedRequests"`
	AverageResponseTime float64   `json:"averageResponseTime"` // milliseconds
	AverageCost         float64   `json:"averageCost"`
	Uptime              float64   `json:"uptime"`           // percent
	PerformanceScore    float64   `json:"performanceScore"` // 0..100
	LastUpdated         time.Time `json:"lastUpdated"`
}

// Tracker records outcomes and maintains one Record per provider.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewTracker creates a tracker with a fresh record for each provider ID.
// A nil clock means time.Now.
func NewTracker(providerIDs []string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		records: make(map[string]*Record, len(providerIDs)),
		now:     now,
	}
	for _, id := range providerIDs {
		t.records[id] = newRecord(id, now())
	}
	return t
}

func newRecord(id string, at time.Time) *Record {
	return &Record{
		ProviderID:       id,
		Uptime:           100,
		PerformanceScore: 100,
		LastUpdated:      at,
	}
}

// RecordOutcome folds one request outcome into the provider's record.
// It reports false for unknown providers.
func (t *Tracker) RecordOutcome(id string, success bool, responseTimeMs, cost float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[id]
	if !ok {
		return false
	}

	first := r.TotalRequests == 0
	r.TotalRequests++
	if success {
		r.SuccessfulRequests++
	} else {
		r.FailedRequests++
	}

	if first {
		r.AverageResponseTime = responseTimeMs
		r.AverageCost = cost
	} else {
		r.AverageResponseTime = ema(r.AverageResponseTime, responseTimeMs)
		r.AverageCost = ema(r.AverageCost, cost)
	}

	r.Uptime = float64(r.SuccessfulRequests) / float64(r.TotalRequests) * 100

	factor := 1.0
	if !success {
		factor = 0.8
	}
	score := math.Round((100 - r.AverageResponseTime/10) * (r.Uptime / 100) * factor)
	r.PerformanceScore = clamp(score, 0, 100)
	r.LastUpdated = t.now()

	return true
}

// Get returns a copy of the provider's record.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// GetAll returns a copy of every record keyed by provider ID.
func (t *Tracker) GetAll() map[string]Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Record, len(t.records))
	for id, r := range t.records {
		out[id] = *r
	}
	return out
}

// Track starts tracking a provider added after construction. Existing
// records are left untouched.
func (t *Tracker) Track(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[id]; !ok {
		t.records[id] = newRecord(id, t.now())
	}
}

func ema(prev, sample float64) float64 {
	return Alpha*sample + (1-Alpha)*prev
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
