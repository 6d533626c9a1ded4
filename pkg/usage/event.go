// Package usage defines the usage event recorded for every provider
// selection, and the bounded in-memory log the routing engine keeps of them.
package usage

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of events kept by a Ring.
const DefaultCapacity = 1000

// Event records one selection and, once reported, its outcome. Cost holds
// the estimated cost until the outcome replaces it with the actual one.
type Event struct {
	RequestID    string    `json:"requestId"`
	ProviderID   string    `json:"providerId"`
	ContentType  string    `json:"contentType"`
	Tokens       int       `json:"tokens"`
	Cost         float64   `json:"cost"`
	Success      bool      `json:"success"`
	Completed    bool      `json:"completed"`
	ResponseTime float64   `json:"responseTime,omitempty"` // milliseconds
	Strategy     string    `json:"strategy,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is a reported outcome applied to an Event.
type Result struct {
	Success      bool
	ResponseTime float64
	Cost         float64
}

// Apply patches the event with the outcome.
func (e *Event) Apply(r Result) {
	e.Cost = r.Cost
	e.Success = r.Success
	e.ResponseTime = r.ResponseTime
	e.Completed = true
}

// Ring is a fixed-capacity, oldest-first-evicting log of events indexed by
// request ID. It is safe for concurrent use.
type Ring struct {
	mu    sync.RWMutex
	buf   []Event
	head  int // index of the oldest event
	size  int
	index map[string]int // request ID -> slot
}

// NewRing creates a ring holding at most capacity events. A non-positive
// capacity means DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		buf:   make([]Event, capacity),
		index: make(map[string]int, capacity),
	}
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of events held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Append adds an event, evicting the oldest when the ring is full.
func (r *Ring) Append(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slot int
	if r.size < len(r.buf) {
		slot = (r.head + r.size) % len(r.buf)
		r.size++
	} else {
		slot = r.head
		evicted := r.buf[slot].RequestID
		if i, ok := r.index[evicted]; ok && i == slot {
			delete(r.index, evicted)
		}
		r.head = (r.head + 1) % len(r.buf)
	}

	r.buf[slot] = ev
	if ev.RequestID != "" {
		r.index[ev.RequestID] = slot
	}
}

// Get returns the event with the given request ID.
func (r *Ring) Get(requestID string) (Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.index[requestID]
	if !ok {
		return Event{}, false
	}
	return r.buf[slot], true
}

// Complete applies res to the event with the given request ID. The updated
// event is returned.
func (r *Ring) Complete(requestID string, res Result) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.index[requestID]
	if !ok {
		return Event{}, false
	}
	r.buf[slot].Apply(res)
	return r.buf[slot], true
}

// CompleteLatest applies res to the most recent event of the provider.
func (r *Ring) CompleteLatest(providerID string, res Result) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := r.size - 1; i >= 0; i-- {
		slot := (r.head + i) % len(r.buf)
		if r.buf[slot].ProviderID == providerID {
			r.buf[slot].Apply(res)
			return r.buf[slot], true
		}
	}
	return Event{}, false
}

// Snapshot returns the events oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
