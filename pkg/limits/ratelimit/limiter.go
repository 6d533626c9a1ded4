package ratelimit

import (
	"math"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/registry"
)

const (
	// DefaultWindow is the length of a fixed rate limit window.
	DefaultWindow = 60 * time.Second

	// DefaultBurstRatio is the fraction of the limit reported as burst capacity.
	DefaultBurstRatio = 0.2
)

// Catalog supplies the current rate limit of each provider.
type Catalog interface {
	Get(id string) (registry.Provider, bool)
	IDs() []string
}

// Window is the fixed rate limit window of one provider.
type Window struct {
	ProviderID       string    `json:"providerId"`
	WindowStart      time.Time `json:"windowStart"`
	ResetTime        time.Time `json:"resetTime"`
	RequestsInWindow int       `json:"requestsInWindow"`
	CurrentUsage     int       `json:"currentUsage"`
	Limit            int       `json:"limit"`
	BurstCapacity    int       `json:"burstCapacity"`
}

// Remaining returns how many requests the window still admits.
func (w Window) Remaining() int {
	if r := w.Limit - w.CurrentUsage; r > 0 {
		return r
	}
	return 0
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow sets the window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithBurstRatio sets the burst capacity ratio.
func WithBurstRatio(r float64) Option {
	return func(l *Limiter) {
		if r >= 0 {
			l.burstRatio = r
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// Limiter tracks fixed request windows for every provider in a catalog.
type Limiter struct {
	catalog    Catalog
	window     time.Duration
	burstRatio float64
	now        func() time.Time

	mu      sync.Mutex
	windows map[string]*Window
}

// NewLimiter creates a limiter with a fresh window for every provider in
// the catalog.
func NewLimiter(catalog Catalog, opts ...Option) *Limiter {
	l := &Limiter{
		catalog:    catalog,
		window:     DefaultWindow,
		burstRatio: DefaultBurstRatio,
		now:        time.Now,
		windows:    make(map[string]*Window),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.ResetAll()
	return l
}

// HasCapacity reports whether the provider may take another request in its
// current window. Unknown providers have no capacity.
func (l *Limiter) HasCapacity(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windowLocked(id)
	if w == nil {
		return false
	}
	return w.CurrentUsage < w.Limit
}

// Consume records one request against the provider's window. It does not
// check capacity. It reports false for unknown providers.
func (l *Limiter) Consume(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windowLocked(id)
	if w == nil {
		return false
	}
	w.RequestsInWindow++
	w.CurrentUsage++
	return true
}

// Status returns a snapshot of the provider's window.
func (l *Limiter) Status(id string) (Window, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windowLocked(id)
	if w == nil {
		return Window{}, false
	}
	return *w, true
}

// AllStatuses returns a snapshot of every window, keyed by provider ID.
func (l *Limiter) AllStatuses() map[string]Window {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Window, len(l.windows))
	for id := range l.windows {
		if w := l.windowLocked(id); w != nil {
			out[id] = *w
		}
	}
	return out
}

// Reset starts a new window for the provider using its current configured
// limit. It reports false for unknown providers.
func (l *Limiter) Reset(id string) bool {
	p, ok := l.catalog.Get(id)
	if !ok {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows[id] = l.newWindow(id, p.RateLimit, l.now())
	return true
}

// ResetAll starts a new window for every provider in the catalog.
func (l *Limiter) ResetAll() {
	ids := l.catalog.IDs()
	limits := make(map[string]int, len(ids))
	for _, id := range ids {
		if p, ok := l.catalog.Get(id); ok {
			limits[id] = p.RateLimit
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.windows = make(map[string]*Window, len(limits))
	for id, limit := range limits {
		l.windows[id] = l.newWindow(id, limit, now)
	}
}

// windowLocked returns the provider's window after rolling it over if it
// has expired. A provider added to the catalog after construction gets a
// window on first use. Caller must hold l.mu.
func (l *Limiter) windowLocked(id string) *Window {
	now := l.now()

	w, ok := l.windows[id]
	if !ok {
		p, known := l.catalog.Get(id)
		if !known {
			return nil
		}
		w = l.newWindow(id, p.RateLimit, now)
		l.windows[id] = w
		return w
	}

	if !now.Before(w.ResetTime) {
		w.WindowStart = now
		w.ResetTime = now.Add(l.window)
		w.RequestsInWindow = 0
		w.CurrentUsage = 0
	}
	return w
}

func (l *Limiter) newWindow(id string, limit int, now time.Time) *Window {
	return &Window{
		ProviderID:    id,
		WindowStart:   now,
		ResetTime:     now.Add(l.window),
		Limit:         limit,
		BurstCapacity: int(math.Floor(float64(limit) * l.burstRatio)),
	}
}
