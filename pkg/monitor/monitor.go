package monitor

import (
	"log/slog"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/registry"
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithFailureThreshold sets the consecutive failures that open a circuit.
func WithFailureThreshold(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithHalfOpenAfter enables automatic half-open trials for circuits that
// have been open for at least d. Zero disables them.
func WithHalfOpenAfter(d time.Duration) Option {
	return func(m *Monitor) {
		if d >= 0 {
			m.halfOpenAfter = d
		}
	}
}

// WithProber sets the liveness prober used by the probe loop.
func WithProber(p Prober) Option {
	return func(m *Monitor) {
		if p != nil {
			m.prober = p
		}
	}
}

// WithProbeTimeout bounds each individual probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

type entry struct {
	health   HealthRecord
	breaker  CircuitBreaker
	observed bool // a response time sample has been recorded
	trial    bool // the half-open trial request has been handed out
	trialAt  time.Time
}

// Monitor tracks provider health and circuit breakers.
type Monitor struct {
	reg           *registry.Registry
	threshold     int
	halfOpenAfter time.Duration
	prober        Prober
	probeTimeout  time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	probeMu  sync.Mutex
	probeRun *probeLoop

	events eventHub
}

// New creates a monitor with a healthy, closed record for every provider in
// the registry.
func New(reg *registry.Registry, opts ...Option) *Monitor {
	m := &Monitor{
		reg:          reg,
		threshold:    DefaultFailureThreshold,
		prober:       NoopProber{},
		probeTimeout: 5 * time.Second,
		now:          time.Now,
		logger:       slog.Default(),
		entries:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "monitor")
	m.events.subs = make(map[uint64]chan Event)

	now := m.now()
	for _, id := range reg.IDs() {
		m.entries[id] = newEntry(id, now)
	}
	return m
}

func newEntry(id string, now time.Time) *entry {
	return &entry{
		health: HealthRecord{
			ProviderID:   id,
			Status:       StatusHealthy,
			SuccessRate:  100,
			CircuitState: CircuitClosed,
			LastChecked:  now,
		},
		breaker: CircuitBreaker{
			ProviderID: id,
			State:      CircuitClosed,
		},
	}
}

// entryLocked returns the provider's entry, creating one for providers that
// joined the registry after construction. Caller must hold m.mu for writing.
func (m *Monitor) entryLocked(id string) *entry {
	if e, ok := m.entries[id]; ok {
		return e
	}
	if !m.reg.Has(id) {
		return nil
	}
	e := newEntry(id, m.now())
	m.entries[id] = e
	return e
}

// RecordOutcome folds a real request outcome into the provider's health and
// circuit breaker. It reports false for unknown providers.
func (m *Monitor) RecordOutcome(id string, success bool, responseTimeMs float64) bool {
	m.mu.Lock()
	e := m.entryLocked(id)
	if e == nil {
		m.mu.Unlock()
		return false
	}

	now := m.now()
	h := &e.health
	b := &e.breaker

	if !e.observed {
		h.ResponseTime = responseTimeMs
		e.observed = true
	} else {
		h.ResponseTime = ema(h.ResponseTime, responseTimeMs)
	}

	sample := 0.0
	if success {
		sample = 100
	}
	h.SuccessRate = ema(h.SuccessRate, sample)
	h.ErrorRate = ema(h.ErrorRate, 100-sample)

	prev := b.State
	if success {
		h.ConsecutiveFailures = 0
		b.FailureCount = 0
	} else {
		h.ConsecutiveFailures++
		b.FailureCount++
		b.LastFailure = timePtr(now)
	}

	switch b.State {
	case CircuitHalfOpen:
		e.trial = false
		if success {
			b.State = CircuitClosed
			b.OpenedAt = nil
		} else {
			b.State = CircuitOpen
			b.OpenedAt = timePtr(now)
		}
	case CircuitClosed:
		if b.FailureCount >= m.threshold {
			b.State = CircuitOpen
			b.OpenedAt = timePtr(now)
		}
	}

	h.CircuitState = b.State
	h.Status = m.statusLocked(e)
	h.LastChecked = now

	// Publishing under m.mu keeps events for one provider in state order.
	ev := m.healthEventLocked(e, now)
	m.events.publish(ev)
	m.mu.Unlock()

	m.logTransition(id, prev, ev.Breaker.State, ev.Breaker.FailureCount)
	return true
}

// statusLocked derives the health status from the breaker and the rates.
func (m *Monitor) statusLocked(e *entry) Status {
	switch e.breaker.State {
	case CircuitOpen:
		return StatusDown
	case CircuitHalfOpen:
		return StatusDegraded
	}
	if e.health.ConsecutiveFailures > 0 || e.health.SuccessRate < degradedSuccessRate {
		return StatusDegraded
	}
	return StatusHealthy
}

func (m *Monitor) logTransition(id string, from, to CircuitState, failures int) {
	if from == to {
		return
	}
	switch to {
	case CircuitOpen:
		m.logger.Warn("circuit breaker opened", "provider_id", id, "failures", failures, "from", from)
	case CircuitClosed:
		m.logger.Info("circuit breaker closed", "provider_id", id, "from", from)
	case CircuitHalfOpen:
		m.logger.Info("circuit breaker half-open", "provider_id", id)
	}
}

// ResetCircuitBreaker closes the provider's circuit and marks it healthy.
// Unknown providers are ignored and report false.
func (m *Monitor) ResetCircuitBreaker(id string) bool {
	m.mu.Lock()
	e := m.entryLocked(id)
	if e == nil {
		m.mu.Unlock()
		return false
	}

	now := m.now()
	prev := e.breaker.State
	e.breaker.State = CircuitClosed
	e.breaker.FailureCount = 0
	e.breaker.OpenedAt = nil
	e.trial = false
	e.health.CircuitState = CircuitClosed
	e.health.ConsecutiveFailures = 0
	e.health.Status = StatusHealthy
	e.health.LastChecked = now

	m.events.publish(m.healthEventLocked(e, now))
	m.mu.Unlock()

	m.logger.Info("circuit breaker reset", "provider_id", id, "from", prev)
	return true
}

// IsAvailable reports whether the provider's circuit admits traffic. An
// open circuit past its half-open delay moves to half-open and admits one
// trial request, claimed with MarkSelected. A trial whose outcome is not
// reported within the half-open delay is released for another request.
func (m *Monitor) IsAvailable(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entryLocked(id)
	if e == nil {
		return false
	}
	return m.availableLocked(e)
}

func (m *Monitor) availableLocked(e *entry) bool {
	now := m.now()
	switch e.breaker.State {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if !e.trial {
			return true
		}
		if now.Sub(e.trialAt) < m.halfOpenAfter {
			return false
		}
		e.trial = false
		m.logger.Warn("half-open trial expired without an outcome",
			"provider_id", e.breaker.ProviderID,
			"claimed_at", e.trialAt,
		)
		return true
	}

	if m.halfOpenAfter <= 0 || e.breaker.OpenedAt == nil {
		return false
	}
	if now.Sub(*e.breaker.OpenedAt) < m.halfOpenAfter {
		return false
	}

	e.breaker.State = CircuitHalfOpen
	e.health.CircuitState = CircuitHalfOpen
	e.health.Status = StatusDegraded
	e.health.LastChecked = now
	m.logger.Info("circuit breaker half-open", "provider_id", e.breaker.ProviderID)
	m.events.publish(m.healthEventLocked(e, now))
	return true
}

// MarkSelected tells the monitor that traffic was routed to the provider.
// For a half-open circuit this consumes the single trial slot.
func (m *Monitor) MarkSelected(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[id]; ok && e.breaker.State == CircuitHalfOpen {
		e.trial = true
		e.trialAt = m.now()
	}
}

// AvailableProviders returns the IDs of providers whose circuit admits
// traffic, in registry order.
func (m *Monitor) AvailableProviders() []string {
	ids := m.reg.IDs()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if e := m.entryLocked(id); e != nil && m.availableLocked(e) {
			out = append(out, id)
		}
	}
	return out
}

// UpdateConfig merges patch into the provider's registry record and
// notifies subscribers. Unknown providers are ignored and report false.
func (m *Monitor) UpdateConfig(id string, patch registry.Patch) (registry.Provider, bool) {
	p, ok := m.reg.Update(id, patch)
	if !ok {
		return registry.Provider{}, false
	}

	m.mu.Lock()
	m.entryLocked(id)
	m.mu.Unlock()

	m.logger.Info("provider config updated", "provider_id", id, "active", p.IsActive, "priority", p.Priority)

	cp := p
	m.events.publish(Event{
		Type:       EventConfigUpdate,
		ProviderID: id,
		Provider:   &cp,
		Timestamp:  m.now(),
	})
	return p, true
}

// GetHealth returns the provider's health record.
func (m *Monitor) GetHealth(id string) (HealthRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return HealthRecord{}, false
	}
	return e.health, true
}

// AllHealth returns every health record keyed by provider ID.
func (m *Monitor) AllHealth() map[string]HealthRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]HealthRecord, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.health
	}
	return out
}

// GetCircuitBreaker returns the provider's breaker state.
func (m *Monitor) GetCircuitBreaker(id string) (CircuitBreaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return CircuitBreaker{}, false
	}
	return copyBreaker(e.breaker), true
}

// GetConfig returns the provider's current registry record.
func (m *Monitor) GetConfig(id string) (registry.Provider, bool) {
	return m.reg.Get(id)
}

func (m *Monitor) healthEventLocked(e *entry, now time.Time) Event {
	h := e.health
	b := copyBreaker(e.breaker)
	return Event{
		Type:       EventHealthUpdate,
		ProviderID: h.ProviderID,
		Health:     &h,
		Breaker:    &b,
		Timestamp:  now,
	}
}

func copyBreaker(b CircuitBreaker) CircuitBreaker {
	if b.OpenedAt != nil {
		b.OpenedAt = timePtr(*b.OpenedAt)
	}
	if b.LastFailure != nil {
		b.LastFailure = timePtr(*b.LastFailure)
	}
	return b
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func ema(prev, sample float64) float64 {
	return Alpha*sample + (1-Alpha)*prev
}
