package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mercator-hq/conduit/pkg/registry"
)

type probeLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartProbing starts the periodic liveness probe loop. Calling it while the
// loop is running does nothing.
func (m *Monitor) StartProbing(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	if m.probeRun != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	loop := &probeLoop{cancel: cancel, done: make(chan struct{})}
	m.probeRun = loop

	go m.runProbes(ctx, interval, loop.done)
	m.logger.Info("probe loop started", "interval", interval)
}

// StopProbing stops the probe loop and waits for the current round to end.
// Calling it while the loop is stopped does nothing.
func (m *Monitor) StopProbing() {
	m.probeMu.Lock()
	loop := m.probeRun
	m.probeRun = nil
	m.probeMu.Unlock()

	if loop == nil {
		return
	}
	loop.cancel()
	<-loop.done
	m.logger.Info("probe loop stopped")
}

// Probing reports whether the probe loop is running.
func (m *Monitor) Probing() bool {
	m.probeMu.Lock()
	defer m.probeMu.Unlock()
	return m.probeRun != nil
}

func (m *Monitor) runProbes(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every provider once, concurrently, and applies the
// results. No monitor lock is held while a probe is in flight.
func (m *Monitor) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range m.reg.List() {
		wg.Add(1)
		go func(p registry.Provider) {
			defer wg.Done()
			m.probeOne(ctx, p)
		}(p)
	}
	wg.Wait()
}

func (m *Monitor) probeOne(ctx context.Context, p registry.Provider) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := m.now()
	err := m.safeProbe(probeCtx, p)
	latency := m.now().Sub(start)

	// The loop was stopped mid-round; the result says nothing about the provider.
	if ctx.Err() != nil {
		m.logger.Debug("provider probe abandoned", "provider_id", p.ID, "error", ctx.Err())
		return
	}

	if err != nil {
		m.logger.Warn("provider probe failed", "provider_id", p.ID, "error", err, "latency", latency)
		m.applyProbe(p.ID, false)
		return
	}
	m.logger.Debug("provider probe passed", "provider_id", p.ID, "latency", latency)
	m.applyProbe(p.ID, true)
}

// safeProbe runs the prober, turning a panic into a ProbeError.
func (m *Monitor) safeProbe(ctx context.Context, p registry.Provider) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProbeError{ProviderID: p.ID, Err: fmt.Errorf("prober panic: %v", r)}
			m.logger.Error("provider prober panicked", "provider_id", p.ID, "panic", r)
		}
	}()
	return m.prober.Probe(ctx, p)
}

// applyProbe records a probe result. Probes never move the circuit breaker:
// a failure marks a closed provider degraded, a success restores healthy
// when no real failures are outstanding.
func (m *Monitor) applyProbe(id string, ok bool) {
	m.mu.Lock()
	e := m.entryLocked(id)
	if e == nil {
		m.mu.Unlock()
		return
	}

	now := m.now()
	e.health.LastChecked = now
	if e.breaker.State == CircuitClosed {
		if ok {
			e.health.Status = m.statusLocked(e)
		} else {
			e.health.Status = StatusDegraded
		}
	}

	m.events.publish(m.healthEventLocked(e, now))
	m.mu.Unlock()
}
