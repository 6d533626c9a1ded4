package monitor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"mercator-hq/conduit/internal/testutil"
	"mercator-hq/conduit/pkg/registry"
)

func TestProbeAll_FailureDegradesWithoutTrippingBreaker(t *testing.T) {
	prober := testutil.NewMockProber()
	prober.SetHealthy("alpha", false)
	m, _ := newTestMonitor(t, WithProber(prober))

	for i := 0; i < 10; i++ {
		m.ProbeAll(context.Background())
	}

	h, _ := m.GetHealth("alpha")
	if h.Status != StatusDegraded {
		t.Errorf("Status = %s, want degraded", h.Status)
	}
	b, _ := m.GetCircuitBreaker("alpha")
	if b.State != CircuitClosed || b.FailureCount != 0 {
		t.Errorf("probe failures must not touch the breaker: %+v", b)
	}
	if !m.IsAvailable("alpha") {
		t.Error("degraded provider should stay available")
	}
	if prober.Calls("beta") != 10 {
		t.Errorf("beta probed %d times, want 10", prober.Calls("beta"))
	}

	prober.SetHealthy("alpha", true)
	m.ProbeAll(context.Background())
	if h, _ := m.GetHealth("alpha"); h.Status != StatusHealthy {
		t.Errorf("Status after recovery = %s, want healthy", h.Status)
	}
}

func TestProbeAll_SuccessKeepsRealFailures(t *testing.T) {
	m, clock := newTestMonitor(t, WithProber(testutil.NewMockProber()))

	m.RecordOutcome("alpha", false, 100)
	clock.Advance(time.Minute)
	m.ProbeAll(context.Background())

	h, _ := m.GetHealth("alpha")
	if h.Status != StatusDegraded {
		t.Errorf("outstanding failure should keep degraded, got %s", h.Status)
	}
	if !h.LastChecked.Equal(epoch.Add(time.Minute)) {
		t.Errorf("LastChecked = %v", h.LastChecked)
	}
}

func TestProbeAll_OpenCircuitStaysDown(t *testing.T) {
	m, _ := newTestMonitor(t, WithProber(testutil.NewMockProber()))

	for i := 0; i < 5; i++ {
		m.RecordOutcome("alpha", false, 100)
	}
	m.ProbeAll(context.Background())

	if h, _ := m.GetHealth("alpha"); h.Status != StatusDown {
		t.Errorf("Status = %s, want down", h.Status)
	}
}

func TestProbeAll_CancelledRoundLeavesHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := ProberFunc(func(probeCtx context.Context, p registry.Provider) error {
		cancel()
		<-probeCtx.Done()
		return &ProbeError{ProviderID: p.ID, Err: probeCtx.Err()}
	})
	m, _ := newTestMonitor(t, WithProber(prober))

	m.ProbeAll(ctx)

	for _, id := range []string{"alpha", "beta"} {
		if h, _ := m.GetHealth(id); h.Status != StatusHealthy {
			t.Errorf("%s Status = %s, want healthy after a cancelled round", id, h.Status)
		}
	}
}

func TestProbeAll_PanickingProber(t *testing.T) {
	prober := ProberFunc(func(ctx context.Context, p registry.Provider) error {
		if p.ID == "alpha" {
			panic("prober bug")
		}
		return nil
	})
	m, _ := newTestMonitor(t, WithProber(prober))

	m.ProbeAll(context.Background())

	if h, _ := m.GetHealth("alpha"); h.Status != StatusDegraded {
		t.Errorf("alpha Status = %s, want degraded", h.Status)
	}
	if h, _ := m.GetHealth("beta"); h.Status != StatusHealthy {
		t.Errorf("beta Status = %s, want healthy", h.Status)
	}
}

func TestStartStopProbing_Idempotent(t *testing.T) {
	prober := testutil.NewMockProber()
	reg := newTestRegistry(t)
	m := New(reg, WithProber(prober))

	m.StartProbing(10 * time.Millisecond)
	m.StartProbing(10 * time.Millisecond)
	if !m.Probing() {
		t.Fatal("Probing() = false after StartProbing")
	}

	testutil.WaitForCondition(t, time.Second, func() bool {
		return prober.Calls("alpha") >= 2
	}, "probe loop did not run")

	m.StopProbing()
	m.StopProbing()
	if m.Probing() {
		t.Error("Probing() = true after StopProbing")
	}

	calls := prober.Calls("alpha")
	time.Sleep(50 * time.Millisecond)
	if prober.Calls("alpha") != calls {
		t.Error("probes continued after StopProbing")
	}
}

func TestHTTPProber(t *testing.T) {
	hs := testutil.NewHealthServer()
	defer hs.Close()

	hs.SetResponse("/ok", testutil.MockResponse{StatusCode: http.StatusOK})
	hs.SetResponse("/busy", testutil.MockResponse{StatusCode: http.StatusTooManyRequests})
	hs.SetResponse("/broken", testutil.MockResponse{StatusCode: http.StatusBadGateway})
	hs.SetResponse("/slow", testutil.MockResponse{StatusCode: http.StatusOK, Delay: 200 * time.Millisecond})

	prober := NewHTTPProber(nil)

	tests := []struct {
		name    string
		url     string
		timeout time.Duration
		wantErr bool
	}{
		{"no health url", "", time.Second, false},
		{"ok", hs.URL() + "/ok", time.Second, false},
		{"client error is reachable", hs.URL() + "/busy", time.Second, false},
		{"server error", hs.URL() + "/broken", time.Second, true},
		{"timeout", hs.URL() + "/slow", 20 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			err := prober.Probe(ctx, registry.Provider{ID: "p", HealthURL: tt.url})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrProbeFailure) {
				t.Errorf("error should match ErrProbeFailure: %v", err)
			}
		})
	}
}

func TestProbeError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProbeError{ProviderID: "alpha", Err: cause}

	if !errors.Is(err, ErrProbeFailure) {
		t.Error("ProbeError should match ErrProbeFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("ProbeError should unwrap to its cause")
	}

	withStatus := &ProbeError{ProviderID: "alpha", StatusCode: 503}
	if withStatus.Error() != `probe of provider "alpha" failed with status 503` {
		t.Errorf("Error() = %q", withStatus.Error())
	}
}

func TestNoopProber(t *testing.T) {
	if err := (NoopProber{}).Probe(context.Background(), registry.Provider{ID: "a"}); err != nil {
		t.Errorf("NoopProber.Probe() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (NoopProber{}).Probe(ctx, registry.Provider{ID: "a"}); !errors.Is(err, ErrProbeFailure) {
		t.Errorf("cancelled probe error = %v", err)
	}
}
