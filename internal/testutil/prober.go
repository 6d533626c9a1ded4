package testutil

import (
	"context"
	"fmt"
	"sync"

	"mercator-hq/conduit/pkg/registry"
)

// MockProber is a scriptable liveness prober. Providers are reachable until
// SetHealthy marks them otherwise.
type MockProber struct {
	mu        sync.Mutex
	unhealthy map[string]bool
	calls     map[string]int
}

// NewMockProber creates a prober that passes every provider.
func NewMockProber() *MockProber {
	return &MockProber{
		unhealthy: make(map[string]bool),
		calls:     make(map[string]int),
	}
}

// SetHealthy sets the probe result for a provider.
func (m *MockProber) SetHealthy(providerID string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthy[providerID] = !healthy
}

// Calls returns how many times the provider was probed.
func (m *MockProber) Calls(providerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[providerID]
}

// Probe implements the monitor prober contract.
func (m *MockProber) Probe(ctx context.Context, p registry.Provider) error {
	m.mu.Lock()
	m.calls[p.ID]++
	bad := m.unhealthy[p.ID]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if bad {
		return fmt.Errorf("provider %s is unhealthy", p.ID)
	}
	return nil
}
