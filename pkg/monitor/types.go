package monitor

import (
	"time"

	"mercator-hq/conduit/pkg/registry"
)

// Status is the coarse health classification of a provider.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// CircuitState is the state of a provider's circuit breaker.
type CircuitState string

const (
	// CircuitClosed admits traffic.
	CircuitClosed CircuitState = "closed"

	// CircuitOpen rejects traffic until reset, or until the half-open delay
	// elapses when one is configured.
	CircuitOpen CircuitState = "open"

	// CircuitHalfOpen admits a single trial request.
	CircuitHalfOpen CircuitState = "half_open"
)

// DefaultFailureThreshold is the number of consecutive failures that opens
// a circuit.
const DefaultFailureThreshold = 5

// Alpha is the smoothing factor of the health moving averages.
const Alpha = 0.1

// degradedSuccessRate is the success rate (percent) below which a provider
// with a closed circuit is reported degraded.
const degradedSuccessRate = 80

// HealthRecord is the observed health of one provider.
type HealthRecord struct {
	ProviderID          string       `json:"providerId"`
	Status              Status       `json:"status"`
	ResponseTime        float64      `json:"responseTime"` // milliseconds, EMA
	SuccessRate         float64      `json:"successRate"`  // percent, EMA
	ErrorRate           float64      `json:"errorRate"`    // percent, EMA
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	CircuitState        CircuitState `json:"circuitState"`
	LastChecked         time.Time    `json:"lastChecked"`
}

// CircuitBreaker is the breaker state of one provider.
type CircuitBreaker struct {
	ProviderID   string       `json:"providerId"`
	State        CircuitState `json:"state"`
	FailureCount int          `json:"failureCount"`
	OpenedAt     *time.Time   `json:"openedAt,omitempty"`
	LastFailure  *time.Time   `json:"lastFailure,omitempty"`
}

// EventType names the kind of a monitor event.
type EventType string

const (
	// EventHealthUpdate is emitted after every health or breaker change.
	EventHealthUpdate EventType = "healthUpdate"

	// EventConfigUpdate is emitted after a provider configuration patch.
	EventConfigUpdate EventType = "configUpdate"
)

// Event is delivered to subscribers. Health and Breaker are set for
// health updates; Provider is set for config updates.
type Event struct {
	Type       EventType          `json:"type"`
	ProviderID string             `json:"providerId"`
	Health     *HealthRecord      `json:"health,omitempty"`
	Breaker    *CircuitBreaker    `json:"circuitBreaker,omitempty"`
	Provider   *registry.Provider `json:"provider,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}
