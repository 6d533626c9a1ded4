package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/monitor"
)

// ProviderMetrics tracks provider health and reported outcomes.
//
// Metrics:
//   - conduit_routing_provider_health: health status (1=healthy, 0.5=degraded, 0=down)
//   - conduit_routing_circuit_state: breaker state (0=closed, 1=half_open, 2=open)
//   - conduit_routing_provider_outcomes_total: reported outcomes by result
//   - conduit_routing_provider_response_time_seconds: reported response times
type ProviderMetrics struct {
	health       *prometheus.GaugeVec
	circuit      *prometheus.GaugeVec
	outcomes     *prometheus.CounterVec
	responseTime *prometheus.HistogramVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0.5=degraded, 0=down)",
			},
			[]string{"provider"},
		),

		circuit: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),

		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_outcomes_total",
				Help:      "Total number of reported provider call outcomes",
			},
			[]string{"provider", "result"},
		),

		responseTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_response_time_seconds",
				Help:      "Reported provider response time in seconds",
				Buckets:   cfg.ResponseTimeBuckets,
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		pm.health,
		pm.circuit,
		pm.outcomes,
		pm.responseTime,
	)

	return pm
}

// UpdateHealth sets the health and circuit gauges of a provider.
func (pm *ProviderMetrics) UpdateHealth(provider string, status monitor.Status, state monitor.CircuitState) {
	pm.health.WithLabelValues(provider).Set(statusValue(status))
	pm.circuit.WithLabelValues(provider).Set(circuitValue(state))
}

// RecordOutcome records a reported call outcome.
func (pm *ProviderMetrics) RecordOutcome(provider string, success bool, responseTimeSeconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	pm.outcomes.WithLabelValues(provider, result).Inc()
	pm.responseTime.WithLabelValues(provider).Observe(responseTimeSeconds)
}

func statusValue(s monitor.Status) float64 {
	switch s {
	case monitor.StatusHealthy:
		return 1
	case monitor.StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

func circuitValue(s monitor.CircuitState) float64 {
	switch s {
	case monitor.CircuitHalfOpen:
		return 1
	case monitor.CircuitOpen:
		return 2
	default:
		return 0
	}
}
