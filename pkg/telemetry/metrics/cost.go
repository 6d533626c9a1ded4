package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// CostMetrics tracks estimated and reported spend.
//
// Metrics:
//   - conduit_routing_estimated_cost_total: estimated cost of selections in USD
//   - conduit_routing_actual_cost_total: reported cost of provider calls in USD
//   - conduit_routing_tokens_total: estimated tokens routed to each provider
type CostMetrics struct {
	estimated *prometheus.CounterVec
	actual    *prometheus.CounterVec
	tokens    *prometheus.CounterVec
}

// NewCostMetrics creates and registers cost metrics with the provided registry.
func NewCostMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CostMetrics {
	cm := &CostMetrics{
		estimated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "estimated_cost_total",
				Help:      "Total estimated cost of selections in USD",
			},
			[]string{"provider"},
		),

		actual: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "actual_cost_total",
				Help:      "Total reported cost of provider calls in USD",
			},
			[]string{"provider"},
		),

		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "tokens_total",
				Help:      "Total estimated tokens routed to each provider",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(cm.estimated, cm.actual, cm.tokens)
	return cm
}

// RecordEstimate records the estimate of a selection.
func (cm *CostMetrics) RecordEstimate(provider string, cost float64, tokens int) {
	cm.estimated.WithLabelValues(provider).Add(cost)
	cm.tokens.WithLabelValues(provider).Add(float64(tokens))
}

// RecordActual records the reported cost of a call.
func (cm *CostMetrics) RecordActual(provider string, cost float64) {
	cm.actual.WithLabelValues(provider).Add(cost)
}
