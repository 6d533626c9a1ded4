package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
)

// SelectionMetrics tracks provider selections.
//
// Metrics:
//   - conduit_routing_selections_total: selections by provider, strategy, reason and content type
//   - conduit_routing_selection_failures_total: selections that found no provider
//   - conduit_routing_selection_duration_seconds: time spent scoring and ranking
//   - conduit_routing_selection_score: overall score of the winning provider
type SelectionMetrics struct {
	selections *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   prometheus.Histogram
	score      *prometheus.HistogramVec
}

// NewSelectionMetrics creates and registers selection metrics with the provided registry.
func NewSelectionMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *SelectionMetrics {
	sm := &SelectionMetrics{
		selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "selections_total",
				Help:      "Total number of provider selections",
			},
			[]string{"provider", "strategy", "reason", "content_type"},
		),

		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "selection_failures_total",
				Help:      "Total number of selections that found no available provider",
			},
			[]string{"strategy", "content_type"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "selection_duration_seconds",
				Help:      "Time spent selecting a provider in seconds",
				// Selection is in-memory scoring: 10µs to 10ms
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
			},
		),

		score: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "selection_score",
				Help:      "Overall score of the selected provider",
				Buckets:   prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"strategy"},
		),
	}

	registry.MustRegister(
		sm.selections,
		sm.failures,
		sm.duration,
		sm.score,
	)

	return sm
}

// RecordSelection records a successful selection.
func (sm *SelectionMetrics) RecordSelection(provider, strategy, reason, contentType string, seconds, score float64) {
	sm.selections.WithLabelValues(provider, strategy, reason, contentType).Inc()
	sm.duration.Observe(seconds)
	sm.score.WithLabelValues(strategy).Observe(score)
}

// RecordFailure records a selection without candidates.
func (sm *SelectionMetrics) RecordFailure(strategy, contentType string) {
	sm.failures.WithLabelValues(strategy, contentType).Inc()
}
