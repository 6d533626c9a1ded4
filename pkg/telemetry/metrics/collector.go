package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/routing"
	"mercator-hq/conduit/pkg/usage"
	"mercator-hq/conduit/pkg/usage/recorder"
)

// overflowLabel replaces label values beyond the cardinality limit.
const overflowLabel = "other"

// Collector owns the Prometheus metrics of the router. It implements
// routing.Observer and follows monitor events to keep health gauges current.
//
// Content types come from callers, so the content_type label goes through a
// CardinalityLimiter; values past the limit are reported as "other".
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	selection *SelectionMetrics
	provider  *ProviderMetrics
	cost      *CostMetrics

	contentTypes *CardinalityLimiter
}

// NewCollector creates a collector registering its metrics on registry. If
// registry is nil, a new private registry is used.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.ResponseTimeBuckets) == 0 {
		cfg.ResponseTimeBuckets = config.DefaultResponseTimeBuckets
	}

	return &Collector{
		config:       cfg,
		registry:     registry,
		selection:    NewSelectionMetrics(cfg, registry),
		provider:     NewProviderMetrics(cfg, registry),
		cost:         NewCostMetrics(cfg, registry),
		contentTypes: NewCardinalityLimiter(100),
	}
}

// ObserveSelection implements routing.Observer.
func (c *Collector) ObserveSelection(d *routing.SelectionDecision, ev usage.Event, duration time.Duration) {
	contentType := c.contentTypeLabel(ev.ContentType)
	c.selection.RecordSelection(
		d.SelectedProvider,
		string(d.Strategy),
		d.SelectionCriteria.Reason,
		contentType,
		duration.Seconds(),
		d.SelectionCriteria.OverallScore,
	)
	c.cost.RecordEstimate(d.SelectedProvider, d.EstimatedCost, ev.Tokens)
}

// ObserveSelectionFailure implements routing.Observer.
func (c *Collector) ObserveSelectionFailure(contentType string, strategy routing.Strategy) {
	c.selection.RecordFailure(string(strategy), c.contentTypeLabel(contentType))
}

// ObserveOutcome implements routing.Observer.
func (c *Collector) ObserveOutcome(o routing.Outcome) {
	c.provider.RecordOutcome(o.ProviderID, o.Success, o.ResponseTime/1000)
	c.cost.RecordActual(o.ProviderID, o.Cost)
}

// ObserveEvent updates the health gauges from a monitor event.
func (c *Collector) ObserveEvent(ev monitor.Event) {
	if ev.Type != monitor.EventHealthUpdate || ev.Health == nil {
		return
	}
	c.provider.UpdateHealth(ev.ProviderID, ev.Health.Status, ev.Health.CircuitState)
}

// SyncHealth sets the health gauges of every provider from a snapshot.
func (c *Collector) SyncHealth(health map[string]monitor.HealthRecord) {
	for id, h := range health {
		c.provider.UpdateHealth(id, h.Status, h.CircuitState)
	}
}

// Follow consumes events from a subscription until ctx is cancelled or
// the subscription is closed. The returned function waits for it to exit.
func (c *Collector) Follow(ctx context.Context, sub *monitor.Subscription) (wait func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				c.ObserveEvent(ev)
			}
		}
	}()
	return wg.Wait
}

// RegisterRecorder exposes the counters of a usage recorder.
func (c *Collector) RegisterRecorder(stats func() recorder.Stats) {
	counter := func(name, help string, value func(recorder.Stats) int64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: c.config.Namespace,
				Subsystem: c.config.Subsystem,
				Name:      name,
				Help:      help,
			},
			func() float64 { return float64(value(stats())) },
		)
	}

	c.registry.MustRegister(
		counter("usage_events_written_total", "Usage events written to durable storage",
			func(s recorder.Stats) int64 { return s.Written }),
		counter("usage_events_failed_total", "Usage events that failed to be written",
			func(s recorder.Stats) int64 { return s.Failed }),
		counter("usage_events_dropped_total", "Usage events dropped because the buffer was full",
			func(s recorder.Stats) int64 { return s.Dropped }),
	)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) contentTypeLabel(contentType string) string {
	if !c.contentTypes.Allow(contentType) {
		return overflowLabel
	}
	return contentType
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a label value may be used: it is already known, or
// the limit has not been reached yet.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
