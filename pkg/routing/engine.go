package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/limits/ratelimit"
	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/performance"
	"mercator-hq/conduit/pkg/registry"
	"mercator-hq/conduit/pkg/telemetry/logging"
	"mercator-hq/conduit/pkg/telemetry/tracing"
	"mercator-hq/conduit/pkg/usage"
)

// Observer receives selection and outcome notifications, typically to
// export metrics. Implementations must not block. ObserveSelection receives
// the usage event logged for the decision alongside it.
type Observer interface {
	ObserveSelection(d *SelectionDecision, ev usage.Event, duration time.Duration)
	ObserveSelectionFailure(contentType string, strategy Strategy)
	ObserveOutcome(o Outcome)
}

// UsageSink receives every new or updated usage event, typically to persist
// it. Events with the same request ID replace each other. Implementations
// must not block.
type UsageSink interface {
	Record(ev usage.Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy sets the initial optimization strategy. Unknown strategies
// are ignored.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		if _, ok := strategyWeights[s]; ok {
			e.strategy = s
		}
	}
}

// WithSpecialtyTable sets the content type to specialty tags table.
func WithSpecialtyTable(table map[string][]string) Option {
	return func(e *Engine) {
		if table != nil {
			e.specialties = copyTable(table)
		}
	}
}

// WithReferenceMaxCost sets the estimated cost that scores zero on the
// cost dimension.
func WithReferenceMaxCost(c float64) Option {
	return func(e *Engine) {
		if c > 0 {
			e.scorer.referenceMaxCost = c
		}
	}
}

// WithDefaultResponseTime sets the estimated time reported for providers
// without observed response times.
func WithDefaultResponseTime(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.defaultResponseTime = d
		}
	}
}

// WithUsageCapacity sets the number of usage events kept in memory.
func WithUsageCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.ring = usage.NewRing(n)
		}
	}
}

// WithTokenCounter sets the per-provider token throughput counter.
func WithTokenCounter(tc *ratelimit.TokenCounter) Option {
	return func(e *Engine) {
		if tc != nil {
			e.tokens = tc
		}
	}
}

// WithObserver registers a selection observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithUsageSink sets the sink receiving usage events.
func WithUsageSink(s UsageSink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithTracer sets the tracer used for selection spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine selects providers for content-generation requests.
//
// Select filters the registry down to active providers whose circuit
// admits traffic and whose rate window has capacity, scores them, and
// consumes one request of the winner's window. Filtering and consumption
// run under a single lock so concurrent selections never overrun a limit.
type Engine struct {
	reg     *registry.Registry
	monitor *monitor.Monitor
	limiter *ratelimit.Limiter
	perf    *performance.Tracker

	scorer              scorer
	defaultResponseTime time.Duration
	ring                *usage.Ring
	tokens              *ratelimit.TokenCounter
	stats               *AtomicRoutingStats
	observers           []Observer
	sink                UsageSink
	tracer              trace.Tracer
	logger              *slog.Logger
	now                 func() time.Time

	// selectMu serializes candidate filtering with Consume.
	selectMu sync.Mutex

	mu          sync.RWMutex
	strategy    Strategy
	specialties map[string][]string
}

// New creates an engine over the given components.
func New(reg *registry.Registry, mon *monitor.Monitor, lim *ratelimit.Limiter, perf *performance.Tracker, opts ...Option) *Engine {
	e := &Engine{
		reg:                 reg,
		monitor:             mon,
		limiter:             lim,
		perf:                perf,
		scorer:              scorer{referenceMaxCost: config.DefaultReferenceMaxCost},
		defaultResponseTime: config.DefaultResponseTime,
		ring:                usage.NewRing(usage.DefaultCapacity),
		stats:               NewAtomicRoutingStats(),
		tracer:              noop.NewTracerProvider().Tracer("conduit/routing"),
		logger:              slog.Default(),
		now:                 time.Now,
		strategy:            StrategyBalanced,
		specialties:         config.DefaultContentSpecialties(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tokens == nil {
		e.tokens = ratelimit.NewTokenCounter(time.Minute, e.now)
	}
	e.logger = e.logger.With("component", "routing")
	return e
}

// Select picks a provider without a context.
func (e *Engine) Select(contentType string, estimatedTokens int, req *Requirements) (*SelectionDecision, error) {
	return e.SelectContext(context.Background(), contentType, estimatedTokens, req)
}

// SelectContext picks a provider for the content type. The context only
// carries tracing and logging values; selection never blocks on I/O.
func (e *Engine) SelectContext(ctx context.Context, contentType string, estimatedTokens int, req *Requirements) (*SelectionDecision, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "routing.select",
		trace.WithAttributes(
			attribute.String(tracing.AttrContentType, contentType),
			attribute.Int(tracing.AttrEstimatedTokens, estimatedTokens),
		))
	defer span.End()

	if estimatedTokens < 0 {
		err := fmt.Errorf("%w: estimated tokens must be non-negative, got %d", ErrInvalidRequest, estimatedTokens)
		tracing.SetError(span, err)
		return nil, err
	}
	if req == nil {
		req = &Requirements{}
	}

	e.mu.RLock()
	strategy := e.strategy
	required := e.requiredSpecialtiesLocked(contentType, req)
	e.mu.RUnlock()
	weights := strategyWeights[strategy]

	e.selectMu.Lock()
	candidates, considered := e.candidatesLocked(req)
	if len(candidates) == 0 {
		e.selectMu.Unlock()

		err := &NoProvidersAvailableError{ContentType: contentType, Considered: considered}
		e.stats.IncrementNoProvider()
		for _, o := range e.observers {
			o.ObserveSelectionFailure(contentType, strategy)
		}
		tracing.SetError(span, err)
		e.logger.WarnContext(ctx, "no providers available",
			"content_type", contentType,
			"considered", considered,
		)
		return nil, err
	}

	for _, c := range candidates {
		c.estimatedCost = c.provider.CostPerToken * float64(estimatedTokens)
		c.criteria = SelectionCriteria{
			CostScore:           e.scorer.costScore(c.estimatedCost, req),
			PerformanceScore:    performanceScore(c.health, c.perf),
			ReliabilityScore:    reliabilityScore(c.health, c.perf),
			SpecializationScore: specializationScore(c.provider, required),
		}
		c.criteria.OverallScore = weights.Combine(c.criteria)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].criteria.OverallScore > candidates[j].criteria.OverallScore
	})

	winner := candidates[0]
	e.limiter.Consume(winner.provider.ID)
	e.monitor.MarkSelected(winner.provider.ID)
	e.selectMu.Unlock()

	now := e.now()
	winner.criteria.Reason = selectionReason(winner.criteria)
	decision := &SelectionDecision{
		RequestID:         NewRequestID(now),
		SelectedProvider:  winner.provider.ID,
		Confidence:        clamp(winner.criteria.OverallScore/100, 0, 1),
		EstimatedCost:     winner.estimatedCost,
		EstimatedTime:     e.estimatedTime(winner.perf),
		FallbackProviders: make([]Alternative, 0, 2),
		SelectionCriteria: winner.criteria,
		Strategy:          strategy,
		Timestamp:         now,
	}
	for _, c := range candidates[1:min(len(candidates), 3)] {
		decision.FallbackProviders = append(decision.FallbackProviders, Alternative{
			ProviderID:    c.provider.ID,
			EstimatedCost: c.estimatedCost,
			EstimatedTime: e.estimatedTime(c.perf),
			Reliability:   c.criteria.ReliabilityScore,
			OverallScore:  c.criteria.OverallScore,
		})
	}

	ev := usage.Event{
		RequestID:   decision.RequestID,
		ProviderID:  decision.SelectedProvider,
		ContentType: contentType,
		Tokens:      estimatedTokens,
		Cost:        decision.EstimatedCost,
		Strategy:    string(strategy),
		Timestamp:   now,
	}
	// The sink sees the selection before the ring can complete it.
	if e.sink != nil {
		e.sink.Record(ev)
	}
	e.ring.Append(ev)
	e.tokens.Add(decision.SelectedProvider, int64(estimatedTokens))

	e.stats.RecordSelection(decision.SelectedProvider, strategy, decision.SelectionCriteria.Reason)
	for _, o := range e.observers {
		o.ObserveSelection(decision, ev, time.Since(start))
	}

	tracing.SetSelectionAttributes(span,
		decision.RequestID,
		decision.SelectedProvider,
		string(strategy),
		decision.SelectionCriteria.Reason,
		decision.SelectionCriteria.OverallScore,
	)
	ctx = logging.WithRequestID(ctx, decision.RequestID)
	e.logger.DebugContext(ctx, "provider selected",
		"provider_id", decision.SelectedProvider,
		"content_type", contentType,
		"strategy", strategy,
		"reason", decision.SelectionCriteria.Reason,
		"overall_score", decision.SelectionCriteria.OverallScore,
		"candidates", len(candidates),
	)
	return decision, nil
}

// candidatesLocked returns the selectable providers in registry order,
// with their health and performance snapshots, and the IDs that were
// considered. Caller must hold e.selectMu.
func (e *Engine) candidatesLocked(req *Requirements) ([]*candidate, []string) {
	var (
		out        []*candidate
		considered []string
	)
	for _, p := range e.reg.List() {
		if !p.IsActive || excluded(p.ID, req.ExcludeProviders) {
			continue
		}
		considered = append(considered, p.ID)

		if !e.monitor.IsAvailable(p.ID) || !e.limiter.HasCapacity(p.ID) {
			continue
		}
		health, ok := e.monitor.GetHealth(p.ID)
		if !ok {
			continue
		}
		perf, ok := e.perf.Get(p.ID)
		if !ok {
			e.perf.Track(p.ID)
			perf, _ = e.perf.Get(p.ID)
		}
		out = append(out, &candidate{provider: p, health: health, perf: perf})
	}
	return out, considered
}

func excluded(id string, list []string) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

// requiredSpecialtiesLocked returns the tags a provider should declare for
// the content type. Caller must hold e.mu.
func (e *Engine) requiredSpecialtiesLocked(contentType string, req *Requirements) []string {
	if len(req.Specialties) > 0 {
		return req.Specialties
	}
	if tags, ok := e.specialties[contentType]; ok && len(tags) > 0 {
		return tags
	}
	return []string{config.DefaultFallbackSpecialty}
}

func (e *Engine) estimatedTime(p performance.Record) float64 {
	if p.AverageResponseTime > 0 {
		return p.AverageResponseTime
	}
	return float64(e.defaultResponseTime) / float64(time.Millisecond)
}

// RecordRequestResult reports the outcome of a real provider call.
func (e *Engine) RecordRequestResult(o Outcome) error {
	return e.RecordRequestResultContext(context.Background(), o)
}

// RecordRequestResultContext reports the outcome of a real provider call.
// It feeds the health monitor and the performance tracker, then attaches
// the outcome to the usage event of o.RequestID, or to the provider's most
// recent event when no request ID is given.
func (e *Engine) RecordRequestResultContext(ctx context.Context, o Outcome) error {
	ctx, span := e.tracer.Start(ctx, "routing.record_result")
	defer span.End()
	tracing.SetOutcomeAttributes(span, o.RequestID, o.ProviderID, o.Success, o.Cost)

	if err := e.validateOutcome(o); err != nil {
		tracing.SetError(span, err)
		return err
	}

	e.monitor.RecordOutcome(o.ProviderID, o.Success, o.ResponseTime)
	e.perf.RecordOutcome(o.ProviderID, o.Success, o.ResponseTime, o.Cost)

	res := usage.Result{Success: o.Success, ResponseTime: o.ResponseTime, Cost: o.Cost}
	var (
		ev      usage.Event
		matched bool
	)
	if o.RequestID != "" {
		ev, matched = e.ring.Complete(o.RequestID, res)
		if matched && ev.ProviderID != o.ProviderID {
			e.logger.WarnContext(ctx, "outcome provider differs from selection",
				"request_id", o.RequestID,
				"selected", ev.ProviderID,
				"reported", o.ProviderID,
			)
		}
	} else {
		ev, matched = e.ring.CompleteLatest(o.ProviderID, res)
	}

	e.stats.RecordOutcome(matched)
	if matched && e.sink != nil {
		e.sink.Record(ev)
	}
	if !matched {
		e.logger.DebugContext(ctx, "outcome not matched to a usage event",
			"request_id", o.RequestID,
			"provider_id", o.ProviderID,
		)
	}
	for _, obs := range e.observers {
		obs.ObserveOutcome(o)
	}
	return nil
}

func (e *Engine) validateOutcome(o Outcome) error {
	if o.ProviderID == "" {
		return fmt.Errorf("%w: provider id is required", ErrInvalidRequest)
	}
	if o.ResponseTime < 0 || o.Cost < 0 {
		return fmt.Errorf("%w: response time and cost must be non-negative", ErrInvalidRequest)
	}
	if !e.reg.Has(o.ProviderID) {
		return fmt.Errorf("%w: %s", ErrNotFound, o.ProviderID)
	}
	return nil
}

// SetOptimizationStrategy changes the active strategy.
func (e *Engine) SetOptimizationStrategy(s Strategy) error {
	if _, ok := strategyWeights[s]; !ok {
		return &InvalidStrategyError{Strategy: string(s), Valid: config.ValidStrategies}
	}

	e.mu.Lock()
	old := e.strategy
	e.strategy = s
	e.mu.Unlock()

	if old != s {
		e.logger.Info("optimization strategy changed", "from", old, "to", s)
	}
	return nil
}

// GetOptimizationStrategy returns the active strategy.
func (e *Engine) GetOptimizationStrategy() Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strategy
}

// SetSpecialtyTable replaces the content type to specialty tags table.
func (e *Engine) SetSpecialtyTable(table map[string][]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.specialties = copyTable(table)
}

// SpecialtyTable returns a copy of the content type to specialty tags table.
func (e *Engine) SpecialtyTable() map[string][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyTable(e.specialties)
}

func copyTable(table map[string][]string) map[string][]string {
	out := make(map[string][]string, len(table))
	for k, v := range table {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ResetRateLimits starts fresh rate windows for every provider, using the
// registry's current limits.
func (e *Engine) ResetRateLimits() {
	e.selectMu.Lock()
	defer e.selectMu.Unlock()
	e.limiter.ResetAll()
	e.logger.Info("rate limits reset")
}

// Stats returns the routing counters.
func (e *Engine) Stats() RoutingStats {
	return e.stats.Snapshot()
}

// UsageEvents returns the in-memory usage log, oldest first.
func (e *Engine) UsageEvents() []usage.Event {
	return e.ring.Snapshot()
}

// GetAllHealth returns the health of every provider.
func (e *Engine) GetAllHealth() map[string]monitor.HealthRecord {
	return e.monitor.AllHealth()
}

// GetHealth returns the health of one provider.
func (e *Engine) GetHealth(id string) (monitor.HealthRecord, bool) {
	return e.monitor.GetHealth(id)
}

// GetCircuitBreaker returns the breaker of one provider.
func (e *Engine) GetCircuitBreaker(id string) (monitor.CircuitBreaker, bool) {
	return e.monitor.GetCircuitBreaker(id)
}

// ResetCircuitBreaker closes the provider's circuit.
func (e *Engine) ResetCircuitBreaker(id string) bool {
	return e.monitor.ResetCircuitBreaker(id)
}

// GetAllPerformance returns the performance records of every provider.
func (e *Engine) GetAllPerformance() map[string]performance.Record {
	return e.perf.GetAll()
}

// GetPerformance returns the performance record of one provider.
func (e *Engine) GetPerformance(id string) (performance.Record, bool) {
	return e.perf.Get(id)
}

// GetAllRateLimits returns the rate windows of every provider.
func (e *Engine) GetAllRateLimits() map[string]ratelimit.Window {
	return e.limiter.AllStatuses()
}

// GetRateLimit returns the rate window of one provider.
func (e *Engine) GetRateLimit(id string) (ratelimit.Window, bool) {
	return e.limiter.Status(id)
}

// GetProvider returns the configuration of one provider.
func (e *Engine) GetProvider(id string) (registry.Provider, bool) {
	return e.monitor.GetConfig(id)
}

// Providers returns the provider catalog in priority order.
func (e *Engine) Providers() []registry.Provider {
	return e.reg.List()
}

// UpdateProviderConfig applies a configuration patch to a provider. A new
// rate limit takes effect when the provider's window rolls over or is
// reset.
func (e *Engine) UpdateProviderConfig(id string, patch registry.Patch) (registry.Provider, error) {
	if err := patch.Validate(); err != nil {
		return registry.Provider{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p, ok := e.monitor.UpdateConfig(id, patch)
	if !ok {
		return registry.Provider{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.perf.Track(id)
	return p, nil
}

// AvailableProviders returns the IDs of active providers whose circuit
// admits traffic, in priority order. Rate-limit capacity is not considered.
func (e *Engine) AvailableProviders() []string {
	var out []string
	for _, p := range e.reg.List() {
		if p.IsActive && e.monitor.IsAvailable(p.ID) {
			out = append(out, p.ID)
		}
	}
	return out
}

// Subscribe returns a subscription to health and configuration events.
func (e *Engine) Subscribe(buffer int) *monitor.Subscription {
	return e.monitor.Subscribe(buffer)
}

// Monitor returns the engine's health monitor.
func (e *Engine) Monitor() *monitor.Monitor {
	return e.monitor
}
