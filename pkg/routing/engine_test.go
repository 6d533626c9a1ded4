package routing

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/conduit/internal/testutil"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/limits/ratelimit"
	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/performance"
	"mercator-hq/conduit/pkg/registry"
	"mercator-hq/conduit/pkg/usage"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// defaultCatalog mirrors the built-in provider configuration.
func defaultCatalog() []registry.Provider {
	var out []registry.Provider
	for _, pc := range config.DefaultProviders() {
		out = append(out, registry.Provider{
			ID:           pc.ID,
			CostPerToken: pc.CostPerToken,
			RateLimit:    pc.RateLimit,
			Specialties:  pc.Specialties,
			IsActive:     pc.IsActive(),
			Priority:     pc.Priority,
		})
	}
	return out
}

type engineFixture struct {
	engine *Engine
	clock  *testutil.Clock
}

func newFixture(t *testing.T, providers []registry.Provider, monOpts []monitor.Option, opts ...Option) *engineFixture {
	t.Helper()

	reg, err := registry.New(providers)
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	clock := testutil.NewClock(epoch)

	mon := monitor.New(reg, append([]monitor.Option{monitor.WithClock(clock.Now)}, monOpts...)...)
	lim := ratelimit.NewLimiter(reg, ratelimit.WithClock(clock.Now))
	perf := performance.NewTracker(reg.IDs(), clock.Now)

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return &engineFixture{
		engine: New(reg, mon, lim, perf, opts...),
		clock:  clock,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// ============================================================================
// Selection Tests
// ============================================================================

func TestSelect_CostFirstPicksCheapest(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))

	d, err := f.engine.Select("product_description", 1000, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if d.SelectedProvider != "gemini-pro" {
		t.Fatalf("SelectedProvider = %s, want gemini-pro", d.SelectedProvider)
	}
	c := d.SelectionCriteria
	if !approx(c.CostScore, 80) || !approx(c.PerformanceScore, 100) ||
		!approx(c.ReliabilityScore, 100) || !approx(c.SpecializationScore, 100) {
		t.Errorf("criteria = %+v", c)
	}
	// 0.5*80 + 0.2*100 + 0.2*100 + 0.1*100
	if !approx(c.OverallScore, 90) {
		t.Errorf("OverallScore = %v, want 90", c.OverallScore)
	}
	if c.Reason != ReasonPerformance {
		t.Errorf("Reason = %s, want performance", c.Reason)
	}
	if !approx(d.Confidence, 0.9) {
		t.Errorf("Confidence = %v, want 0.9", d.Confidence)
	}
	if !approx(d.EstimatedCost, 0.002) {
		t.Errorf("EstimatedCost = %v, want 0.002", d.EstimatedCost)
	}
	if d.EstimatedTime != 2000 {
		t.Errorf("EstimatedTime = %v, want default 2000ms", d.EstimatedTime)
	}
	if d.Strategy != StrategyCostFirst || !d.Timestamp.Equal(epoch) {
		t.Errorf("strategy/timestamp = %s/%v", d.Strategy, d.Timestamp)
	}

	if len(d.FallbackProviders) != 2 {
		t.Fatalf("FallbackProviders = %d, want 2", len(d.FallbackProviders))
	}
	// claude-3 and gpt-4 tie; registry order is kept.
	alt := d.FallbackProviders[0]
	if alt.ProviderID != "claude-3" || d.FallbackProviders[1].ProviderID != "gpt-4" {
		t.Errorf("alternatives = %+v", d.FallbackProviders)
	}
	if !approx(alt.EstimatedCost, 0.015) || !approx(alt.Reliability, 100) || !approx(alt.OverallScore, 40+10.0/3) {
		t.Errorf("alternative = %+v", alt)
	}

	if w, _ := f.engine.GetRateLimit("gemini-pro"); w.CurrentUsage != 1 || w.RequestsInWindow != 1 {
		t.Errorf("winner window = %+v", w)
	}
	if w, _ := f.engine.GetRateLimit("claude-3"); w.CurrentUsage != 0 {
		t.Errorf("alternatives must not be consumed: %+v", w)
	}
}

func TestSelect_MaxCostDisqualifiesExpensiveProvider(t *testing.T) {
	providers := append(defaultCatalog(), registry.Provider{
		ID:           "budget",
		CostPerToken: 0.0000005,
		RateLimit:    10,
		Specialties:  []string{"content_generation"},
		IsActive:     true,
	})
	f := newFixture(t, providers, nil, WithStrategy(StrategyCostFirst))

	d, err := f.engine.Select("product_description", 1000, &Requirements{MaxCost: 0.001})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if d.SelectedProvider != "budget" {
		t.Fatalf("SelectedProvider = %s, want budget", d.SelectedProvider)
	}
	if !approx(d.SelectionCriteria.CostScore, 95) {
		t.Errorf("budget CostScore = %v, want 95", d.SelectionCriteria.CostScore)
	}

	gemini := d.FallbackProviders[0]
	if gemini.ProviderID != "gemini-pro" {
		t.Fatalf("first alternative = %s, want gemini-pro", gemini.ProviderID)
	}
	// Cost score forced to 0: 0.2*100 + 0.2*100 + 0.1*100.
	if !approx(gemini.OverallScore, 50) {
		t.Errorf("gemini OverallScore = %v, want 50", gemini.OverallScore)
	}
}

func TestSelect_RateLimitExhausted(t *testing.T) {
	f := newFixture(t, []registry.Provider{
		{ID: "solo", CostPerToken: 0.000001, RateLimit: 2, IsActive: true},
	}, nil)

	for i := 0; i < 2; i++ {
		if _, err := f.engine.Select("blog_post", 100, nil); err != nil {
			t.Fatalf("Select() %d error = %v", i, err)
		}
	}

	_, err := f.engine.Select("blog_post", 100, nil)
	if !errors.Is(err, ErrNoProvidersAvailable) {
		t.Fatalf("third Select() error = %v, want ErrNoProvidersAvailable", err)
	}
	var npe *NoProvidersAvailableError
	if !errors.As(err, &npe) {
		t.Fatalf("error should be *NoProvidersAvailableError: %T", err)
	}
	if npe.ContentType != "blog_post" || len(npe.Considered) != 1 || npe.Considered[0] != "solo" {
		t.Errorf("error = %+v", npe)
	}

	f.clock.Advance(60 * time.Second)
	if _, err := f.engine.Select("blog_post", 100, nil); err != nil {
		t.Errorf("Select() after window rollover error = %v", err)
	}
	if got := f.engine.Stats().NoProviderFailures; got != 1 {
		t.Errorf("NoProviderFailures = %d, want 1", got)
	}
}

func TestSelect_NoCandidates(t *testing.T) {
	tests := []struct {
		name string
		req  *Requirements
		off  bool
	}{
		{name: "all inactive", off: true},
		{name: "all excluded", req: &Requirements{ExcludeProviders: []string{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := []registry.Provider{
				{ID: "a", RateLimit: 5, IsActive: !tt.off},
				{ID: "b", RateLimit: 5, IsActive: !tt.off},
			}
			f := newFixture(t, providers, nil)

			_, err := f.engine.Select("email", 10, tt.req)
			var npe *NoProvidersAvailableError
			if !errors.As(err, &npe) {
				t.Fatalf("Select() error = %v, want *NoProvidersAvailableError", err)
			}
			if len(npe.Considered) != 0 {
				t.Errorf("Considered = %v, want none", npe.Considered)
			}
		})
	}
}

func TestSelect_ExcludeProviders(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))

	d, err := f.engine.Select("product_description", 1000, &Requirements{ExcludeProviders: []string{"gemini-pro"}})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if d.SelectedProvider == "gemini-pro" {
		t.Error("excluded provider was selected")
	}
	if len(d.FallbackProviders) != 1 {
		t.Errorf("FallbackProviders = %d, want 1", len(d.FallbackProviders))
	}
}

func TestSelect_RequirementSpecialtiesOverrideTable(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategySpecialized))

	d, err := f.engine.Select("product_description", 0, &Requirements{Specialties: []string{"long_form", "creative"}})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	// claude-3 and gpt-4 both match; claude-3 comes first in the registry.
	if d.SelectedProvider != "claude-3" {
		t.Errorf("SelectedProvider = %s, want claude-3", d.SelectedProvider)
	}
	if !approx(d.SelectionCriteria.SpecializationScore, 100) {
		t.Errorf("SpecializationScore = %v", d.SelectionCriteria.SpecializationScore)
	}
}

func TestSelect_UnknownContentTypeUsesFallbackTag(t *testing.T) {
	f := newFixture(t, []registry.Provider{
		{ID: "generic", RateLimit: 5, IsActive: true, Specialties: []string{"content_generation"}},
	}, nil)

	d, err := f.engine.Select("haiku", 10, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !approx(d.SelectionCriteria.SpecializationScore, 100) {
		t.Errorf("SpecializationScore = %v, want 100", d.SelectionCriteria.SpecializationScore)
	}
}

func TestSelect_NegativeTokens(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil)

	if _, err := f.engine.Select("email", -1, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Select() error = %v, want ErrInvalidRequest", err)
	}
}

func TestSelect_StableRanking(t *testing.T) {
	providers := []registry.Provider{
		{ID: "first", CostPerToken: 0.000001, RateLimit: 100, IsActive: true, Specialties: []string{"content_generation"}},
		{ID: "second", CostPerToken: 0.000001, RateLimit: 100, IsActive: true, Specialties: []string{"content_generation"}},
		{ID: "third", CostPerToken: 0.000001, RateLimit: 100, IsActive: true, Specialties: []string{"content_generation"}},
	}
	f := newFixture(t, providers, nil)

	for i := 0; i < 20; i++ {
		d, err := f.engine.Select("email", 100, nil)
		if err != nil {
			t.Fatalf("Select() %d error = %v", i, err)
		}
		if d.SelectedProvider != "first" ||
			d.FallbackProviders[0].ProviderID != "second" ||
			d.FallbackProviders[1].ProviderID != "third" {
			t.Fatalf("iteration %d ranking = %s, %+v", i, d.SelectedProvider, d.FallbackProviders)
		}
	}
}

func TestSelect_ConcurrentNeverExceedsLimit(t *testing.T) {
	f := newFixture(t, []registry.Provider{
		{ID: "a", RateLimit: 25, IsActive: true},
		{ID: "b", RateLimit: 25, IsActive: true},
	}, nil)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		failed    atomic.Int64
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.Select("email", 10, nil); err != nil {
				failed.Add(1)
				return
			}
			succeeded.Add(1)
		}()
	}
	wg.Wait()

	if succeeded.Load() != 50 || failed.Load() != 150 {
		t.Errorf("succeeded/failed = %d/%d, want 50/150", succeeded.Load(), failed.Load())
	}
	for id, w := range f.engine.GetAllRateLimits() {
		if w.CurrentUsage != 25 {
			t.Errorf("%s CurrentUsage = %d, want 25", id, w.CurrentUsage)
		}
	}
}

func TestSelect_SkipsOpenCircuit(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))

	for i := 0; i < 5; i++ {
		if err := f.engine.RecordRequestResult(Outcome{ProviderID: "gemini-pro", ResponseTime: 100}); err != nil {
			t.Fatalf("RecordRequestResult() error = %v", err)
		}
	}

	b, _ := f.engine.GetCircuitBreaker("gemini-pro")
	if b.State != monitor.CircuitOpen {
		t.Fatalf("State = %s, want open", b.State)
	}
	if h, _ := f.engine.GetHealth("gemini-pro"); h.Status != monitor.StatusDown {
		t.Errorf("Status = %s, want down", h.Status)
	}

	for i := 0; i < 10; i++ {
		d, err := f.engine.Select("product_description", 1000, nil)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if d.SelectedProvider == "gemini-pro" {
			t.Fatal("open circuit provider was selected")
		}
	}

	if !f.engine.ResetCircuitBreaker("gemini-pro") {
		t.Fatal("ResetCircuitBreaker() = false")
	}
	b, _ = f.engine.GetCircuitBreaker("gemini-pro")
	h, _ := f.engine.GetHealth("gemini-pro")
	if b.State != monitor.CircuitClosed || b.FailureCount != 0 || h.Status != monitor.StatusHealthy {
		t.Errorf("after reset: breaker %+v, status %s", b, h.Status)
	}
}

func TestSelect_HalfOpenTrial(t *testing.T) {
	f := newFixture(t, []registry.Provider{
		{ID: "solo", RateLimit: 100, IsActive: true},
	}, []monitor.Option{monitor.WithHalfOpenAfter(30 * time.Second)})

	for i := 0; i < 5; i++ {
		f.engine.RecordRequestResult(Outcome{ProviderID: "solo", ResponseTime: 50})
	}
	if _, err := f.engine.Select("email", 10, nil); !errors.Is(err, ErrNoProvidersAvailable) {
		t.Fatalf("Select() on open circuit error = %v", err)
	}

	f.clock.Advance(30 * time.Second)
	d, err := f.engine.Select("email", 10, nil)
	if err != nil {
		t.Fatalf("trial Select() error = %v", err)
	}
	if _, err := f.engine.Select("email", 10, nil); !errors.Is(err, ErrNoProvidersAvailable) {
		t.Fatalf("second Select() during trial error = %v", err)
	}

	f.engine.RecordRequestResult(Outcome{RequestID: d.RequestID, ProviderID: "solo", Success: true, ResponseTime: 50})
	if b, _ := f.engine.GetCircuitBreaker("solo"); b.State != monitor.CircuitClosed {
		t.Errorf("State after successful trial = %s, want closed", b.State)
	}
	if _, err := f.engine.Select("email", 10, nil); err != nil {
		t.Errorf("Select() after recovery error = %v", err)
	}
}

func TestSelect_HalfOpenTrialWithoutOutcome(t *testing.T) {
	f := newFixture(t, []registry.Provider{
		{ID: "solo", RateLimit: 100, IsActive: true},
	}, []monitor.Option{monitor.WithHalfOpenAfter(30 * time.Second)})

	for i := 0; i < 5; i++ {
		f.engine.RecordRequestResult(Outcome{ProviderID: "solo", ResponseTime: 50})
	}
	f.clock.Advance(30 * time.Second)
	if _, err := f.engine.Select("email", 10, nil); err != nil {
		t.Fatalf("trial Select() error = %v", err)
	}

	// The trial's outcome is never reported.
	f.clock.Advance(24 * time.Hour)
	d, err := f.engine.Select("email", 10, nil)
	if err != nil {
		t.Fatalf("Select() after abandoned trial error = %v", err)
	}
	if d.SelectedProvider != "solo" {
		t.Errorf("SelectedProvider = %s, want solo", d.SelectedProvider)
	}
	if b, _ := f.engine.GetCircuitBreaker("solo"); b.State != monitor.CircuitHalfOpen {
		t.Errorf("State = %s, want half_open", b.State)
	}
}

// ============================================================================
// Outcome Tests
// ============================================================================

func TestRecordRequestResult_CorrelatesByRequestID(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))

	first, _ := f.engine.Select("product_description", 1000, nil)
	second, _ := f.engine.Select("product_description", 1000, nil)
	if first.SelectedProvider != second.SelectedProvider {
		t.Fatalf("expected the same provider twice, got %s and %s", first.SelectedProvider, second.SelectedProvider)
	}
	if first.RequestID == second.RequestID {
		t.Fatal("request IDs must be unique")
	}

	err := f.engine.RecordRequestResult(Outcome{
		RequestID:    first.RequestID,
		ProviderID:   first.SelectedProvider,
		Success:      true,
		ResponseTime: 300,
		Cost:         0.0015,
	})
	if err != nil {
		t.Fatalf("RecordRequestResult() error = %v", err)
	}

	events := f.engine.UsageEvents()
	if !events[0].Completed || events[0].Cost != 0.0015 || !events[0].Success {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Completed || !approx(events[1].Cost, 0.002) {
		t.Errorf("second event should keep its estimate: %+v", events[1])
	}

	// Without a request ID the most recent event of the provider is patched.
	f.engine.RecordRequestResult(Outcome{ProviderID: second.SelectedProvider, ResponseTime: 900, Cost: 0.001})
	events = f.engine.UsageEvents()
	if !events[1].Completed || events[1].Success || events[1].Cost != 0.001 {
		t.Errorf("second event = %+v", events[1])
	}

	stats := f.engine.Stats()
	if stats.OutcomesReported != 2 || stats.OutcomesUnmatched != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRecordRequestResult_Errors(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil)

	tests := []struct {
		name string
		o    Outcome
		want error
	}{
		{"unknown provider", Outcome{ProviderID: "nope"}, ErrNotFound},
		{"missing provider", Outcome{}, ErrInvalidRequest},
		{"negative response time", Outcome{ProviderID: "gpt-4", ResponseTime: -1}, ErrInvalidRequest},
		{"negative cost", Outcome{ProviderID: "gpt-4", Cost: -0.1}, ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.engine.RecordRequestResult(tt.o); !errors.Is(err, tt.want) {
				t.Errorf("RecordRequestResult() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRecordRequestResult_EMADamping(t *testing.T) {
	f := newFixture(t, []registry.Provider{{ID: "p", RateLimit: 10, IsActive: true}}, nil)

	f.engine.RecordRequestResult(Outcome{ProviderID: "p", Success: true, ResponseTime: 100, Cost: 0.001})
	f.engine.RecordRequestResult(Outcome{ProviderID: "p", Success: true, ResponseTime: 20, Cost: 0.0005})

	rec, ok := f.engine.GetPerformance("p")
	if !ok {
		t.Fatal("GetPerformance(p) not found")
	}
	if rec.AverageResponseTime <= 20 || rec.AverageResponseTime >= 100 {
		t.Errorf("AverageResponseTime = %v, want strictly between 20 and 100", rec.AverageResponseTime)
	}
	if rec.TotalRequests != 2 || rec.SuccessfulRequests != 2 {
		t.Errorf("record = %+v", rec)
	}
}

func TestRecordRequestResult_UnmatchedAfterEviction(t *testing.T) {
	f := newFixture(t, []registry.Provider{{ID: "p", RateLimit: 100, IsActive: true}}, nil, WithUsageCapacity(2))

	first, _ := f.engine.Select("email", 10, nil)
	f.engine.Select("email", 10, nil)
	f.engine.Select("email", 10, nil)

	if err := f.engine.RecordRequestResult(Outcome{RequestID: first.RequestID, ProviderID: "p", Success: true}); err != nil {
		t.Fatalf("RecordRequestResult() error = %v", err)
	}
	if got := f.engine.Stats().OutcomesUnmatched; got != 1 {
		t.Errorf("OutcomesUnmatched = %d, want 1", got)
	}
	// Health is still updated.
	if rec, _ := f.engine.GetPerformance("p"); rec.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", rec.TotalRequests)
	}
}

// ============================================================================
// Usage Log Tests
// ============================================================================

func TestUsageLog_CappedAtCapacity(t *testing.T) {
	f := newFixture(t, []registry.Provider{{ID: "p", RateLimit: 5000, IsActive: true}}, nil)

	var ids []string
	for i := 0; i < 1005; i++ {
		d, err := f.engine.Select("email", 1, nil)
		if err != nil {
			t.Fatalf("Select() %d error = %v", i, err)
		}
		ids = append(ids, d.RequestID)
	}

	events := f.engine.UsageEvents()
	if len(events) != usage.DefaultCapacity {
		t.Fatalf("len(events) = %d, want %d", len(events), usage.DefaultCapacity)
	}
	if events[0].RequestID != ids[5] || events[len(events)-1].RequestID != ids[1004] {
		t.Error("events should be the most recent, oldest first")
	}
}

func TestRequestID_FormatAndUniqueness(t *testing.T) {
	pattern := regexp.MustCompile(`^req_\d+_[0-9a-f]{9}$`)
	seen := make(map[string]bool)
	now := time.Now()

	for i := 0; i < 1000; i++ {
		id := NewRequestID(now)
		if !pattern.MatchString(id) {
			t.Fatalf("NewRequestID() = %q does not match %s", id, pattern)
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

// ============================================================================
// Analytics Tests
// ============================================================================

func TestGetCostOptimization(t *testing.T) {
	tests := []struct {
		name           string
		actualCost     float64
		wantEfficiency float64
		wantRecommend  bool
	}{
		// 1000 tokens at the declared 0.000002 per token.
		{"declared rate is flagged", 0.002, 0, true},
		{"tenth of declared rate", 0.0002, 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))

			d, err := f.engine.Select("product_description", 1000, nil)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			f.engine.RecordRequestResult(Outcome{
				RequestID:  d.RequestID,
				ProviderID: d.SelectedProvider,
				Success:    true,
				Cost:       tt.actualCost,
			})

			report := f.engine.GetCostOptimization()
			if len(report.Providers) != 1 {
				t.Fatalf("Providers = %+v", report.Providers)
			}
			pc := report.Providers[0]
			if pc.ProviderID != "gemini-pro" || pc.Requests != 1 || pc.TotalTokens != 1000 {
				t.Errorf("provider cost = %+v", pc)
			}
			if !approx(pc.Efficiency, tt.wantEfficiency) {
				t.Errorf("Efficiency = %v, want %v", pc.Efficiency, tt.wantEfficiency)
			}
			if got := len(report.Recommendations) == 1; got != tt.wantRecommend {
				t.Fatalf("recommendations = %+v", report.Recommendations)
			}
			if tt.wantRecommend && !approx(report.PotentialSavings, tt.actualCost*0.2) {
				t.Errorf("PotentialSavings = %v, want %v", report.PotentialSavings, tt.actualCost*0.2)
			}
			if report.CurrentStrategy != StrategyCostFirst {
				t.Errorf("CurrentStrategy = %s", report.CurrentStrategy)
			}
		})
	}
}

func TestGetUsageAnalytics(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))

	first, _ := f.engine.Select("product_description", 1000, nil)
	f.engine.Select("product_description", 500, nil)
	f.engine.Select("email", 250, nil)
	f.engine.RecordRequestResult(Outcome{RequestID: first.RequestID, ProviderID: first.SelectedProvider, Success: true, Cost: 0.002})

	a := f.engine.GetUsageAnalytics()
	if a.TotalRequests != 3 || a.Completed != 1 || a.Successful != 1 || a.TotalTokens != 1750 {
		t.Errorf("totals = %+v", a)
	}
	if a.SuccessRate != 100 {
		t.Errorf("SuccessRate = %v, want 100", a.SuccessRate)
	}
	if a.ByContentType["product_description"] != 2 || a.ByContentType["email"] != 1 {
		t.Errorf("ByContentType = %v", a.ByContentType)
	}
	gemini := a.ByProvider["gemini-pro"]
	if gemini.Requests != 3 || gemini.TokensLastMinute != 1750 {
		t.Errorf("gemini usage = %+v", gemini)
	}
	if a.WindowSize != 3 || a.WindowCapacity != usage.DefaultCapacity || a.Strategy != StrategyCostFirst {
		t.Errorf("window/strategy = %d/%d/%s", a.WindowSize, a.WindowCapacity, a.Strategy)
	}

	f.clock.Advance(2 * time.Minute)
	if got := f.engine.GetUsageAnalytics().ByProvider["gemini-pro"].TokensLastMinute; got != 0 {
		t.Errorf("TokensLastMinute after two minutes = %d, want 0", got)
	}
}

// ============================================================================
// Configuration Tests
// ============================================================================

func TestSetOptimizationStrategy(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil)

	if got := f.engine.GetOptimizationStrategy(); got != StrategyBalanced {
		t.Errorf("default strategy = %s, want balanced", got)
	}
	if err := f.engine.SetOptimizationStrategy(StrategyPerformanceFirst); err != nil {
		t.Fatalf("SetOptimizationStrategy() error = %v", err)
	}
	if got := f.engine.GetOptimizationStrategy(); got != StrategyPerformanceFirst {
		t.Errorf("strategy = %s", got)
	}

	err := f.engine.SetOptimizationStrategy("cheapest")
	if !errors.Is(err, ErrInvalidStrategy) {
		t.Fatalf("error = %v, want ErrInvalidStrategy", err)
	}
	var ise *InvalidStrategyError
	if !errors.As(err, &ise) || ise.Strategy != "cheapest" {
		t.Errorf("error = %#v", err)
	}
	if got := f.engine.GetOptimizationStrategy(); got != StrategyPerformanceFirst {
		t.Errorf("invalid strategy must not change the active one, got %s", got)
	}
}

func TestUpdateProviderConfig(t *testing.T) {
	f := newFixture(t, defaultCatalog(), nil, WithStrategy(StrategyCostFirst))
	sub := f.engine.Subscribe(4)
	defer sub.Close()

	off := false
	p, err := f.engine.UpdateProviderConfig("gemini-pro", registry.Patch{IsActive: &off})
	if err != nil {
		t.Fatalf("UpdateProviderConfig() error = %v", err)
	}
	if p.IsActive {
		t.Error("provider still active")
	}

	select {
	case ev := <-sub.C:
		if ev.Type != monitor.EventConfigUpdate || ev.ProviderID != "gemini-pro" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no configUpdate event")
	}

	d, err := f.engine.Select("product_description", 1000, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if d.SelectedProvider == "gemini-pro" {
		t.Error("inactive provider was selected")
	}

	if _, err := f.engine.UpdateProviderConfig("nope", registry.Patch{IsActive: &off}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown provider error = %v", err)
	}
	bad := 0
	if _, err := f.engine.UpdateProviderConfig("gpt-4", registry.Patch{RateLimit: &bad}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("invalid patch error = %v", err)
	}
}

func TestResetRateLimits_UsesCurrentLimits(t *testing.T) {
	f := newFixture(t, []registry.Provider{{ID: "p", RateLimit: 1, IsActive: true}}, nil)

	f.engine.Select("email", 1, nil)
	if _, err := f.engine.Select("email", 1, nil); err == nil {
		t.Fatal("limit of 1 should be exhausted")
	}

	limit := 3
	if _, err := f.engine.UpdateProviderConfig("p", registry.Patch{RateLimit: &limit}); err != nil {
		t.Fatalf("UpdateProviderConfig() error = %v", err)
	}
	f.engine.ResetRateLimits()

	w, _ := f.engine.GetRateLimit("p")
	if w.Limit != 3 || w.CurrentUsage != 0 {
		t.Errorf("window after reset = %+v", w)
	}
}

func TestApplyConfig(t *testing.T) {
	cfg := config.Default()
	e, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	next := config.Default()
	next.Routing.Strategy = "specialized"
	next.Routing.ContentSpecialties["haiku"] = []string{"creative", "short_form"}
	next.Providers[0].Priority = 10
	next.Providers = append(next.Providers, config.ProviderConfig{ID: "late", RateLimit: 5})

	if err := e.ApplyConfig(next); err != nil {
		t.Fatalf("ApplyConfig() error = %v", err)
	}
	if e.GetOptimizationStrategy() != StrategySpecialized {
		t.Errorf("strategy = %s", e.GetOptimizationStrategy())
	}
	if tags := e.SpecialtyTable()["haiku"]; len(tags) != 2 {
		t.Errorf("haiku tags = %v", tags)
	}
	if p, _ := e.GetProvider(next.Providers[0].ID); p.Priority != 10 {
		t.Errorf("priority = %d, want 10", p.Priority)
	}
	if _, ok := e.GetProvider("late"); ok {
		t.Error("providers added by reload should be ignored")
	}

	next.Routing.Strategy = "nope"
	if err := e.ApplyConfig(next); !errors.Is(err, ErrInvalidStrategy) {
		t.Errorf("ApplyConfig() error = %v, want ErrInvalidStrategy", err)
	}
}

// ============================================================================
// Observer Tests
// ============================================================================

type recordingObserver struct {
	mu         sync.Mutex
	selections []string
	failures   int
	outcomes   int
}

func (o *recordingObserver) ObserveSelection(d *SelectionDecision, _ usage.Event, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selections = append(o.selections, d.SelectedProvider)
}

func (o *recordingObserver) ObserveSelectionFailure(string, Strategy) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func (o *recordingObserver) ObserveOutcome(Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes++
}

type recordingSink struct {
	mu     sync.Mutex
	events []usage.Event
}

func (s *recordingSink) Record(ev usage.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func TestObserverAndSink(t *testing.T) {
	obs := &recordingObserver{}
	sink := &recordingSink{}
	f := newFixture(t, []registry.Provider{{ID: "p", RateLimit: 1, IsActive: true}}, nil,
		WithObserver(obs), WithUsageSink(sink))

	d, _ := f.engine.Select("email", 10, nil)
	f.engine.Select("email", 10, nil)
	f.engine.RecordRequestResult(Outcome{RequestID: d.RequestID, ProviderID: "p", Success: true, Cost: 0.01})

	if len(obs.selections) != 1 || obs.failures != 1 || obs.outcomes != 1 {
		t.Errorf("observer = %+v", obs)
	}
	if len(sink.events) != 2 {
		t.Fatalf("sink events = %d, want 2", len(sink.events))
	}
	if sink.events[0].Completed || !sink.events[1].Completed || sink.events[1].RequestID != d.RequestID {
		t.Errorf("sink events = %+v", sink.events)
	}
}

// completingSink reports an outcome without a request ID the first time it
// sees an uncompleted event, as a concurrent caller would.
type completingSink struct {
	engine *Engine

	mu     sync.Mutex
	events []usage.Event
	fired  bool
}

func (s *completingSink) Record(ev usage.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	fire := !s.fired && !ev.Completed
	if fire {
		s.fired = true
	}
	s.mu.Unlock()

	if fire {
		s.engine.RecordRequestResult(Outcome{ProviderID: ev.ProviderID, Success: true, ResponseTime: 90, Cost: 0.004})
	}
}

func TestSelect_SinkSeesSelectionBeforeCompletion(t *testing.T) {
	sink := &completingSink{}
	f := newFixture(t, []registry.Provider{{ID: "p", RateLimit: 10, IsActive: true}}, nil, WithUsageSink(sink))
	sink.engine = f.engine

	d, err := f.engine.Select("email", 10, nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := f.engine.RecordRequestResult(Outcome{ProviderID: "p", Success: true, ResponseTime: 120, Cost: 0.003}); err != nil {
		t.Fatalf("RecordRequestResult() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("sink events = %+v, want selection then completion", sink.events)
	}
	first, second := sink.events[0], sink.events[1]
	if first.Completed || first.RequestID != d.RequestID {
		t.Errorf("first sink event = %+v, want the uncompleted selection", first)
	}
	if !second.Completed || second.RequestID != d.RequestID || second.Cost != 0.003 {
		t.Errorf("second sink event = %+v, want the completion", second)
	}
}

func ExampleEngine_Select() {
	reg, _ := registry.New([]registry.Provider{
		{ID: "fast", CostPerToken: 0.000002, RateLimit: 60, IsActive: true, Specialties: []string{"content_generation"}},
	})
	engine := New(reg, monitor.New(reg), ratelimit.NewLimiter(reg), performance.NewTracker(reg.IDs(), nil))

	d, err := engine.Select("email", 1000, nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(d.SelectedProvider, d.SelectionCriteria.Reason)
	// Output: fast performance
}
