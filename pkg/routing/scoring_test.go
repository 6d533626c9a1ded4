package routing

import (
	"errors"
	"testing"

	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/performance"
	"mercator-hq/conduit/pkg/registry"
)

func TestCostScore(t *testing.T) {
	s := scorer{referenceMaxCost: 0.01}

	tests := []struct {
		name string
		cost float64
		req  *Requirements
		want float64
	}{
		{"free", 0, nil, 100},
		{"fifth of reference", 0.002, nil, 80},
		{"at reference", 0.01, nil, 0},
		{"above reference floors at zero", 0.03, nil, 0},
		{"within max cost", 0.0005, &Requirements{MaxCost: 0.001}, 95},
		{"equal to max cost", 0.001, &Requirements{MaxCost: 0.001}, 90},
		{"above max cost", 0.002, &Requirements{MaxCost: 0.001}, 0},
		{"zero max cost means no ceiling", 0.002, &Requirements{}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.costScore(tt.cost, tt.req); !approx(got, tt.want) {
				t.Errorf("costScore(%v) = %v, want %v", tt.cost, got, tt.want)
			}
		})
	}
}

func TestPerformanceAndReliabilityScores(t *testing.T) {
	h := monitor.HealthRecord{ResponseTime: 500, SuccessRate: 90, ErrorRate: 10, ConsecutiveFailures: 3}
	p := performance.Record{Uptime: 80}

	// (50 + 90 + 80) / 3
	if got := performanceScore(h, p); !approx(got, 220.0/3) {
		t.Errorf("performanceScore() = %v", got)
	}
	// (90 + 80 + 70) / 3
	if got := reliabilityScore(h, p); !approx(got, 80) {
		t.Errorf("reliabilityScore() = %v", got)
	}

	slow := monitor.HealthRecord{ResponseTime: 5000, SuccessRate: 0, ErrorRate: 100, ConsecutiveFailures: 12}
	if got := performanceScore(slow, performance.Record{}); got != 0 {
		t.Errorf("performanceScore(slow) = %v, want 0", got)
	}
	if got := reliabilityScore(slow, performance.Record{}); got != 0 {
		t.Errorf("reliabilityScore(slow) = %v, want 0", got)
	}
}

func TestSpecializationScore(t *testing.T) {
	p := registry.Provider{Specialties: []string{"content_generation", "seo"}}

	tests := []struct {
		required []string
		want     float64
	}{
		{[]string{"content_generation", "product_copy", "seo"}, 200.0 / 3},
		{[]string{"seo"}, 100},
		{[]string{"creative"}, 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := specializationScore(p, tt.required); !approx(got, tt.want) {
			t.Errorf("specializationScore(%v) = %v, want %v", tt.required, got, tt.want)
		}
	}
}

func TestSelectionReason(t *testing.T) {
	tests := []struct {
		name string
		c    SelectionCriteria
		want string
	}{
		{"cost wins ties", SelectionCriteria{CostScore: 80, PerformanceScore: 80, SpecializationScore: 80}, ReasonCost},
		{"performance beats specialization on tie", SelectionCriteria{CostScore: 50, PerformanceScore: 90, SpecializationScore: 90}, ReasonPerformance},
		{"specialization", SelectionCriteria{CostScore: 10, PerformanceScore: 20, SpecializationScore: 30}, ReasonSpecialization},
		{"reliability ties lose to cost", SelectionCriteria{CostScore: 70, ReliabilityScore: 70}, ReasonCost},
		{"reliability largest", SelectionCriteria{PerformanceScore: 40, ReliabilityScore: 90}, ReasonLoadBalance},
		{"low reliability still largest", SelectionCriteria{CostScore: 20, ReliabilityScore: 45}, ReasonAvailability},
		{"all zero favors cost", SelectionCriteria{}, ReasonCost},
		{"unreliable fallback", SelectionCriteria{ReliabilityScore: 40}, ReasonAvailability},
		{"reliable fallback", SelectionCriteria{ReliabilityScore: 60}, ReasonLoadBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectionReason(tt.c); got != tt.want {
				t.Errorf("selectionReason() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStrategyWeights(t *testing.T) {
	c := SelectionCriteria{CostScore: 100, PerformanceScore: 50, ReliabilityScore: 20, SpecializationScore: 10}

	tests := []struct {
		strategy Strategy
		want     float64
	}{
		{StrategyCostFirst, 50 + 10 + 4 + 1},
		{StrategyPerformanceFirst, 10 + 25 + 6 + 1},
		{StrategyBalanced, 45},
		{StrategySpecialized, 20 + 10 + 4 + 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			w, ok := WeightsFor(tt.strategy)
			if !ok {
				t.Fatalf("WeightsFor(%s) not found", tt.strategy)
			}
			if sum := w.Cost + w.Performance + w.Reliability + w.Specialization; !approx(sum, 1) {
				t.Errorf("weights sum to %v", sum)
			}
			if got := w.Combine(c); !approx(got, tt.want) {
				t.Errorf("Combine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"cost_first", "performance_first", "balanced", "specialized"} {
		if s, err := ParseStrategy(name); err != nil || string(s) != name {
			t.Errorf("ParseStrategy(%q) = %s, %v", name, s, err)
		}
	}
	if _, err := ParseStrategy("fastest"); !errors.Is(err, ErrInvalidStrategy) {
		t.Errorf("ParseStrategy(fastest) error = %v", err)
	}
}
