package routing

import (
	"time"
)

// Strategy names an optimization strategy. It selects the weights used to
// combine the four dimension scores.
type Strategy string

const (
	// StrategyCostFirst favors the cheapest provider.
	StrategyCostFirst Strategy = "cost_first"

	// StrategyPerformanceFirst favors fast, successful providers.
	StrategyPerformanceFirst Strategy = "performance_first"

	// StrategyBalanced weighs every dimension equally.
	StrategyBalanced Strategy = "balanced"

	// StrategySpecialized favors providers declaring the content type's
	// specialties.
	StrategySpecialized Strategy = "specialized"
)

// Selection reasons reported in SelectionCriteria.Reason.
const (
	ReasonCost           = "cost"
	ReasonPerformance    = "performance"
	ReasonSpecialization = "specialization"
	ReasonAvailability   = "availability"
	ReasonLoadBalance    = "load_balance"
)

// Requirements constrain a selection. The zero value imposes nothing.
type Requirements struct {
	// MaxCost disqualifies providers whose estimated cost exceeds it by
	// forcing their cost score to zero. Zero means no ceiling.
	MaxCost float64 `json:"maxCost,omitempty"`

	// Specialties overrides the content type's specialty tags.
	Specialties []string `json:"specialties,omitempty"`

	// ExcludeProviders removes providers from the candidate set.
	ExcludeProviders []string `json:"excludeProviders,omitempty"`
}

// SelectionCriteria holds the dimension scores of a provider, each in
// [0,100], and their weighted combination.
type SelectionCriteria struct {
	CostScore           float64 `json:"costScore"`
	PerformanceScore    float64 `json:"performanceScore"`
	ReliabilityScore    float64 `json:"reliabilityScore"`
	SpecializationScore float64 `json:"specializationScore"`
	OverallScore        float64 `json:"overallScore"`
	Reason              string  `json:"reason"`
}

// Alternative is a runner-up provider of a selection.
type Alternative struct {
	ProviderID    string  `json:"providerId"`
	EstimatedCost float64 `json:"estimatedCost"`
	EstimatedTime float64 `json:"estimatedTime"` // milliseconds
	Reliability   float64 `json:"reliability"`
	OverallScore  float64 `json:"overallScore"`
}

// SelectionDecision is the result of a successful selection.
type SelectionDecision struct {
	RequestID         string            `json:"requestId"`
	SelectedProvider  string            `json:"selectedProvider"`
	Confidence        float64           `json:"confidence"` // 0..1
	EstimatedCost     float64           `json:"estimatedCost"`
	EstimatedTime     float64           `json:"estimatedTime"` // milliseconds
	FallbackProviders []Alternative     `json:"fallbackProviders"`
	SelectionCriteria SelectionCriteria `json:"selectionCriteria"`
	Strategy          Strategy          `json:"strategy"`
	Timestamp         time.Time         `json:"timestamp"`
}

// Outcome is the result of a real provider call, reported after the
// caller performed it. RequestID correlates the outcome with its selection;
// when empty, the provider's most recent selection is patched.
type Outcome struct {
	RequestID    string  `json:"requestId,omitempty"`
	ProviderID   string  `json:"providerId"`
	Success      bool    `json:"success"`
	ResponseTime float64 `json:"responseTime"` // milliseconds
	Cost         float64 `json:"cost"`
}

// CostRecommendation flags a provider whose observed cost per token runs
// well above its declared rate.
type CostRecommendation struct {
	ProviderID      string  `json:"providerId"`
	Efficiency      float64 `json:"efficiency"`
	TotalCost       float64 `json:"totalCost"`
	ExpectedSavings float64 `json:"expectedSavings"`
	Recommendation  string  `json:"recommendation"`
}

// ProviderCost aggregates the usage log of one provider.
type ProviderCost struct {
	ProviderID      string  `json:"providerId"`
	Requests        int     `json:"requests"`
	TotalTokens     int     `json:"totalTokens"`
	TotalCost       float64 `json:"totalCost"`
	AvgCostPerToken float64 `json:"avgCostPerToken"`
	Efficiency      float64 `json:"efficiency"`
}

// CostOptimization is the cost report derived from the usage log.
type CostOptimization struct {
	Providers        []ProviderCost       `json:"providers"`
	Recommendations  []CostRecommendation `json:"recommendations"`
	PotentialSavings float64              `json:"potentialSavings"`
	CurrentStrategy  Strategy             `json:"currentStrategy"`
}

// ProviderUsage is the per-provider part of UsageAnalytics.
type ProviderUsage struct {
	Requests         int     `json:"requests"`
	Completed        int     `json:"completed"`
	Tokens           int     `json:"tokens"`
	Cost             float64 `json:"cost"`
	SuccessRate      float64 `json:"successRate"` // percent of completed
	TokensLastMinute int64   `json:"tokensLastMinute"`
}

// UsageAnalytics summarizes the usage log.
type UsageAnalytics struct {
	TotalRequests  int                      `json:"totalRequests"`
	Completed      int                      `json:"completed"`
	Successful     int                      `json:"successful"`
	TotalTokens    int                      `json:"totalTokens"`
	TotalCost      float64                  `json:"totalCost"`
	SuccessRate    float64                  `json:"successRate"` // percent of completed
	ByProvider     map[string]ProviderUsage `json:"byProvider"`
	ByContentType  map[string]int           `json:"byContentType"`
	Strategy       Strategy                 `json:"strategy"`
	WindowSize     int                      `json:"windowSize"`
	WindowCapacity int                      `json:"windowCapacity"`
}
