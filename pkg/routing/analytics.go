package routing

import (
	"fmt"
)

// efficiencyThreshold is the efficiency below which a provider gets a
// cost recommendation.
const efficiencyThreshold = 0.8

// savingsRatio is the share of a flagged provider's spend assumed
// recoverable.
const savingsRatio = 0.2

// GetCostOptimization aggregates the usage log by provider and flags
// providers whose observed cost per token strays from their declared rate.
// Providers are reported in registry order.
func (e *Engine) GetCostOptimization() CostOptimization {
	type agg struct {
		requests int
		tokens   int
		cost     float64
	}
	totals := make(map[string]*agg)
	for _, ev := range e.ring.Snapshot() {
		a, ok := totals[ev.ProviderID]
		if !ok {
			a = &agg{}
			totals[ev.ProviderID] = a
		}
		a.requests++
		a.tokens += ev.Tokens
		a.cost += ev.Cost
	}

	report := CostOptimization{
		Providers:       []ProviderCost{},
		Recommendations: []CostRecommendation{},
		CurrentStrategy: e.GetOptimizationStrategy(),
	}
	for _, p := range e.reg.List() {
		a, ok := totals[p.ID]
		if !ok {
			continue
		}
		pc := ProviderCost{
			ProviderID:  p.ID,
			Requests:    a.requests,
			TotalTokens: a.tokens,
			TotalCost:   a.cost,
			Efficiency:  1,
		}
		if a.tokens > 0 {
			pc.AvgCostPerToken = a.cost / float64(a.tokens)
		}
		if p.CostPerToken > 0 {
			pc.Efficiency = 1 - pc.AvgCostPerToken/p.CostPerToken
		}
		report.Providers = append(report.Providers, pc)

		if a.tokens == 0 || pc.Efficiency >= efficiencyThreshold {
			continue
		}
		rec := CostRecommendation{
			ProviderID:      p.ID,
			Efficiency:      pc.Efficiency,
			TotalCost:       a.cost,
			ExpectedSavings: a.cost * savingsRatio,
			Recommendation: fmt.Sprintf("provider %s runs at %.0f%% cost efficiency; shift %s traffic to cheaper providers or switch to %s",
				p.ID, pc.Efficiency*100, p.ID, StrategyCostFirst),
		}
		report.Recommendations = append(report.Recommendations, rec)
		report.PotentialSavings += rec.ExpectedSavings
	}
	return report
}

// GetUsageAnalytics summarizes the in-memory usage log.
func (e *Engine) GetUsageAnalytics() UsageAnalytics {
	events := e.ring.Snapshot()

	out := UsageAnalytics{
		ByProvider:     make(map[string]ProviderUsage),
		ByContentType:  make(map[string]int),
		Strategy:       e.GetOptimizationStrategy(),
		WindowSize:     len(events),
		WindowCapacity: e.ring.Cap(),
	}
	successes := make(map[string]int)
	for _, ev := range events {
		out.TotalRequests++
		out.TotalTokens += ev.Tokens
		out.TotalCost += ev.Cost
		out.ByContentType[ev.ContentType]++

		pu := out.ByProvider[ev.ProviderID]
		pu.Requests++
		pu.Tokens += ev.Tokens
		pu.Cost += ev.Cost
		if ev.Completed {
			out.Completed++
			pu.Completed++
			if ev.Success {
				out.Successful++
				successes[ev.ProviderID]++
			}
		}
		out.ByProvider[ev.ProviderID] = pu
	}

	for id, pu := range out.ByProvider {
		if pu.Completed > 0 {
			pu.SuccessRate = float64(successes[id]) / float64(pu.Completed) * 100
		}
		pu.TokensLastMinute = e.tokens.Sum(id)
		out.ByProvider[id] = pu
	}
	if out.Completed > 0 {
		out.SuccessRate = float64(out.Successful) / float64(out.Completed) * 100
	}
	return out
}
