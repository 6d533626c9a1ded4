package routing

import (
	"math"

	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/performance"
	"mercator-hq/conduit/pkg/registry"
)

// candidate is a provider being scored for one selection.
type candidate struct {
	provider      registry.Provider
	health        monitor.HealthRecord
	perf          performance.Record
	estimatedCost float64
	criteria      SelectionCriteria
}

// scorer computes dimension scores. It holds no state of its own.
type scorer struct {
	referenceMaxCost float64
}

// costScore maps the estimated cost onto [0,100] against the reference
// maximum. A cost above requirements.MaxCost scores zero.
func (s scorer) costScore(estimatedCost float64, req *Requirements) float64 {
	if req != nil && req.MaxCost > 0 && estimatedCost > req.MaxCost {
		return 0
	}
	if s.referenceMaxCost <= 0 {
		return 0
	}
	return math.Max(0, 100-(estimatedCost/s.referenceMaxCost)*100)
}

func performanceScore(h monitor.HealthRecord, p performance.Record) float64 {
	speed := math.Max(0, 100-h.ResponseTime/10)
	return (speed + h.SuccessRate + p.Uptime) / 3
}

func reliabilityScore(h monitor.HealthRecord, p performance.Record) float64 {
	errors := math.Max(0, 100-h.ErrorRate)
	streak := math.Max(0, 100-float64(h.ConsecutiveFailures)*10)
	return (errors + p.Uptime + streak) / 3
}

// specializationScore is the share of required tags the provider declares.
func specializationScore(p registry.Provider, required []string) float64 {
	if len(required) == 0 {
		return 0
	}
	matching := 0
	for _, tag := range required {
		if p.HasSpecialty(tag) {
			matching++
		}
	}
	return float64(matching) / float64(len(required)) * 100
}

// selectionReason names the largest of the four dimension scores. Ties
// favor cost, then performance, then specialization, then reliability.
// Reliability is reported as availability below 50 and as load balancing
// otherwise.
func selectionReason(c SelectionCriteria) string {
	best := ReasonCost
	top := c.CostScore
	if c.PerformanceScore > top {
		best, top = ReasonPerformance, c.PerformanceScore
	}
	if c.SpecializationScore > top {
		best, top = ReasonSpecialization, c.SpecializationScore
	}
	if c.ReliabilityScore <= top {
		return best
	}
	if c.ReliabilityScore < 50 {
		return ReasonAvailability
	}
	return ReasonLoadBalance
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
