package routing

import (
	"mercator-hq/conduit/pkg/config"
)

// Weights are the factors applied to the dimension scores. They sum to 1.
type Weights struct {
	Cost           float64 `json:"cost"`
	Performance    float64 `json:"performance"`
	Reliability    float64 `json:"reliability"`
	Specialization float64 `json:"specialization"`
}

var strategyWeights = map[Strategy]Weights{
	StrategyCostFirst:        {Cost: 0.50, Performance: 0.20, Reliability: 0.20, Specialization: 0.10},
	StrategyPerformanceFirst: {Cost: 0.10, Performance: 0.50, Reliability: 0.30, Specialization: 0.10},
	StrategyBalanced:         {Cost: 0.25, Performance: 0.25, Reliability: 0.25, Specialization: 0.25},
	StrategySpecialized:      {Cost: 0.20, Performance: 0.20, Reliability: 0.20, Specialization: 0.40},
}

// ParseStrategy converts a strategy name. Unknown names yield an
// *InvalidStrategyError.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(name)
	if _, ok := strategyWeights[s]; !ok {
		return "", &InvalidStrategyError{Strategy: name, Valid: config.ValidStrategies}
	}
	return s, nil
}

// WeightsFor returns the weights of a strategy.
func WeightsFor(s Strategy) (Weights, bool) {
	w, ok := strategyWeights[s]
	return w, ok
}

// Combine applies the weights to the dimension scores.
func (w Weights) Combine(c SelectionCriteria) float64 {
	return c.CostScore*w.Cost +
		c.PerformanceScore*w.Performance +
		c.ReliabilityScore*w.Reliability +
		c.SpecializationScore*w.Specialization
}
