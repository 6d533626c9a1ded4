package routing

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/limits/ratelimit"
	"mercator-hq/conduit/pkg/monitor"
	"mercator-hq/conduit/pkg/performance"
	"mercator-hq/conduit/pkg/registry"
)

// Build wires a registry, health monitor, rate limiter and performance
// tracker from configuration and returns an engine over them. The monitor
// probes providers over HTTP; probing is not started. Options are applied
// after the configuration and may override it.
func Build(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := registry.FromConfig(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	strategy, err := ParseStrategy(cfg.Routing.Strategy)
	if err != nil {
		return nil, err
	}

	mon := monitor.New(reg,
		monitor.WithFailureThreshold(cfg.Routing.CircuitBreaker.FailureThreshold),
		monitor.WithHalfOpenAfter(cfg.Routing.CircuitBreaker.HalfOpenAfter),
		monitor.WithProber(monitor.NewHTTPProber(&http.Client{Timeout: cfg.Routing.Probe.Timeout})),
		monitor.WithProbeTimeout(cfg.Routing.Probe.Timeout),
		monitor.WithLogger(logger),
	)
	lim := ratelimit.NewLimiter(reg,
		ratelimit.WithWindow(cfg.Limits.Window),
		ratelimit.WithBurstRatio(cfg.Limits.BurstRatio),
	)
	perf := performance.NewTracker(reg.IDs(), nil)

	base := []Option{
		WithStrategy(strategy),
		WithSpecialtyTable(cfg.Routing.ContentSpecialties),
		WithReferenceMaxCost(cfg.Routing.ReferenceMaxCost),
		WithDefaultResponseTime(cfg.Routing.DefaultResponseTime),
		WithUsageCapacity(cfg.Usage.Capacity),
		WithTokenCounter(ratelimit.NewTokenCounter(cfg.Limits.TokenWindow, nil)),
		WithLogger(logger),
	}
	return New(reg, mon, lim, perf, append(base, opts...)...), nil
}

// ApplyConfig applies the hot-reloadable parts of a new configuration: the
// strategy, the specialty table and the settings of known providers.
// Providers added to or removed from the file are ignored until restart.
func (e *Engine) ApplyConfig(cfg *config.Config) error {
	strategy, err := ParseStrategy(cfg.Routing.Strategy)
	if err != nil {
		return err
	}

	for _, pc := range cfg.Providers {
		current, ok := e.reg.Get(pc.ID)
		if !ok {
			e.logger.Warn("ignoring provider added by reload", "provider_id", pc.ID)
			continue
		}
		patch := diffProvider(current, pc)
		if patch == (registry.Patch{}) {
			continue
		}
		if _, err := e.UpdateProviderConfig(pc.ID, patch); err != nil {
			return fmt.Errorf("failed to update provider %s: %w", pc.ID, err)
		}
	}

	if err := e.SetOptimizationStrategy(strategy); err != nil {
		return err
	}
	e.SetSpecialtyTable(cfg.Routing.ContentSpecialties)
	return nil
}

// diffProvider returns the patch turning current into the configured
// provider.
func diffProvider(current registry.Provider, pc config.ProviderConfig) registry.Patch {
	var patch registry.Patch
	if active := pc.IsActive(); active != current.IsActive {
		patch.IsActive = &active
	}
	if pc.Priority != current.Priority {
		p := pc.Priority
		patch.Priority = &p
	}
	if pc.CostPerToken != current.CostPerToken {
		c := pc.CostPerToken
		patch.CostPerToken = &c
	}
	if pc.RateLimit != current.RateLimit {
		r := pc.RateLimit
		patch.RateLimit = &r
	}
	if !slices.Equal(pc.Specialties, current.Specialties) {
		s := append([]string(nil), pc.Specialties...)
		patch.Specialties = &s
	}
	return patch
}
