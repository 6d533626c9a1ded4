// Package metrics exports Prometheus metrics for the routing engine.
//
// # Overview
//
// The Collector implements routing.Observer, so registering it on the engine
// with routing.WithObserver is enough to count selections, failures,
// estimated and reported costs. Health and circuit breaker gauges follow the
// monitor's event stream through Follow.
//
// # Metrics
//
//   - Selection metrics: selections by provider, strategy, reason and content type
//   - Provider metrics: health, circuit state, reported outcomes and response times
//   - Cost metrics: estimated and reported spend, routed tokens
//   - Recorder metrics: usage events written, failed and dropped
//
// All metric names are prefixed with the configured namespace and subsystem,
// "conduit_routing" by default.
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	engine, err := routing.Build(cfg, logger, routing.WithObserver(collector))
//	if err != nil {
//		return err
//	}
//	sub := engine.Subscribe(monitor.DefaultSubscriptionBuffer)
//	defer sub.Close()
//	wait := collector.Follow(ctx, sub)
//	defer wait()
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality Management
//
// Content types are supplied by callers. The collector tracks at most 100
// distinct values for the content_type label; any further value is reported
// as "other".
package metrics
