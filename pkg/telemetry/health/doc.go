// Package health implements liveness and readiness probes.
//
// Liveness only reports that the process serves HTTP. Readiness runs the
// registered checks concurrently, each bounded by a timeout, and answers
// 503 when any fails. The service registers two checks:
//
//   - providers: at least MinAvailableProviders providers are selectable
//   - usage_store: the durable usage store answers a count query
//
// Usage:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("providers", health.ProvidersCheck(
//		cfg.Telemetry.Health.MinAvailableProviders,
//		engine.AvailableProviders,
//	))
//	mux.HandleFunc(cfg.Telemetry.Health.LivenessPath, checker.LivenessHandler())
//	mux.HandleFunc(cfg.Telemetry.Health.ReadinessPath, checker.ReadinessHandler())
package health
