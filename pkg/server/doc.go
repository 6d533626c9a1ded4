// Package server exposes the routing engine over an HTTP JSON API.
//
// # Routes
//
//	POST  /v1/select                        select a provider
//	POST  /v1/results                       report a call outcome
//	GET   /v1/health[/{id}]                 provider health
//	GET   /v1/circuit-breakers/{id}         circuit breaker state
//	POST  /v1/circuit-breakers/{id}/reset   close a circuit
//	GET   /v1/providers[/{id}]              provider catalog
//	PATCH /v1/providers/{id}                patch a provider's configuration
//	GET   /v1/performance[/{id}]            performance records
//	GET   /v1/rate-limits[/{id}]            rate-limit windows
//	POST  /v1/rate-limits/reset             reset every window
//	GET   /v1/cost-optimization             cost report
//	GET   /v1/analytics                     usage analytics
//	GET   /v1/usage                         usage events
//	GET   /v1/stats                         routing counters
//	GET   /v1/strategy, PUT /v1/strategy    optimization strategy
//
// The metrics and health probe paths come from the telemetry configuration.
//
// # Errors
//
// Errors are returned as {"error": {"message": ..., "type": ...}}. Unknown
// providers answer 404, a selection without candidates answers 503 and
// malformed input answers 400.
//
// # Usage
//
//	api := server.NewAPI(engine, store, logger)
//	handler := server.NewHandler(api, cfg.Telemetry, server.HandlerOptions{
//		Metrics:    collector.Handler(),
//		Health:     checker,
//		Middleware: tracer.Middleware,
//	}, logger)
//
//	srv := server.New(cfg.Server, handler, logger)
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
package server
