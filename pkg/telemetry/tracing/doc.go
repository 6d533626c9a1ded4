// Package tracing provides OpenTelemetry tracing for the routing service.
//
// With tracing enabled, New installs a global SDK tracer provider exporting
// spans in batches to an OTLP gRPC collector, and the W3C trace context and
// baggage propagators. Disabled tracing hands out noop tracers, so callers
// never need to check Enabled before creating spans.
//
// # Sampling Strategies
//
//   - always: sample all traces
//   - never: sample no traces
//   - ratio: sample a fraction of traces, chosen by trace ID
//
// Every sampler respects the sampling decision of a remote parent.
//
// # Usage
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	engine, err := routing.Build(cfg, logger,
//		routing.WithTracer(tracer.Tracer("conduit/routing")))
//
//	handler := tracer.Middleware(mux)
//
// The routing engine opens a "routing.select" span per selection and a
// "routing.record_result" span per reported outcome, both children of the
// HTTP server span when called from the API.
package tracing
