// Package telemetry groups the observability packages of the routing
// service.
//
//   - logging: structured logging on log/slog with a component tag
//   - metrics: Prometheus metrics fed by the routing engine and the monitor
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness probes
package telemetry
