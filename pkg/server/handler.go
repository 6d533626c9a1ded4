package server

import (
	"log/slog"
	"net/http"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/telemetry/health"
)

// HandlerOptions collects what the API handler serves besides the engine
// routes. Nil fields are skipped.
type HandlerOptions struct {
	// Metrics serves Prometheus metrics at Telemetry.Metrics.Path.
	Metrics http.Handler

	// Health serves the liveness and readiness probes.
	Health *health.Checker

	// Version serves build information at /version.
	Version http.Handler

	// Middleware wraps the router inside recovery, request ID and logging,
	// typically tracing.Tracer.Middleware.
	Middleware func(http.Handler) http.Handler
}

// NewHandler builds the full HTTP handler: the API routes, telemetry
// endpoints and the middleware chain.
func NewHandler(api *API, cfg config.TelemetryConfig, opts HandlerOptions, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	mux := http.NewServeMux()
	api.Register(mux)

	if opts.Metrics != nil && cfg.Metrics.IsEnabled() {
		mux.Handle("GET "+cfg.Metrics.Path, opts.Metrics)
	}
	if opts.Health != nil {
		mux.Handle(cfg.Health.LivenessPath, opts.Health.LivenessHandler())
		mux.Handle(cfg.Health.ReadinessPath, opts.Health.ReadinessHandler())
	}
	if opts.Version != nil {
		mux.Handle("/version", opts.Version)
	}

	var handler http.Handler = mux
	if opts.Middleware != nil {
		handler = opts.Middleware(handler)
	}
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(logger)(handler)
	return handler
}
