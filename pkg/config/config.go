package config

import "time"

// Config is the root configuration structure for Conduit.
// It contains all configuration sections for the HTTP API, the provider
// catalog, the routing engine, rate limits, usage tracking and telemetry.
type Config struct {
	// Server contains HTTP API server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Providers is the provider catalog seed. Order matters: providers with
	// equal priority keep the order in which they are declared here.
	Providers []ProviderConfig `yaml:"providers"`

	// Routing contains configuration for the selection engine including
	// the optimization strategy, the content specialty table, probing and
	// circuit breaker settings.
	Routing RoutingConfig `yaml:"routing"`

	// Limits contains configuration for per-provider rate limiting.
	Limits LimitsConfig `yaml:"limits"`

	// Usage contains configuration for usage event tracking and persistence.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains configuration for observability including logging,
	// metrics, distributed tracing and readiness checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the API to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8090").
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ProviderConfig describes a single upstream content-generation provider.
type ProviderConfig struct {
	// ID is the unique provider identifier (e.g., "gemini-pro").
	ID string `yaml:"id"`

	// CostPerToken is the price of a single token in USD.
	CostPerToken float64 `yaml:"cost_per_token"`

	// RateLimit is the number of requests allowed per rate limit window.
	RateLimit int `yaml:"rate_limit"`

	// Specialties are the capability tags this provider is good at
	// (e.g., "content_generation", "seo", "creative").
	Specialties []string `yaml:"specialties"`

	// Priority orders providers before scoring. Higher goes first.
	// Default: 0
	Priority int `yaml:"priority"`

	// Active controls whether the provider may be selected.
	// Default: true
	Active *bool `yaml:"active"`

	// HealthURL is an optional endpoint probed by the HTTP prober.
	// When empty, the provider is only health-checked by real outcomes.
	HealthURL string `yaml:"health_url"`
}

// IsActive reports whether the provider is enabled. Providers without an
// explicit active flag are enabled.
func (p ProviderConfig) IsActive() bool {
	return p.Active == nil || *p.Active
}

// RoutingConfig contains configuration for the selection engine.
type RoutingConfig struct {
	// Strategy is the optimization strategy used to weight scores.
	// Options: "cost_first", "performance_first", "balanced", "specialized"
	// Default: "balanced"
	Strategy string `yaml:"strategy"`

	// ContentSpecialties maps a content type to the specialty tags required
	// to serve it. Content types absent from the table require
	// "content_generation".
	ContentSpecialties map[string][]string `yaml:"content_specialties"`

	// ReferenceMaxCost is the estimated request cost (USD) that maps to a
	// cost score of zero.
	// Default: 0.01
	ReferenceMaxCost float64 `yaml:"reference_max_cost"`

	// DefaultResponseTime is reported as the estimated time for providers
	// without any recorded outcome.
	// Default: 2s
	DefaultResponseTime time.Duration `yaml:"default_response_time"`

	// Probe configures the periodic provider liveness probe loop.
	Probe ProbeConfig `yaml:"probe"`

	// CircuitBreaker configures per-provider circuit breakers.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProbeConfig configures periodic provider probing.
type ProbeConfig struct {
	// Enabled starts the probe loop with the server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Interval between probe rounds.
	// Default: 30s
	Interval time.Duration `yaml:"interval"`

	// Timeout for a single provider probe.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// CircuitBreakerConfig configures per-provider circuit breakers.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// HalfOpenAfter enables automatic recovery: an open circuit older than
	// this duration admits a single trial request. Zero keeps circuits open
	// until they are reset explicitly.
	// Default: 0 (manual reset only)
	HalfOpenAfter time.Duration `yaml:"half_open_after"`
}

// LimitsConfig contains rate limiting configuration.
type LimitsConfig struct {
	// Window is the length of a rate limit window.
	// Default: 60s
	Window time.Duration `yaml:"window"`

	// BurstRatio is the fraction of the limit tracked as burst capacity.
	// Default: 0.2
	BurstRatio float64 `yaml:"burst_ratio"`

	// TokenWindow is the span of the per-provider token throughput window.
	// Default: 60s
	TokenWindow time.Duration `yaml:"token_window"`
}

// UsageConfig contains configuration for usage event tracking.
type UsageConfig struct {
	// Capacity is the number of most recent usage events kept in memory.
	// Default: 1000
	Capacity int `yaml:"capacity"`

	// Backend is the durable usage store.
	// Options: "none", "memory", "sqlite"
	// Default: "none"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains usage retention configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains usage recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout is the timeout for a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains usage retention configuration.
type RetentionConfig struct {
	// Days is the number of days to retain usage events.
	// A negative value keeps events forever.
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains readiness check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json", "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "conduit"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem.
	// Default: "routing"
	Subsystem string `yaml:"subsystem"`

	// ResponseTimeBuckets are histogram buckets (seconds) for provider
	// response times.
	ResponseTimeBuckets []float64 `yaml:"response_time_buckets"`
}

// IsEnabled reports whether metrics are exposed. Metrics are on unless
// explicitly disabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is the sampling strategy: "always", "never", "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled with the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service.name resource attribute.
	// Default: "conduit"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the OTLP export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains readiness check configuration.
type HealthConfig struct {
	// LivenessPath is the HTTP path of the liveness probe.
	// Default: "/health/live"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the HTTP path of the readiness probe.
	// Default: "/health/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// MinAvailableProviders is the number of selectable providers required
	// for the service to report ready.
	// Default: 1
	MinAvailableProviders int `yaml:"min_available_providers"`
}
