package config

import "time"

// Default configuration values.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20 // 1MB

	// Routing defaults
	DefaultStrategy          = "balanced"
	DefaultReferenceMaxCost  = 0.01
	DefaultResponseTime      = 2 * time.Second
	DefaultProbeInterval     = 30 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultFailureThreshold  = 5
	DefaultFallbackSpecialty = "content_generation"

	// Limits defaults
	DefaultLimitWindow = 60 * time.Second
	DefaultBurstRatio  = 0.2
	DefaultTokenWindow = 60 * time.Second

	// Usage defaults
	DefaultUsageCapacity     = 1000
	DefaultUsageBackend      = "none"
	DefaultUsageSQLitePath   = "data/usage.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultRecorderBuffer    = 1000
	DefaultRecorderTimeout   = 5 * time.Second
	DefaultRetentionDays     = 30
	DefaultRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel          = "info"
	DefaultLoggingFormat         = "json"
	DefaultMetricsPath           = "/metrics"
	DefaultMetricsNamespace      = "conduit"
	DefaultMetricsSubsystem      = "routing"
	DefaultTracingSampler        = "ratio"
	DefaultTracingSampleRatio    = 1.0
	DefaultTracingEndpoint       = "localhost:4317"
	DefaultTracingServiceName    = "conduit"
	DefaultTracingTimeout        = 10 * time.Second
	DefaultLivenessPath          = "/health/live"
	DefaultReadinessPath         = "/health/ready"
	DefaultHealthCheckTimeout    = 2 * time.Second
	DefaultMinAvailableProviders = 1
)

// DefaultResponseTimeBuckets are the provider response time histogram
// buckets in seconds.
var DefaultResponseTimeBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// DefaultContentSpecialties returns the built-in content type to specialty
// table. A fresh map is returned on every call.
func DefaultContentSpecialties() map[string][]string {
	return map[string][]string{
		"product_description": {"content_generation", "product_copy", "seo"},
		"blog_post":           {"content_generation", "long_form"},
		"social_media":        {"content_generation", "short_form", "creative"},
		"email":               {"content_generation", "marketing"},
		"seo_content":         {"seo", "content_generation"},
		"ad_copy":             {"creative", "marketing"},
	}
}

// DefaultProviders returns the built-in provider catalog used when the
// configuration does not declare any providers.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:           "gemini-pro",
			CostPerToken: 0.000002,
			RateLimit:    60,
			Specialties:  []string{"content_generation", "seo", "product_copy", "short_form"},
			Priority:     3,
		},
		{
			ID:           "claude-3",
			CostPerToken: 0.000015,
			RateLimit:    50,
			Specialties:  []string{"content_generation", "long_form", "creative", "marketing"},
			Priority:     2,
		},
		{
			ID:           "gpt-4",
			CostPerToken: 0.00003,
			RateLimit:    40,
			Specialties:  []string{"content_generation", "creative", "marketing", "long_form"},
			Priority:     1,
		},
	}
}

// ApplyDefaults applies default values to any configuration fields that are
// not set. It modifies the provided configuration in place.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	applyRoutingDefaults(&cfg.Routing)

	// Limits defaults
	if cfg.Limits.Window == 0 {
		cfg.Limits.Window = DefaultLimitWindow
	}
	if cfg.Limits.BurstRatio == 0 {
		cfg.Limits.BurstRatio = DefaultBurstRatio
	}
	if cfg.Limits.TokenWindow == 0 {
		cfg.Limits.TokenWindow = DefaultTokenWindow
	}

	applyUsageDefaults(&cfg.Usage)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyRoutingDefaults(r *RoutingConfig) {
	if r.Strategy == "" {
		r.Strategy = DefaultStrategy
	}
	if r.ContentSpecialties == nil {
		r.ContentSpecialties = DefaultContentSpecialties()
	}
	if r.ReferenceMaxCost == 0 {
		r.ReferenceMaxCost = DefaultReferenceMaxCost
	}
	if r.DefaultResponseTime == 0 {
		r.DefaultResponseTime = DefaultResponseTime
	}
	if r.Probe.Interval == 0 {
		r.Probe.Interval = DefaultProbeInterval
	}
	if r.Probe.Timeout == 0 {
		r.Probe.Timeout = DefaultProbeTimeout
	}
	if r.CircuitBreaker.FailureThreshold == 0 {
		r.CircuitBreaker.FailureThreshold = DefaultFailureThreshold
	}
}

func applyUsageDefaults(u *UsageConfig) {
	if u.Capacity == 0 {
		u.Capacity = DefaultUsageCapacity
	}
	if u.Backend == "" {
		u.Backend = DefaultUsageBackend
	}
	if u.SQLite.Path == "" {
		u.SQLite.Path = DefaultUsageSQLitePath
	}
	if u.SQLite.BusyTimeout == 0 {
		u.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if u.Recorder.AsyncBuffer == 0 {
		u.Recorder.AsyncBuffer = DefaultRecorderBuffer
	}
	if u.Recorder.WriteTimeout == 0 {
		u.Recorder.WriteTimeout = DefaultRecorderTimeout
	}
	if u.Retention.Days == 0 {
		u.Retention.Days = DefaultRetentionDays
	}
	if u.Retention.PruneSchedule == "" {
		u.Retention.PruneSchedule = DefaultRetentionSchedule
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.ResponseTimeBuckets) == 0 {
		t.Metrics.ResponseTimeBuckets = append([]float64(nil), DefaultResponseTimeBuckets...)
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	if t.Health.MinAvailableProviders == 0 {
		t.Health.MinAvailableProviders = DefaultMinAvailableProviders
	}
}
