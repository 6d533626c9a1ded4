package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ValidStrategies lists the accepted routing.strategy values.
var ValidStrategies = []string{"cost_first", "performance_first", "balanced", "specialized"}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateRouting(&cfg.Routing)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	return errs
}

func validateProviders(providers []ProviderConfig) []FieldError {
	var errs []FieldError

	if len(providers) == 0 {
		return append(errs, FieldError{
			Field:   "providers",
			Message: "at least one provider must be configured",
		})
	}

	seen := make(map[string]bool, len(providers))
	for i, p := range providers {
		prefix := fmt.Sprintf("providers[%d]", i)

		if p.ID == "" {
			errs = append(errs, FieldError{Field: prefix + ".id", Message: "provider id is required"})
		} else if seen[p.ID] {
			errs = append(errs, FieldError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate provider id %q", p.ID)})
		}
		seen[p.ID] = true

		if p.CostPerToken < 0 {
			errs = append(errs, FieldError{Field: prefix + ".cost_per_token", Message: "cost per token must be non-negative"})
		}
		if p.RateLimit <= 0 {
			errs = append(errs, FieldError{Field: prefix + ".rate_limit", Message: "rate limit must be positive"})
		}
		for j, s := range p.Specialties {
			if strings.TrimSpace(s) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.specialties[%d]", prefix, j),
					Message: "specialty must not be empty",
				})
			}
		}

		if p.HealthURL != "" {
			u, err := url.Parse(p.HealthURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".health_url",
					Message: fmt.Sprintf("invalid health URL %q: must be an http(s) URL", p.HealthURL),
				})
			}
		}
	}

	return errs
}

// IsValidStrategy reports whether s names a known optimization strategy.
func IsValidStrategy(s string) bool {
	for _, v := range ValidStrategies {
		if s == v {
			return true
		}
	}
	return false
}

func validateRouting(cfg *RoutingConfig) []FieldError {
	var errs []FieldError

	if !IsValidStrategy(cfg.Strategy) {
		errs = append(errs, FieldError{
			Field:   "routing.strategy",
			Message: fmt.Sprintf("invalid strategy %q: must be one of %s", cfg.Strategy, strings.Join(ValidStrategies, ", ")),
		})
	}

	for contentType, tags := range cfg.ContentSpecialties {
		if len(tags) == 0 {
			errs = append(errs, FieldError{
				Field:   "routing.content_specialties." + contentType,
				Message: "at least one specialty is required",
			})
		}
	}

	if cfg.ReferenceMaxCost <= 0 {
		errs = append(errs, FieldError{Field: "routing.reference_max_cost", Message: "reference max cost must be positive"})
	}
	if cfg.DefaultResponseTime < 0 {
		errs = append(errs, FieldError{Field: "routing.default_response_time", Message: "default response time must be non-negative"})
	}
	if cfg.Probe.Interval <= 0 {
		errs = append(errs, FieldError{Field: "routing.probe.interval", Message: "probe interval must be positive"})
	}
	if cfg.Probe.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "routing.probe.timeout", Message: "probe timeout must be positive"})
	}
	if cfg.CircuitBreaker.FailureThreshold <= 0 {
		errs = append(errs, FieldError{Field: "routing.circuit_breaker.failure_threshold", Message: "failure threshold must be positive"})
	}
	if cfg.CircuitBreaker.HalfOpenAfter < 0 {
		errs = append(errs, FieldError{Field: "routing.circuit_breaker.half_open_after", Message: "half-open delay must be non-negative"})
	}

	return errs
}

func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	if cfg.Window <= 0 {
		errs = append(errs, FieldError{Field: "limits.window", Message: "window must be positive"})
	}
	if cfg.BurstRatio < 0 || cfg.BurstRatio > 1 {
		errs = append(errs, FieldError{Field: "limits.burst_ratio", Message: "burst ratio must be between 0 and 1"})
	}
	if cfg.TokenWindow <= 0 {
		errs = append(errs, FieldError{Field: "limits.token_window", Message: "token window must be positive"})
	}

	return errs
}

func validateUsage(cfg *UsageConfig) []FieldError {
	var errs []FieldError

	if cfg.Capacity <= 0 {
		errs = append(errs, FieldError{Field: "usage.capacity", Message: "capacity must be positive"})
	}

	switch cfg.Backend {
	case "none", "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "usage.sqlite.path", Message: "sqlite path is required when backend is sqlite"})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "usage.sqlite.busy_timeout", Message: "busy timeout must be non-negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "usage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be one of none, memory, sqlite", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer <= 0 {
		errs = append(errs, FieldError{Field: "usage.recorder.async_buffer", Message: "async buffer must be positive"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "usage.recorder.write_timeout", Message: "write timeout must be positive"})
	}

	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "usage.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.PruneSchedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q: must be one of debug, info, warn, error", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q: must be json or text", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}
	for i := 1; i < len(cfg.Metrics.ResponseTimeBuckets); i++ {
		if cfg.Metrics.ResponseTimeBuckets[i] <= cfg.Metrics.ResponseTimeBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.response_time_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be one of always, never, ratio", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0 and 1"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: "liveness path must start with /"})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "readiness path must start with /"})
	}
	if cfg.Health.MinAvailableProviders < 0 {
		errs = append(errs, FieldError{Field: "telemetry.health.min_available_providers", Message: "must be non-negative"})
	}

	return errs
}
