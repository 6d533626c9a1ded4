package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "CONDUIT_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and the
// built-in provider catalog.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CONDUIT_SECTION_FIELD (e.g., CONDUIT_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
//
// An empty path skips the file and starts from Default.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format CONDUIT_SECTION_FIELD. Values that fail
// to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	// Routing overrides
	envString("ROUTING_STRATEGY", &cfg.Routing.Strategy)
	envFloat("ROUTING_REFERENCE_MAX_COST", &cfg.Routing.ReferenceMaxCost)
	envDuration("ROUTING_DEFAULT_RESPONSE_TIME", &cfg.Routing.DefaultResponseTime)
	envBool("ROUTING_PROBE_ENABLED", &cfg.Routing.Probe.Enabled)
	envDuration("ROUTING_PROBE_INTERVAL", &cfg.Routing.Probe.Interval)
	envDuration("ROUTING_PROBE_TIMEOUT", &cfg.Routing.Probe.Timeout)
	envInt("ROUTING_CIRCUIT_BREAKER_FAILURE_THRESHOLD", &cfg.Routing.CircuitBreaker.FailureThreshold)
	envDuration("ROUTING_CIRCUIT_BREAKER_HALF_OPEN_AFTER", &cfg.Routing.CircuitBreaker.HalfOpenAfter)

	// Limits overrides
	envDuration("LIMITS_WINDOW", &cfg.Limits.Window)
	envFloat("LIMITS_BURST_RATIO", &cfg.Limits.BurstRatio)

	// Usage overrides
	envInt("USAGE_CAPACITY", &cfg.Usage.Capacity)
	envString("USAGE_BACKEND", &cfg.Usage.Backend)
	envString("USAGE_SQLITE_PATH", &cfg.Usage.SQLite.Path)
	envInt("USAGE_RECORDER_ASYNC_BUFFER", &cfg.Usage.Recorder.AsyncBuffer)
	envInt("USAGE_RETENTION_DAYS", &cfg.Usage.Retention.Days)
	envString("USAGE_RETENTION_PRUNE_SCHEDULE", &cfg.Usage.Retention.PruneSchedule)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Per-provider overrides: CONDUIT_PROVIDERS_<ID>_<FIELD>, with the id
	// upper-cased and dashes replaced by underscores.
	for i := range cfg.Providers {
		applyProviderEnvOverrides(&cfg.Providers[i])
	}
}

func applyProviderEnvOverrides(p *ProviderConfig) {
	key := "PROVIDERS_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(p.ID)) + "_"

	envFloat(key+"COST_PER_TOKEN", &p.CostPerToken)
	envInt(key+"RATE_LIMIT", &p.RateLimit)
	envInt(key+"PRIORITY", &p.Priority)
	envString(key+"HEALTH_URL", &p.HealthURL)
	if val := os.Getenv(EnvPrefix + key + "ACTIVE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			p.Active = &b
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
