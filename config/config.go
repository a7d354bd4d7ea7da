package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/fetchops/cache"
	"github.com/jonwraymond/fetchops/health"
	"github.com/jonwraymond/fetchops/resilience"
)

// Sentinel errors for configuration validation.
var (
	ErrInvalidRetry   = errors.New("config: invalid retry settings")
	ErrInvalidLimiter = errors.New("config: invalid limiter settings")
	ErrInvalidCache   = errors.New("config: invalid cache settings")
)

// Config is the full runtime configuration.
type Config struct {
	Retry     RetryConfig     `koanf:"retry"`
	Limiter   LimiterConfig   `koanf:"limiter"`
	Cache     CacheConfig     `koanf:"cache"`
	Health    HealthConfig    `koanf:"health"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// RetryConfig mirrors resilience.PolicyConfig with wire-friendly units.
type RetryConfig struct {
	MaxAttempts    int     `koanf:"max_attempts"`
	BaseDelayMs    int     `koanf:"base_delay_ms"`
	MaxDelayMs     int     `koanf:"max_delay_ms"`
	Multiplier     float64 `koanf:"multiplier"`
	JitterFraction float64 `koanf:"jitter_fraction"`
}

// LimiterConfig bounds in-flight executions.
type LimiterConfig struct {
	MaxConcurrent int `koanf:"max_concurrent"`
}

// CacheConfig configures result caching.
type CacheConfig struct {
	DefaultTTLSeconds int          `koanf:"default_ttl_seconds"`
	MaxTTLSeconds     int          `koanf:"max_ttl_seconds"`
	Capacity          int          `koanf:"capacity"`
	Backend           string       `koanf:"backend"` // memory|valkey
	Valkey            ValkeyConfig `koanf:"valkey"`
}

// ValkeyConfig holds shared-store connection settings.
type ValkeyConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// HealthConfig configures the health aggregator.
type HealthConfig struct {
	DefaultTimeoutSeconds int `koanf:"default_timeout_seconds"`
}

// TelemetryConfig configures the observability stack.
type TelemetryConfig struct {
	ServiceName      string  `koanf:"service_name"`
	TracingEnabled   bool    `koanf:"tracing_enabled"`
	TracingExporter  string  `koanf:"tracing_exporter"`
	TracingSamplePct float64 `koanf:"tracing_sample_pct"`
	MetricsEnabled   bool    `koanf:"metrics_enabled"`
	MetricsExporter  string  `koanf:"metrics_exporter"`
	LogLevel         string  `koanf:"log_level"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelayMs:    100,
			MaxDelayMs:     30_000,
			Multiplier:     2.0,
			JitterFraction: 0.2,
		},
		Limiter: LimiterConfig{
			MaxConcurrent: 10,
		},
		Cache: CacheConfig{
			DefaultTTLSeconds: 300,
			MaxTTLSeconds:     3600,
			Backend:           "memory",
		},
		Health: HealthConfig{
			DefaultTimeoutSeconds: 5,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "fetchops",
			LogLevel:    "info",
		},
	}
}

// Validate rejects configurations the orchestrator cannot run with.
func (c Config) Validate() error {
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be >= 1, got %d", ErrInvalidRetry, c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMs < 0 || c.Retry.MaxDelayMs < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidRetry)
	}
	if c.Retry.Multiplier <= 1 {
		return fmt.Errorf("%w: multiplier must be > 1, got %v", ErrInvalidRetry, c.Retry.Multiplier)
	}
	if c.Retry.JitterFraction > 1 {
		return fmt.Errorf("%w: jitter_fraction must be <= 1, got %v", ErrInvalidRetry, c.Retry.JitterFraction)
	}
	if c.Limiter.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max_concurrent must be >= 1, got %d", ErrInvalidLimiter, c.Limiter.MaxConcurrent)
	}
	if c.Cache.DefaultTTLSeconds < 0 || c.Cache.MaxTTLSeconds < 0 || c.Cache.Capacity < 0 {
		return fmt.Errorf("%w: ttl and capacity must not be negative", ErrInvalidCache)
	}
	switch c.Cache.Backend {
	case "memory", "":
	case "valkey":
		if c.Cache.Valkey.Address == "" {
			return fmt.Errorf("%w: valkey backend requires an address", ErrInvalidCache)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidCache, c.Cache.Backend)
	}
	return nil
}

// PolicyConfig converts the retry settings for the resilience package.
func (c Config) PolicyConfig() resilience.PolicyConfig {
	return resilience.PolicyConfig{
		MaxAttempts:    c.Retry.MaxAttempts,
		BaseDelay:      time.Duration(c.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(c.Retry.MaxDelayMs) * time.Millisecond,
		Multiplier:     c.Retry.Multiplier,
		JitterFraction: c.Retry.JitterFraction,
	}
}

// LimiterConfig converts the limiter settings for the resilience package.
func (c Config) LimiterConfig() resilience.LimiterConfig {
	return resilience.LimiterConfig{MaxConcurrent: c.Limiter.MaxConcurrent}
}

// CachePolicy converts the cache TTL settings.
func (c Config) CachePolicy() cache.Policy {
	return cache.Policy{
		DefaultTTL: time.Duration(c.Cache.DefaultTTLSeconds) * time.Second,
		MaxTTL:     time.Duration(c.Cache.MaxTTLSeconds) * time.Second,
	}
}

// AggregatorConfig converts the health settings.
func (c Config) AggregatorConfig() health.AggregatorConfig {
	return health.AggregatorConfig{
		DefaultTimeout: time.Duration(c.Health.DefaultTimeoutSeconds) * time.Second,
	}
}
