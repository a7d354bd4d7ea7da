package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jonwraymond/fetchops/secret"
)

// Loader hydrates the runtime configuration with env > file > default
// precedence.
type Loader struct {
	envPrefix string
	files     []string
	resolver  *secret.Resolver
}

// NewLoader prepares a loader. Files are merged in order, later ones
// winning; environment variables override everything.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// WithSecrets attaches a resolver applied to store credential fields
// after merging, so config files can carry secretref: values or ${VAR}
// placeholders instead of literal passwords.
func (l *Loader) WithSecrets(r *secret.Resolver) *Loader {
	l.resolver = r
	return l
}

// Load assembles the effective configuration snapshot.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		// Double underscores mark nesting: FETCHOPS_RETRY__MAX_ATTEMPTS
		// becomes retry.max_attempts. Single underscores stay, matching
		// the snake_case keys.
		transform := func(s string) string {
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if l.resolver != nil {
		for _, field := range []*string{
			&cfg.Cache.Valkey.Address,
			&cfg.Cache.Valkey.Username,
			&cfg.Cache.Valkey.Password,
		} {
			if *field == "" {
				continue
			}
			resolved, err := l.resolver.ResolveValue(ctx, *field)
			if err != nil {
				return Config{}, fmt.Errorf("config: resolve credential: %w", err)
			}
			*field = resolved
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserFor picks a parser by file extension. YAML is the default.
func parserFor(path string) koanf.Parser {
	if filepath.Ext(path) == ".json" {
		return kjson.Parser()
	}
	return yaml.Parser()
}

// structToMap converts DefaultConfig into a map for the confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"retry": map[string]any{
			"max_attempts":    cfg.Retry.MaxAttempts,
			"base_delay_ms":   cfg.Retry.BaseDelayMs,
			"max_delay_ms":    cfg.Retry.MaxDelayMs,
			"multiplier":      cfg.Retry.Multiplier,
			"jitter_fraction": cfg.Retry.JitterFraction,
		},
		"limiter": map[string]any{
			"max_concurrent": cfg.Limiter.MaxConcurrent,
		},
		"cache": map[string]any{
			"default_ttl_seconds": cfg.Cache.DefaultTTLSeconds,
			"max_ttl_seconds":     cfg.Cache.MaxTTLSeconds,
			"capacity":            cfg.Cache.Capacity,
			"backend":             cfg.Cache.Backend,
			"valkey": map[string]any{
				"address":  cfg.Cache.Valkey.Address,
				"username": cfg.Cache.Valkey.Username,
				"password": cfg.Cache.Valkey.Password,
				"db":       cfg.Cache.Valkey.DB,
			},
		},
		"health": map[string]any{
			"default_timeout_seconds": cfg.Health.DefaultTimeoutSeconds,
		},
		"telemetry": map[string]any{
			"service_name":       cfg.Telemetry.ServiceName,
			"tracing_enabled":    cfg.Telemetry.TracingEnabled,
			"tracing_exporter":   cfg.Telemetry.TracingExporter,
			"tracing_sample_pct": cfg.Telemetry.TracingSamplePct,
			"metrics_enabled":    cfg.Telemetry.MetricsEnabled,
			"metrics_exporter":   cfg.Telemetry.MetricsExporter,
			"log_level":          cfg.Telemetry.LogLevel,
		},
	}
}
