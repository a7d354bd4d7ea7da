package orchestrator

import (
	"fmt"
	"time"

	"github.com/jonwraymond/fetchops/cache"
	"github.com/jonwraymond/fetchops/config"
	"github.com/jonwraymond/fetchops/resilience"
)

// callSettings carries the per-call overrides resolved from CallOptions.
type callSettings struct {
	request string
	ttl     time.Duration
	policy  *resilience.Policy
	noCache bool
}

// CallOption adjusts a single Execute call.
type CallOption func(*callSettings)

// WithRequestName labels the call for spans, logs, and metrics. Use a
// low-cardinality logical name; the key already identifies the instance.
func WithRequestName(name string) CallOption {
	return func(s *callSettings) { s.request = name }
}

// WithTTL overrides the cache TTL for this call. The configured MaxTTL
// still clamps the value.
func WithTTL(ttl time.Duration) CallOption {
	return func(s *callSettings) { s.ttl = ttl }
}

// WithRetryPolicy overrides the retry policy for this call.
func WithRetryPolicy(cfg resilience.PolicyConfig) CallOption {
	return func(s *callSettings) { s.policy = resilience.NewPolicy(cfg) }
}

// WithoutCache bypasses cache reads and writes for this call.
// Deduplication still applies.
func WithoutCache() CallOption {
	return func(s *callSettings) { s.noCache = true }
}

func (o *Orchestrator) resolve(opts []CallOption) callSettings {
	settings := callSettings{
		ttl: o.config.CachePolicy.DefaultTTL,
	}
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// FromConfig builds an Orchestrator from a loaded configuration,
// including the valkey-backed shared store when that backend is selected.
func FromConfig(cfg config.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Cache.Backend == "valkey" {
		store, err := cache.NewValkey(cache.ValkeyConfig{
			Address:  cfg.Cache.Valkey.Address,
			Username: cfg.Cache.Valkey.Username,
			Password: cfg.Cache.Valkey.Password,
			DB:       cfg.Cache.Valkey.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("orchestrator: valkey store: %w", err)
		}
		opts = append([]Option{WithResultStore(store, cache.JSONCodec{})}, opts...)
	}

	return New(Config{
		Policy:        cfg.PolicyConfig(),
		Limiter:       cfg.LimiterConfig(),
		CachePolicy:   cfg.CachePolicy(),
		CacheCapacity: cfg.Cache.Capacity,
	}, opts...)
}
