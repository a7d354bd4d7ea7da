package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/fetchops/cache"
	"github.com/jonwraymond/fetchops/clock"
	"github.com/jonwraymond/fetchops/dedupe"
	"github.com/jonwraymond/fetchops/health"
	"github.com/jonwraymond/fetchops/observe"
	"github.com/jonwraymond/fetchops/resilience"
)

// ErrNilOperation indicates Execute was called without an operation.
var ErrNilOperation = errors.New("orchestrator: operation is nil")

// Config holds the orchestrator-wide defaults. Per-call options can
// override the TTL and retry policy, but never the pool size.
type Config struct {
	// Policy is the default retry policy.
	Policy resilience.PolicyConfig

	// Limiter bounds concurrent underlying operations.
	Limiter resilience.LimiterConfig

	// CachePolicy governs default and maximum TTLs. A zero DefaultTTL
	// disables caching unless a call opts in with WithTTL.
	CachePolicy cache.Policy

	// CacheCapacity bounds the in-memory cache. Zero means unbounded.
	CacheCapacity int

	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration

	// Clock supplies time for delays and expiry. Default: clock.System()
	Clock clock.Clock
}

// Orchestrator is the single entry point callers use to run outbound
// operations with deduplication, caching, bounded concurrency, and retries.
//
// Data flows: Execute -> dedupe -> cache read -> [miss or expired] ->
// limiter -> retry -> operation -> cache write.
type Orchestrator struct {
	config  Config
	clock   clock.Clock
	dedupe  *dedupe.Group
	cache   *cache.SWR
	limiter *resilience.Limiter
	policy  *resilience.Policy

	breaker *resilience.CircuitBreaker
	rate    *resilience.RateLimiter
	store   cache.Store
	codec   cache.Codec

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

// Option customizes an Orchestrator at construction.
type Option func(*Orchestrator)

// WithCircuitBreaker trips the orchestrator open after repeated failures,
// short-circuiting attempts until the upstream recovers.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *Orchestrator) { o.breaker = cb }
}

// WithRateLimiter throttles admission to the underlying operation.
func WithRateLimiter(rl *resilience.RateLimiter) Option {
	return func(o *Orchestrator) { o.rate = rl }
}

// WithResultStore adds a shared byte store (for example valkey) consulted
// on local cache misses and written through on success. The codec converts
// result values to and from the stored payloads.
func WithResultStore(store cache.Store, codec cache.Codec) Option {
	return func(o *Orchestrator) {
		o.store = store
		o.codec = codec
	}
}

// WithObserver wires telemetry from an observe.Observer.
func WithObserver(obs observe.Observer) Option {
	return func(o *Orchestrator) {
		o.logger = obs.Logger()
		o.tracer = observe.NewTracer(obs.Tracer())
		if metrics, err := observe.NewMetrics(obs.Meter()); err == nil {
			o.metrics = metrics
		}
	}
}

// WithLogger overrides the structured logger.
func WithLogger(logger observe.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an Orchestrator. A non-positive limiter pool size is a fatal
// configuration error.
func New(config Config, opts ...Option) (*Orchestrator, error) {
	if config.Clock == nil {
		config.Clock = clock.System()
	}
	if config.Limiter.MaxConcurrent == 0 {
		config.Limiter.MaxConcurrent = 10
	}

	limiter, err := resilience.NewLimiter(config.Limiter)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:  config,
		clock:   config.Clock,
		dedupe:  dedupe.New(),
		limiter: limiter,
		policy:  resilience.NewPolicy(config.Policy),
		logger:  observe.NoopLogger(),
		metrics: observe.NoopMetrics{},
		tracer:  observe.NewNoopTracer(),
		codec:   cache.JSONCodec{},
	}

	for _, opt := range opts {
		opt(o)
	}

	o.cache = cache.NewSWR(cache.SWRConfig{
		Clock:    config.Clock,
		Capacity: config.CacheCapacity,
		OnRefreshFailure: func(key string, err error) {
			o.logger.Warn(context.Background(), "background refresh failed",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()})
		},
	})

	return o, nil
}

// Execute runs the operation identified by key through the full pipeline.
//
// Concurrent calls with the same key collapse into one underlying
// execution; results are cached per the TTL policy and served stale while
// revalidating. On terminal failure the caller receives a single error:
// the permanent cause itself, or a *fault.ExhaustedError carrying the
// attempt count and last transient cause.
func (o *Orchestrator) Execute(ctx context.Context, key string, op resilience.Operation, opts ...CallOption) (any, error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	settings := o.resolve(opts)
	meta := observe.CallMeta{
		Key:         key,
		Request:     settings.request,
		ExecutionID: uuid.NewString(),
	}

	ctx, span := o.tracer.StartSpan(ctx, meta)
	start := o.clock.Now()

	val, err := o.deduped(ctx, key, meta, op, settings)

	duration := o.clock.Since(start)
	o.tracer.EndSpan(span, err)
	o.metrics.RecordExecution(ctx, meta, duration, err)

	callLogger := o.logger.WithCall(meta)
	if err != nil {
		callLogger.Error(ctx, "execution failed",
			observe.Field{Key: "duration_ms", Value: float64(duration.Milliseconds())},
			observe.Field{Key: "error", Value: err.Error()})
	} else {
		callLogger.Debug(ctx, "execution completed",
			observe.Field{Key: "duration_ms", Value: float64(duration.Milliseconds())})
	}

	return val, err
}

// deduped collapses concurrent callers for the same key around the cache
// consultation, so a burst of identical requests costs one cache lookup
// and at most one underlying fetch.
func (o *Orchestrator) deduped(ctx context.Context, key string, meta observe.CallMeta, op resilience.Operation, settings callSettings) (any, error) {
	result := o.dedupe.Do(ctx, key, func(ctx context.Context) (any, error) {
		return o.cached(ctx, key, meta, op, settings)
	})
	if result.Shared {
		o.metrics.RecordDeduplicated(ctx, meta)
	}
	return result.Val, result.Err
}

// cached consults the stale-while-revalidate cache, falling through to the
// guarded operation on a miss.
func (o *Orchestrator) cached(ctx context.Context, key string, meta observe.CallMeta, op resilience.Operation, settings callSettings) (any, error) {
	ttl := o.config.CachePolicy.EffectiveTTL(settings.ttl)
	if ttl <= 0 || settings.noCache {
		o.metrics.RecordCacheMiss(ctx, meta)
		return o.perform(ctx, key, meta, op, settings, 0)
	}

	if _, ok, fresh := o.cache.Get(key); ok {
		o.metrics.RecordCacheHit(ctx, meta, !fresh)
	} else {
		o.metrics.RecordCacheMiss(ctx, meta)
	}

	return o.cache.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return o.perform(ctx, key, meta, op, settings, ttl)
	})
}

// perform runs the operation under the limiter, rate limiter, circuit
// breaker, and retry policy, consulting the shared store first when one is
// configured.
func (o *Orchestrator) perform(ctx context.Context, key string, meta observe.CallMeta, op resilience.Operation, settings callSettings, ttl time.Duration) (any, error) {
	if o.store != nil && ttl > 0 {
		if data, ok := o.store.Get(ctx, key); ok {
			if val, err := o.codec.Decode(data); err == nil {
				o.metrics.RecordCacheHit(ctx, meta, false)
				return val, nil
			}
		}
	}

	guarded := op
	if o.breaker != nil {
		inner := guarded
		guarded = func(ctx context.Context) (any, error) {
			return o.breaker.Execute(ctx, inner)
		}
	}

	policy := o.policy
	if settings.policy != nil {
		policy = settings.policy
	}
	retry := resilience.NewRetry(policy, resilience.RetryConfig{
		Clock:          o.clock,
		AttemptTimeout: o.config.AttemptTimeout,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			o.metrics.RecordRetry(ctx, meta, attempt)
			o.logger.WithCall(meta).Debug(ctx, "retrying after failure",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay_ms", Value: float64(delay.Milliseconds())},
				observe.Field{Key: "error", Value: err.Error()})
		},
	})

	val, err := o.limiter.Run(ctx, func(ctx context.Context) (any, error) {
		if o.rate != nil {
			if waitErr := o.rate.Wait(ctx); waitErr != nil {
				return nil, waitErr
			}
		}
		return retry.Execute(ctx, guarded)
	})
	if err != nil {
		return nil, err
	}

	if o.store != nil && ttl > 0 {
		if data, encErr := o.codec.Encode(val); encErr == nil {
			if setErr := o.store.Set(ctx, key, data, ttl); setErr != nil {
				o.logger.WithCall(meta).Warn(ctx, "shared store write failed",
					observe.Field{Key: "error", Value: setErr.Error()})
			}
		}
	}

	return val, nil
}

// Invalidate drops the cached entry for key from the local cache and the
// shared store, if any.
func (o *Orchestrator) Invalidate(ctx context.Context, key string) error {
	o.cache.Delete(key)
	if o.store != nil {
		if err := o.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("orchestrator: invalidate %s: %w", key, err)
		}
	}
	return nil
}

// LimiterMetrics exposes the concurrency limiter's current statistics.
func (o *Orchestrator) LimiterMetrics() resilience.LimiterMetrics {
	return o.limiter.Metrics()
}

// CacheLen returns the number of locally cached entries.
func (o *Orchestrator) CacheLen() int {
	return o.cache.Len()
}

// Checker reports the orchestrator's own health: degraded when the
// limiter pool is exhausted, unhealthy when the circuit breaker is open.
func (o *Orchestrator) Checker() health.Checker {
	return health.CheckerFunc(func(ctx context.Context) health.Result {
		metrics := o.limiter.Metrics()
		details := map[string]any{
			"active":    metrics.Active,
			"queued":    metrics.Queued,
			"available": metrics.Available,
			"cached":    o.cache.Len(),
			"pending":   o.dedupe.Pending(),
		}

		if o.breaker != nil {
			state := o.breaker.State()
			details["circuit"] = state.String()
			if state == resilience.StateOpen {
				return health.Unhealthy("circuit breaker open", resilience.ErrCircuitOpen).
					WithDetails(details)
			}
		}
		if metrics.Available == 0 && metrics.Queued > 0 {
			return health.Degraded("concurrency pool saturated").WithDetails(details)
		}
		return health.Healthy("orchestrator running").WithDetails(details)
	})
}
