package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records orchestration metrics: executions, cache traffic,
// deduplication, and retries.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one completed execution with duration and
	// error status.
	RecordExecution(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordCacheHit records a cache hit; stale marks a hit past TTL that
	// was served while revalidating.
	RecordCacheHit(ctx context.Context, meta CallMeta, stale bool)

	// RecordCacheMiss records a cache miss.
	RecordCacheMiss(ctx context.Context, meta CallMeta)

	// RecordDeduplicated records a caller that joined an in-flight call
	// instead of issuing its own.
	RecordDeduplicated(ctx context.Context, meta CallMeta)

	// RecordRetry records one retry attempt.
	RecordRetry(ctx context.Context, meta CallMeta, attempt int)
}

type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	deduped      metric.Int64Counter
	retries      metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"request.exec.total",
		metric.WithDescription("Total number of orchestrated executions"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"request.exec.errors",
		metric.WithDescription("Total number of failed executions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"request.exec.duration_ms",
		metric.WithDescription("Execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"request.cache.hits",
		metric.WithDescription("Cache hits, fresh and stale"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"request.cache.misses",
		metric.WithDescription("Cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	deduped, err := meter.Int64Counter(
		"request.dedupe.shared",
		metric.WithDescription("Callers that shared an in-flight execution"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"request.retry.attempts",
		metric.WithDescription("Retry attempts beyond the first"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		deduped:      deduped,
		retries:      retries,
	}, nil
}

func (m *metricsImpl) attrs(meta CallMeta) metric.MeasurementOption {
	kv := []attribute.KeyValue{}
	if meta.Request != "" {
		kv = append(kv, attribute.String("request.name", meta.Request))
	}
	return metric.WithAttributes(kv...)
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	opt := m.attrs(meta)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheHit(ctx context.Context, meta CallMeta, stale bool) {
	kv := []attribute.KeyValue{attribute.Bool("stale", stale)}
	if meta.Request != "" {
		kv = append(kv, attribute.String("request.name", meta.Request))
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(kv...))
}

func (m *metricsImpl) RecordCacheMiss(ctx context.Context, meta CallMeta) {
	m.cacheMisses.Add(ctx, 1, m.attrs(meta))
}

func (m *metricsImpl) RecordDeduplicated(ctx context.Context, meta CallMeta) {
	m.deduped.Add(ctx, 1, m.attrs(meta))
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta CallMeta, attempt int) {
	kv := []attribute.KeyValue{attribute.Int("attempt", attempt)}
	if meta.Request != "" {
		kv = append(kv, attribute.String("request.name", meta.Request))
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(kv...))
}

// NoopMetrics is a metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordExecution(context.Context, CallMeta, time.Duration, error) {}
func (NoopMetrics) RecordCacheHit(context.Context, CallMeta, bool)                  {}
func (NoopMetrics) RecordCacheMiss(context.Context, CallMeta)                       {}
func (NoopMetrics) RecordDeduplicated(context.Context, CallMeta)                    {}
func (NoopMetrics) RecordRetry(context.Context, CallMeta, int)                      {}

var _ Metrics = NoopMetrics{}
