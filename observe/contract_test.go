package observe

// Compile-time interface contracts.
var (
	_ Logger  = (*structuredLogger)(nil)
	_ Logger  = (*noopLogger)(nil)
	_ Tracer  = (*tracerImpl)(nil)
	_ Tracer  = (*noopTracer)(nil)
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = NoopMetrics{}
)
