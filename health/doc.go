// Package health runs named health checks concurrently and reduces them
// into one report.
//
// Each check is registered under a unique name with its own timeout. A
// check that times out or panics becomes an unhealthy entry in the report;
// it never prevents the other checks from completing. RunAll itself cannot
// fail: partial failures are data, not errors, so callers always receive a
// complete report with exactly one entry per registered check.
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register("valkey", health.PingChecker(store.Ping))
//	agg.RegisterWithTimeout("upstream", upstreamChecker, 2*time.Second)
//
//	report := agg.RunAll(ctx)
//	if !report.Healthy() {
//	    log.Printf("degraded: %v", report.Checks)
//	}
//
// HTTP handlers for the usual probe endpoints are included:
//
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler(agg))
//	http.Handle("/health", health.DetailedHandler(agg))
package health
