// Package resilience provides the failure-handling building blocks for
// outbound request orchestration.
//
// # Components
//
//   - Policy: a pure retry decision function — exponential backoff capped at
//     MaxDelay with symmetric jitter, aware of the fault taxonomy so
//     permanent failures are never retried.
//
//   - Retry: the executor that drives an operation through a Policy,
//     classifying each failure once and sleeping on an injected clock
//     between attempts. Exhausted budgets surface *fault.ExhaustedError.
//
//   - Limiter: a fixed-size concurrency pool with strict FIFO admission.
//     Queued waiters cancelled before admission leave the queue with no
//     side effects.
//
//   - CircuitBreaker: stops sending requests to a dependency that keeps
//     failing, with open/half-open/closed states.
//
//   - RateLimiter: a token bucket bounding operations per second.
//
// # Usage
//
//	policy := resilience.NewPolicy(resilience.PolicyConfig{
//	    MaxAttempts: 3,
//	    BaseDelay:   100 * time.Millisecond,
//	    Multiplier:  2.0,
//	})
//	retry := resilience.NewRetry(policy, resilience.RetryConfig{})
//
//	limiter, err := resilience.NewLimiter(resilience.LimiterConfig{MaxConcurrent: 8})
//	if err != nil {
//	    // pool size below 1 is a configuration error
//	}
//
//	result, err := limiter.Run(ctx, func(ctx context.Context) (any, error) {
//	    return retry.Execute(ctx, callUpstream)
//	})
package resilience
