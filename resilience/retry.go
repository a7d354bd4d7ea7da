package resilience

import (
	"context"
	"time"

	"github.com/jonwraymond/fetchops/clock"
	"github.com/jonwraymond/fetchops/fault"
)

// Operation is one unit of outbound work. It must be idempotent-safe to
// retry, or the failure it returns must be classified permanent.
type Operation func(ctx context.Context) (any, error)

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// Clock supplies the delay timers. Default: clock.System()
	Clock clock.Clock

	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration

	// OnRetry is called before each retry attempt with the attempt number
	// that failed, the classified failure, and the computed delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry drives an Operation through a Policy, sleeping between attempts.
type Retry struct {
	policy *Policy
	config RetryConfig
}

// NewRetry creates a retry executor for the given policy.
func NewRetry(policy *Policy, config RetryConfig) *Retry {
	if policy == nil {
		policy = NewPolicy(PolicyConfig{})
	}
	if config.Clock == nil {
		config.Clock = clock.System()
	}

	return &Retry{policy: policy, config: config}
}

// Execute runs the operation under the retry policy. Failures are classified
// exactly once, here, as each attempt settles. A permanent failure is
// returned as-is; a transient failure that outlives the attempt budget is
// wrapped in *fault.ExhaustedError with the total attempt count.
func (r *Retry) Execute(ctx context.Context, op Operation) (any, error) {
	var lastErr error

	for attempt := 1; ; attempt++ {
		val, err := r.attempt(ctx, op)
		if err == nil {
			return val, nil
		}

		lastErr = fault.Classify(err)

		decision := r.policy.Decide(attempt, lastErr)
		if !decision.Retry {
			if fault.Retryable(lastErr) {
				return nil, &fault.ExhaustedError{Attempts: attempt, Last: lastErr}
			}
			return nil, lastErr
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, decision.Delay)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.config.Clock.After(decision.Delay):
		}
	}
}

// attempt runs one invocation, bounded by AttemptTimeout when configured.
func (r *Retry) attempt(ctx context.Context, op Operation) (any, error) {
	if r.config.AttemptTimeout <= 0 {
		return op(ctx)
	}
	return runWithTimeout(ctx, r.config.AttemptTimeout, op)
}

// Policy returns the decision policy driving this executor.
func (r *Retry) Policy() *Policy {
	return r.policy
}
