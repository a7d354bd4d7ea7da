package resilience

import (
	"context"
	"time"

	"github.com/jonwraymond/fetchops/fault"
)

type timeoutResult struct {
	val any
	err error
}

// runWithTimeout runs the operation with a deadline. Expiry is classified as
// a timeout failure, which the retry policy treats as transient.
func runWithTimeout(ctx context.Context, timeout time.Duration, op Operation) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan timeoutResult, 1)

	go func() {
		val, err := op(ctx)
		done <- timeoutResult{val: val, err: err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fault.Timeout(ErrAttemptTimeout)
		}
		return nil, ctx.Err()
	}
}

// RunWithTimeout is a convenience wrapper for bounding a single operation.
func RunWithTimeout(ctx context.Context, timeout time.Duration, op Operation) (any, error) {
	return runWithTimeout(ctx, timeout, op)
}
