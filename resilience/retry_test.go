package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/fetchops/fault"
)

func fastRetry(maxAttempts int) *Retry {
	policy := NewPolicy(PolicyConfig{
		MaxAttempts:    maxAttempts,
		BaseDelay:      time.Millisecond,
		JitterFraction: -1,
	})
	return NewRetry(policy, RetryConfig{})
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	r := fastRetry(3)

	attempts := 0
	val, err := r.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return "ok", nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if val != "ok" {
		t.Errorf("Execute() = %v, want ok", val)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_SuccessAfterTransientFailures(t *testing.T) {
	r := fastRetry(3)

	attempts := 0
	val, err := r.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection reset")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if val != 42 {
		t.Errorf("Execute() = %v, want 42", val)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ExhaustedAttempts(t *testing.T) {
	r := fastRetry(3)

	attempts := 0
	base := errors.New("persistent failure")
	_, err := r.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, base
	})

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	var exhausted *fault.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Execute() error = %v, want *fault.ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("ExhaustedError.Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, base) {
		t.Error("terminal error should unwrap to the last cause")
	}
}

func TestRetry_PermanentFailsImmediately(t *testing.T) {
	r := fastRetry(5)

	attempts := 0
	base := errors.New("bad request")
	_, err := r.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		return nil, fault.Permanent(base)
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, base) {
		t.Errorf("Execute() error = %v, want wrapped %v", err, base)
	}

	var exhausted *fault.ExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("permanent failure must not surface as ExhaustedError")
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		MaxAttempts:    10,
		BaseDelay:      100 * time.Millisecond,
		JitterFraction: -1,
	})
	r := NewRetry(policy, RetryConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	var delays []time.Duration

	policy := NewPolicy(PolicyConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		JitterFraction: -1,
	})
	r := NewRetry(policy, RetryConfig{
		OnRetry: func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		},
	})

	_, _ = r.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("transient")
	})

	if len(attempts) != 2 {
		t.Fatalf("OnRetry called %d times, want 2", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
	if delays[1] != 2*time.Millisecond {
		t.Errorf("second delay = %v, want 2ms", delays[1])
	}
}

func TestRetry_AttemptTimeout(t *testing.T) {
	policy := NewPolicy(PolicyConfig{
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		JitterFraction: -1,
	})
	r := NewRetry(policy, RetryConfig{AttemptTimeout: 10 * time.Millisecond})

	attempts := 0
	_, err := r.Execute(context.Background(), func(ctx context.Context) (any, error) {
		attempts++
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (timeouts are retryable)", attempts)
	}
	if !errors.Is(err, ErrAttemptTimeout) {
		t.Errorf("Execute() error = %v, want wrapped ErrAttemptTimeout", err)
	}
}

func TestRunWithTimeout_CompletesInTime(t *testing.T) {
	val, err := RunWithTimeout(context.Background(), time.Second,
		func(ctx context.Context) (any, error) {
			return "done", nil
		})

	if err != nil {
		t.Errorf("RunWithTimeout() error = %v", err)
	}
	if val != "done" {
		t.Errorf("RunWithTimeout() = %v, want done", val)
	}
}

func TestRunWithTimeout_Expires(t *testing.T) {
	_, err := RunWithTimeout(context.Background(), 10*time.Millisecond,
		func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	if fault.KindOf(err) != fault.KindTimeout {
		t.Errorf("KindOf(err) = %v, want timeout", fault.KindOf(err))
	}
}
