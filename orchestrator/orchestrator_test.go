package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/fetchops/cache"
	"github.com/jonwraymond/fetchops/clock"
	"github.com/jonwraymond/fetchops/config"
	"github.com/jonwraymond/fetchops/fault"
	"github.com/jonwraymond/fetchops/health"
	"github.com/jonwraymond/fetchops/resilience"
)

func fastConfig() Config {
	return Config{
		Policy: resilience.PolicyConfig{
			MaxAttempts:    3,
			BaseDelay:      time.Millisecond,
			JitterFraction: -1,
		},
		Limiter:     resilience.LimiterConfig{MaxConcurrent: 4},
		CachePolicy: cache.Policy{DefaultTTL: time.Minute, MaxTTL: time.Hour},
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestExecute_Success(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	val, err := o.Execute(context.Background(), "user:1", func(ctx context.Context) (any, error) {
		return "alice", nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if val != "alice" {
		t.Errorf("Execute() = %v, want alice", val)
	}
}

func TestExecute_NilOperation(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	if _, err := o.Execute(context.Background(), "k", nil); !errors.Is(err, ErrNilOperation) {
		t.Errorf("Execute(nil op) error = %v, want ErrNilOperation", err)
	}
}

func TestExecute_InvalidKey(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	_, err := o.Execute(context.Background(), "", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Execute(empty key) error = %v, want ErrInvalidKey", err)
	}
}

func TestExecute_CachedResultReused(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	var calls atomic.Int32
	op := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v1", nil
	}

	for i := 0; i < 3; i++ {
		val, err := o.Execute(context.Background(), "user:1", op)
		if err != nil {
			t.Fatalf("Execute() #%d error = %v", i, err)
		}
		if val != "v1" {
			t.Errorf("Execute() #%d = %v, want v1", i, val)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("operation called %d times, want 1 (cached)", calls.Load())
	}
	if o.CacheLen() != 1 {
		t.Errorf("CacheLen() = %d, want 1", o.CacheLen())
	}
}

func TestExecute_StaleServedWhileRefreshing(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	cfg := fastConfig()
	cfg.Clock = fake
	o := newTestOrchestrator(t, cfg)

	var calls atomic.Int32
	op := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	if _, err := o.Execute(context.Background(), "user:1", op); err != nil {
		t.Fatalf("initial Execute() error = %v", err)
	}

	fake.Advance(2 * time.Minute)

	// Stale entry: the old value comes back immediately while a
	// background refresh runs.
	val, err := o.Execute(context.Background(), "user:1", op)
	if err != nil {
		t.Fatalf("stale Execute() error = %v", err)
	}
	if val != "v1" {
		t.Errorf("stale Execute() = %v, want old value v1", val)
	}

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("background refresh never ran")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestExecute_ConcurrentCallersShareOneExecution(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	var calls atomic.Int32
	gate := make(chan struct{})
	op := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-gate
		return "shared", nil
	}

	const n = 8
	results := make([]any, n)
	errs := make([]error, n)
	var started, done sync.WaitGroup
	started.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = o.Execute(context.Background(), "user:1", op, WithoutCache())
		}(i)
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond) // let callers reach the dedupe group
	close(gate)
	done.Wait()

	if calls.Load() != 1 {
		t.Errorf("operation called %d times, want 1", calls.Load())
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("caller %d = %v, want shared", i, results[i])
		}
	}
}

func TestExecute_ExhaustedRetriesSurfaceTerminalError(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	var calls atomic.Int32
	base := errors.New("upstream unavailable")
	_, err := o.Execute(context.Background(), "user:1", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, base
	})

	if calls.Load() != 3 {
		t.Errorf("operation called %d times, want 3", calls.Load())
	}

	var exhausted *fault.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Execute() error = %v, want *fault.ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, base) {
		t.Error("terminal error should unwrap to the last cause")
	}
}

func TestExecute_PermanentFailureNotRetriedNotCached(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	var calls atomic.Int32
	base := errors.New("404 not found")
	op := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, fault.Permanent(base)
	}

	if _, err := o.Execute(context.Background(), "user:404", op); !errors.Is(err, base) {
		t.Errorf("Execute() error = %v, want wrapped %v", err, base)
	}
	if calls.Load() != 1 {
		t.Errorf("operation called %d times, want 1 (permanent)", calls.Load())
	}

	// Failures never populate the cache: the next call runs the
	// operation again.
	_, _ = o.Execute(context.Background(), "user:404", op)
	if calls.Load() != 2 {
		t.Errorf("operation called %d times after retry, want 2", calls.Load())
	}
	if o.CacheLen() != 0 {
		t.Errorf("CacheLen() = %d, want 0", o.CacheLen())
	}
}

func TestExecute_BackoffSchedule(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	cfg := fastConfig()
	cfg.Clock = fake
	cfg.Policy = resilience.PolicyConfig{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: -1,
	}
	o := newTestOrchestrator(t, cfg)

	var mu sync.Mutex
	var stamps []time.Time
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.Execute(context.Background(), "user:1", func(ctx context.Context) (any, error) {
			mu.Lock()
			stamps = append(stamps, fake.Now())
			mu.Unlock()
			return nil, errors.New("transient")
		}, WithoutCache())
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-done:
		case <-deadline:
			t.Fatal("Execute never finished")
		default:
		}
		if fake.PendingTimers() > 0 {
			fake.Advance(100 * time.Millisecond)
		}
		select {
		case <-done:
			mu.Lock()
			defer mu.Unlock()
			if len(stamps) != 3 {
				t.Fatalf("attempts = %d, want 3", len(stamps))
			}
			if d := stamps[1].Sub(stamps[0]); d != 100*time.Millisecond {
				t.Errorf("first backoff = %v, want 100ms", d)
			}
			if d := stamps[2].Sub(stamps[1]); d != 200*time.Millisecond {
				t.Errorf("second backoff = %v, want 200ms", d)
			}
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func TestExecute_ConcurrencyBounded(t *testing.T) {
	cfg := fastConfig()
	cfg.Limiter = resilience.LimiterConfig{MaxConcurrent: 2}
	o := newTestOrchestrator(t, cfg)

	var active, peak atomic.Int32
	op := func(ctx context.Context) (any, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return "ok", nil
	}

	keys := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if _, err := o.Execute(context.Background(), key, op, WithoutCache()); err != nil {
				t.Errorf("Execute(%s) error = %v", key, err)
			}
		}(key)
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestExecute_PerCallRetryPolicyOverride(t *testing.T) {
	cfg := fastConfig()
	cfg.Policy = resilience.PolicyConfig{
		MaxAttempts:    1,
		BaseDelay:      time.Millisecond,
		JitterFraction: -1,
	}
	o := newTestOrchestrator(t, cfg)

	var calls atomic.Int32
	op := func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}

	val, err := o.Execute(context.Background(), "user:1", op,
		WithoutCache(),
		WithRetryPolicy(resilience.PolicyConfig{
			MaxAttempts:    5,
			BaseDelay:      time.Millisecond,
			JitterFraction: -1,
		}))

	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if val != "ok" {
		t.Errorf("Execute() = %v, want ok", val)
	}
	if calls.Load() != 3 {
		t.Errorf("operation called %d times, want 3", calls.Load())
	}
}

func TestExecute_OpenCircuitShortCircuits(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	cfg := fastConfig()
	cfg.Policy.MaxAttempts = 1
	o := newTestOrchestrator(t, cfg, WithCircuitBreaker(cb))

	var calls atomic.Int32
	failing := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}

	_, _ = o.Execute(context.Background(), "a", failing, WithoutCache())
	if cb.State() != resilience.StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	_, err := o.Execute(context.Background(), "b", failing, WithoutCache())
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 1 {
		t.Errorf("operation called %d times, want 1 (circuit blocked)", calls.Load())
	}
}

func TestExecute_SharedStoreReadThrough(t *testing.T) {
	store := cache.NewMemory(clock.System())

	first := newTestOrchestrator(t, fastConfig(), WithResultStore(store, cache.JSONCodec{}))
	second := newTestOrchestrator(t, fastConfig(), WithResultStore(store, cache.JSONCodec{}))

	if _, err := first.Execute(context.Background(), "user:1", func(ctx context.Context) (any, error) {
		return "alice", nil
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// The second instance has a cold local cache but finds the result
	// in the shared store without running the operation.
	val, err := second.Execute(context.Background(), "user:1", func(ctx context.Context) (any, error) {
		t.Error("operation ran despite shared store hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if val != "alice" {
		t.Errorf("Execute() = %v, want alice from shared store", val)
	}
}

func TestInvalidate(t *testing.T) {
	store := cache.NewMemory(clock.System())
	o := newTestOrchestrator(t, fastConfig(), WithResultStore(store, cache.JSONCodec{}))

	var calls atomic.Int32
	op := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	}

	if _, err := o.Execute(context.Background(), "user:1", op); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := o.Invalidate(context.Background(), "user:1"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if _, err := o.Execute(context.Background(), "user:1", op); err != nil {
		t.Fatalf("Execute() after invalidate error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("operation called %d times, want 2 after invalidation", calls.Load())
	}
}

func TestChecker_ReportsHealthy(t *testing.T) {
	o := newTestOrchestrator(t, fastConfig())

	result := o.Checker().Check(context.Background())
	if result.Status != health.StatusHealthy {
		t.Errorf("Check() status = %v, want healthy", result.Status)
	}
	if _, ok := result.Details["available"]; !ok {
		t.Error("Check() details missing limiter availability")
	}
}

func TestChecker_UnhealthyWhenCircuitOpen(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	cfg := fastConfig()
	cfg.Policy.MaxAttempts = 1
	o := newTestOrchestrator(t, cfg, WithCircuitBreaker(cb))

	_, _ = o.Execute(context.Background(), "a", func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}, WithoutCache())

	result := o.Checker().Check(context.Background())
	if result.Status != health.StatusUnhealthy {
		t.Errorf("Check() status = %v, want unhealthy with open circuit", result.Status)
	}
}

func TestFromConfig(t *testing.T) {
	o, err := FromConfig(config.DefaultConfig())
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}

	val, err := o.Execute(context.Background(), "user:1", func(ctx context.Context) (any, error) {
		return 7, nil
	})
	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if val != 7 {
		t.Errorf("Execute() = %v, want 7", val)
	}
}

func TestFromConfig_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Retry.MaxAttempts = 0

	if _, err := FromConfig(cfg); err == nil {
		t.Error("FromConfig() with invalid config succeeded, want error")
	}
}
