package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewLimiter_InvalidConfig(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewLimiter(LimiterConfig{MaxConcurrent: size})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("NewLimiter(%d) error = %v, want ErrInvalidConfig", size, err)
		}
	}
}

func TestLimiter_Bound(t *testing.T) {
	const max = 2
	const calls = 10

	l, err := NewLimiter(LimiterConfig{MaxConcurrent: max})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	var active, peak int64
	var wg sync.WaitGroup

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Run(context.Background(), func(ctx context.Context) (any, error) {
				n := atomic.AddInt64(&active, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&active, -1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt64(&peak); p > max {
		t.Errorf("peak concurrency = %d, want <= %d", p, max)
	}

	m := l.Metrics()
	if m.Active != 0 {
		t.Errorf("Active = %d, want 0 after completion", m.Active)
	}
	if m.MaxActive > max {
		t.Errorf("MaxActive = %d, want <= %d", m.MaxActive, max)
	}
}

func TestLimiter_FIFOOrder(t *testing.T) {
	l, err := NewLimiter(LimiterConfig{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	// Hold the only slot so subsequent waiters queue up.
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	const waiters = 5
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("waiter %d: Acquire() error = %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			l.Release()
		}(i)
		// Give each waiter time to enqueue before the next arrives.
		time.Sleep(10 * time.Millisecond)
	}

	l.Release()
	wg.Wait()

	for i, id := range order {
		if id != i {
			t.Fatalf("admission order = %v, want FIFO [0 1 2 3 4]", order)
		}
	}
}

func TestLimiter_CancelledWaiterLeavesQueue(t *testing.T) {
	l, err := NewLimiter(LimiterConfig{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	invoked := false
	done := make(chan error, 1)
	go func() {
		_, err := l.Run(ctx, func(ctx context.Context) (any, error) {
			invoked = true
			return nil, nil
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if invoked {
		t.Error("operation invoked despite cancellation before admission")
	}

	// The pool must still be usable after the cancelled waiter left.
	l.Release()
	val, err := l.Run(context.Background(), func(ctx context.Context) (any, error) {
		return "after", nil
	})
	if err != nil || val != "after" {
		t.Errorf("Run() after cancellation = (%v, %v), want (after, nil)", val, err)
	}
}

func TestLimiter_FailurePropagatesAndReleases(t *testing.T) {
	l, err := NewLimiter(LimiterConfig{MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	opErr := errors.New("upstream exploded")
	_, err = l.Run(context.Background(), func(ctx context.Context) (any, error) {
		return nil, opErr
	})
	if err != opErr {
		t.Errorf("Run() error = %v, want %v", err, opErr)
	}

	// Slot must have been released despite the failure.
	if m := l.Metrics(); m.Active != 0 {
		t.Errorf("Active = %d, want 0", m.Active)
	}
}
