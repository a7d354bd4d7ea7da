package resilience

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// LimiterConfig configures the concurrency limiter.
type LimiterConfig struct {
	// MaxConcurrent is the fixed pool size. Must be at least 1.
	MaxConcurrent int
}

// Limiter bounds how many operations run simultaneously. Waiters are admitted
// strictly in arrival order, and a slot release admits the next waiter in the
// same step. A waiter cancelled before admission leaves the queue without
// ever invoking its operation.
type Limiter struct {
	config LimiterConfig
	sem    *semaphore.Weighted

	mu        sync.Mutex
	active    int
	maxActive int
	queued    int
}

// NewLimiter creates a concurrency limiter. A pool size below 1 is a
// configuration error.
func NewLimiter(config LimiterConfig) (*Limiter, error) {
	if config.MaxConcurrent < 1 {
		return nil, fmt.Errorf("%w: max concurrent must be >= 1, got %d",
			ErrInvalidConfig, config.MaxConcurrent)
	}

	return &Limiter{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}, nil
}

// Acquire takes a slot, blocking in FIFO order until one is free or ctx is
// cancelled. On cancellation the waiter is removed with no side effects.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.queued++
	l.mu.Unlock()

	err := l.sem.Acquire(ctx, 1)

	l.mu.Lock()
	l.queued--
	if err == nil {
		l.active++
		if l.active > l.maxActive {
			l.maxActive = l.active
		}
	}
	l.mu.Unlock()

	return err
}

// Release frees a slot acquired with Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	l.sem.Release(1)
}

// Run executes the operation within a slot. Operation failures propagate to
// the caller unchanged; the slot is released on success and failure alike.
func (l *Limiter) Run(ctx context.Context, op Operation) (any, error) {
	if err := l.Acquire(ctx); err != nil {
		return nil, err
	}
	defer l.Release()

	return op(ctx)
}

// Metrics returns current limiter statistics.
func (l *Limiter) Metrics() LimiterMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LimiterMetrics{
		Active:        l.active,
		MaxActive:     l.maxActive,
		Queued:        l.queued,
		Available:     l.config.MaxConcurrent - l.active,
		MaxConcurrent: l.config.MaxConcurrent,
	}
}

// LimiterMetrics contains limiter statistics.
type LimiterMetrics struct {
	Active        int
	MaxActive     int
	Queued        int
	Available     int
	MaxConcurrent int
}
