package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// DefaultTimeout bounds checks registered without their own timeout.
	// Default: 5 seconds
	DefaultTimeout time.Duration
}

type registration struct {
	checker Checker
	timeout time.Duration
}

// Report is the outcome of running every registered check. It always
// contains exactly one entry per registered check, including checks that
// timed out or panicked.
type Report struct {
	// Status is the reduced overall status.
	Status Status

	// Checks maps each registered checker name to its result.
	Checks map[string]Result

	// Timestamp is when the report was produced.
	Timestamp time.Time
}

// Healthy reports whether every individual check passed. Degraded entries
// count as not healthy.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Aggregator runs a set of named health checks concurrently, each raced
// against its own timeout, and reduces them into a single Report.
type Aggregator struct {
	config AggregatorConfig

	mu     sync.RWMutex
	checks map[string]registration
	order  []string
}

// NewAggregator creates a health aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Second
	}

	return &Aggregator{
		config: config,
		checks: make(map[string]registration),
	}
}

// Register adds a checker under a unique name, bounded by the aggregator's
// default timeout. Returns ErrDuplicateChecker if the name is taken.
func (a *Aggregator) Register(name string, checker Checker) error {
	return a.RegisterWithTimeout(name, checker, 0)
}

// RegisterWithTimeout adds a checker with its own timeout. A non-positive
// timeout falls back to the aggregator's default.
func (a *Aggregator) RegisterWithTimeout(name string, checker Checker, timeout time.Duration) error {
	if name == "" {
		return fmt.Errorf("health: checker name required")
	}
	if timeout <= 0 {
		timeout = a.config.DefaultTimeout
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.checks[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}
	a.checks[name] = registration{checker: checker, timeout: timeout}
	a.order = append(a.order, name)
	return nil
}

// Unregister removes a checker. Idempotent.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.checks[name]; !ok {
		return
	}
	delete(a.checks, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// CheckerNames returns registered checker names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	reg, ok := a.checks[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}
	return runCheck(ctx, reg), nil
}

// RunAll runs every registered check concurrently and returns the reduced
// report. It never fails as a whole: a check that times out or panics
// becomes an unhealthy entry, and one check's failure never prevents the
// others from completing or being reported.
func (a *Aggregator) RunAll(ctx context.Context) Report {
	a.mu.RLock()
	regs := make(map[string]registration, len(a.checks))
	for name, reg := range a.checks {
		regs[name] = reg
	}
	a.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Result, len(regs)),
		Timestamp: time.Now(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, reg := range regs {
		wg.Add(1)
		go func(name string, reg registration) {
			defer wg.Done()
			result := runCheck(ctx, reg)
			mu.Lock()
			report.Checks[name] = result
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()

	report.Status = reduceStatus(report.Checks)
	return report
}

// Checker adapts the aggregator itself to the Checker interface, so one
// aggregator can roll up into another.
func (a *Aggregator) Checker() Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		report := a.RunAll(ctx)

		details := make(map[string]any, len(report.Checks))
		for name, result := range report.Checks {
			details[name] = result.Status.String()
		}

		message := "all checks passed"
		if report.Status != StatusHealthy {
			message = "some checks failed"
		}
		return Result{
			Status:    report.Status,
			Message:   message,
			Details:   details,
			Timestamp: report.Timestamp,
		}
	})
}

// reduceStatus folds individual results into one status. Unhealthy wins
// over degraded, degraded over healthy. An empty set is healthy.
func reduceStatus(results map[string]Result) Status {
	status := StatusHealthy
	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// runCheck races one check against its timeout and converts panics into
// unhealthy results. The checker goroutine is left to finish on its own if
// the timeout fires first; the buffered channel keeps it from leaking.
func runCheck(ctx context.Context, reg registration) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Unhealthy(
					fmt.Sprintf("check panicked: %v", r),
					ErrCheckPanicked,
				)
			}
		}()
		resultCh <- reg.checker.Check(ctx)
	}()

	select {
	case result := <-resultCh:
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		return result
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
