package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrInvalidConfig is returned when a component is constructed with an
	// unusable configuration.
	ErrInvalidConfig = errors.New("resilience: invalid configuration")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrAttemptTimeout is returned when a single attempt exceeds its deadline.
	ErrAttemptTimeout = errors.New("resilience: attempt timed out")
)
