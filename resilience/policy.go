package resilience

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonwraymond/fetchops/fault"
)

// PolicyConfig configures the retry decision policy.
type PolicyConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// JitterFraction is the symmetric randomization applied to each delay,
	// as a fraction of the computed delay. Set negative to disable.
	// Default: 0.2 (±20%)
	JitterFraction float64

	// NonRetryable lists failure kinds that never trigger a retry beyond
	// what the taxonomy already excludes. Permanent failures are never
	// retried regardless of this list.
	NonRetryable []fault.Kind
}

// Decision is the outcome of a retry policy consultation.
type Decision struct {
	// Retry reports whether another attempt should be made.
	Retry bool

	// Delay is how long to wait before the next attempt.
	Delay time.Duration
}

// Policy decides whether and when a failed attempt is retried. It is a pure
// decision function with no side effects.
type Policy struct {
	config PolicyConfig
}

// NewPolicy creates a retry policy, applying defaults for zero values.
func NewPolicy(config PolicyConfig) *Policy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 1 {
		config.Multiplier = 2.0
	}
	if config.JitterFraction == 0 {
		config.JitterFraction = 0.2
	}

	return &Policy{config: config}
}

// Decide returns the retry decision for the given 1-based attempt number and
// classified failure. Exhausted budgets and non-retryable kinds both produce
// Decision{Retry: false}.
func (p *Policy) Decide(attempt int, err error) Decision {
	if err == nil {
		return Decision{}
	}

	kind := fault.KindOf(err)
	for _, k := range p.config.NonRetryable {
		if kind == k {
			return Decision{}
		}
	}
	if !fault.Retryable(err) {
		return Decision{}
	}

	if attempt >= p.config.MaxAttempts {
		return Decision{}
	}

	return Decision{Retry: true, Delay: p.delay(attempt)}
}

// delay computes the backoff for the given attempt: exponential growth from
// BaseDelay, capped at MaxDelay, with symmetric jitter.
func (p *Policy) delay(attempt int) time.Duration {
	multiplier := math.Pow(p.config.Multiplier, float64(attempt-1))
	delay := time.Duration(float64(p.config.BaseDelay) * multiplier)

	if delay > p.config.MaxDelay {
		delay = p.config.MaxDelay
	}

	if p.config.JitterFraction > 0 && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		factor := 1 + p.config.JitterFraction*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * factor)
	}

	return delay
}

// Config returns the policy configuration.
func (p *Policy) Config() PolicyConfig {
	return p.config
}
