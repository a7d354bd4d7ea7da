package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and reporting decisions.
type Kind int

const (
	// KindUnknown means the failure has not been classified.
	KindUnknown Kind = iota
	// KindTransient covers network-like failures that may self-resolve.
	KindTransient
	// KindPermanent covers validation/auth-like failures that never self-resolve.
	KindPermanent
	// KindTimeout is a transient subtype for deadline expiry.
	KindTimeout
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Classification happens once, where the raw
// operation failure is first observed; downstream code inspects only the kind.
type Error struct {
	kind Kind
	err  error
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindTransient, err: err}
}

// Permanent wraps err as a failure that must never be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindPermanent, err: err}
}

// Timeout wraps err as a deadline failure. Timeouts are retryable.
func Timeout(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindTimeout, err: err}
}

// Kind returns the classification of this error.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// KindOf resolves the classification of any error. An already classified
// *Error wins. Deadline expiry maps to KindTimeout; a cancelled caller maps
// to KindPermanent so cancellation never triggers a retry. Anything else is
// treated as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	return KindTransient
}

// Classify wraps err with its resolved kind unless it already carries one.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return &Error{kind: KindOf(err), err: err}
}

// Retryable reports whether err may trigger another attempt.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindTimeout:
		return true
	default:
		return false
	}
}

// ExhaustedError is the terminal error surfaced when the retry budget runs
// out. It records the total attempt count and unwraps to the last failure.
type ExhaustedError struct {
	// Attempts is the total number of attempts made.
	Attempts int

	// Last is the classified failure from the final attempt.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fault: %d attempts exhausted: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
