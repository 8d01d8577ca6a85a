package resilience

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	// Rejections carry structured detail via *CircuitOpenError.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetriesExhausted is returned when all retry attempts are exhausted
	// without any recorded error. Callers should normally see the last
	// operation error instead.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")

	// ErrTimeout is returned when an operation times out.
	// Timeouts carry the configured deadline via *TimeoutError.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrNilOperation is returned when a nil operation is passed to an executor.
	ErrNilOperation = errors.New("resilience: operation is nil")
)

// CircuitOpenError is the fast rejection raised by an open circuit breaker.
// It is a distinct type, never the wrapped operation's error, and carries
// enough detail for callers to build a retry-after response.
type CircuitOpenError struct {
	// Name is the breaker's configured name (the protected resource).
	Name string

	// Failures is the failure count at the time of rejection.
	Failures int

	// Threshold is the configured failure threshold.
	Threshold int

	// RetryAfter is the remaining wait until the breaker admits a probe call.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker %q is open (%d/%d failures), retry in %ds",
		e.Name, e.Failures, e.Threshold, e.RetryAfterSeconds())
}

// Unwrap makes errors.Is(err, ErrCircuitOpen) work on rejections.
func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// RetryAfterSeconds returns the remaining wait rounded up to whole seconds,
// suitable for a Retry-After header.
func (e *CircuitOpenError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// TimeoutError reports that an operation exceeded its deadline.
type TimeoutError struct {
	// Timeout is the configured deadline that elapsed.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("resilience: operation timed out after %s", e.Timeout)
}

// Unwrap makes errors.Is(err, ErrTimeout) work on timeouts.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }
