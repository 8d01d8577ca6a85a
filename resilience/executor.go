package resilience

import (
	"context"
	"time"
)

// Executor composes timeout, circuit breaker, and retry into one call path.
type Executor struct {
	timeout        *Timeout
	circuitBreaker *CircuitBreaker
	retry          *Retry
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithTimeout adds a timeout to the executor. Non-positive durations leave
// the operation unwrapped.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
		}
	}
}

// WithTimeoutConfig adds a timeout with custom config to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// Execute runs the operation through the configured resilience patterns.
//
// The composition order is fixed and significant:
//
//	retry( circuitBreaker( timeout( op ) ) )
//
// Retry is the outermost layer so a circuit-open rejection is itself subject
// to retry-eligibility checks. Open-circuit rejections classify as
// non-retryable, so an open circuit fails a retrying call immediately instead
// of hammering a known-down dependency.
//
// With no patterns configured the operation runs exactly once and its error
// propagates unchanged.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return ErrNilOperation
	}

	execute := op

	// Wrap with timeout (innermost)
	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	// Wrap with circuit breaker
	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	// Wrap with retry (outermost)
	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// CallOptions parameterizes one composed resilient call.
//
// Circuit breaking and retry are on by default; the Disable flags opt out.
// The rate limiter is deliberately absent: admission control gates entry
// before the composed call (see registry.Resource), it is not part of the
// resilience pipeline proper.
type CallOptions struct {
	// Timeout bounds the single attempt. <= 0 disables the timeout wrapper.
	Timeout time.Duration

	// CircuitBreaker is the breaker guarding the target resource. Required
	// unless DisableCircuitBreaker is set.
	CircuitBreaker *CircuitBreaker

	// DisableCircuitBreaker bypasses the circuit breaker for this call.
	DisableCircuitBreaker bool

	// DisableRetry runs the (breaker-wrapped) call exactly once.
	DisableRetry bool

	// Retry overrides retry behavior: attempts, delays, classification sets,
	// and the OnRetry hook. The zero value uses the defaults.
	Retry RetryConfig
}

// ExecuteWithResilience composes timeout, circuit breaker, and retry around
// one operation according to opts. This is the standard entry point for
// service wrappers protecting a single upstream call.
func ExecuteWithResilience(ctx context.Context, op func(context.Context) error, opts CallOptions) error {
	var eopts []ExecutorOption

	if opts.Timeout > 0 {
		eopts = append(eopts, WithTimeout(opts.Timeout))
	}
	if !opts.DisableCircuitBreaker && opts.CircuitBreaker != nil {
		eopts = append(eopts, WithCircuitBreaker(opts.CircuitBreaker))
	}
	if !opts.DisableRetry {
		eopts = append(eopts, WithRetry(NewRetry(opts.Retry)))
	}

	return NewExecutor(eopts...).Execute(ctx, op)
}
