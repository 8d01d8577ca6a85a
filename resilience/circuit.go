package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/gmorales/steadfast/observe"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Event log pruning bounds, shared shape with the rate limiter: a full prune
// runs only when the stored slice has outgrown the threshold and at least half
// a monitor window has passed since the last prune.
const (
	minEventThreshold    = 100
	eventThresholdFactor = 10
)

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected resource in errors, logs, and metrics.
	Name string

	// FailureThreshold is the number of failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long to wait before attempting recovery.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of successful probe calls required to
	// close the circuit from half-open.
	// Default: 1
	HalfOpenMaxCalls int

	// MonitorWindow bounds the windowed failure/success counts in Metrics().
	// Default: 60 seconds
	MonitorWindow time.Duration

	// OnStateChange is called exactly once per actual state transition.
	OnStateChange func(from, to State, reason string)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Logger receives transition and rejection diagnostics. Best-effort only.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// CircuitBreaker implements the circuit breaker pattern for one protected
// resource. Create one instance per resource at construction time and share
// it across all calls targeting that resource.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger observe.Logger

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	lastFailure   time.Time
	halfOpenCalls int

	// Time-stamped event logs, used only for windowed metrics. Pruned lazily;
	// they may transiently contain entries older than the monitor window.
	failureEvents  []time.Time
	successEvents  []time.Time
	lastEventPrune time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	if config.MonitorWindow <= 0 {
		config.MonitorWindow = 60 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &CircuitBreaker{
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the operation through the circuit breaker.
//
// Contract: returns the operation's result on success; returns the operation's
// own error on failure (after updating counters); returns *CircuitOpenError
// when rejecting in the open state, without invoking the operation.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(ctx); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(ctx, err)
	return err
}

// State returns the current circuit state. Reading the state performs the
// open → half-open transition when the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked(context.Background())
}

// Reset returns the circuit breaker to closed with all counters zeroed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCalls = 0
	cb.lastFailure = time.Time{}
	cb.failureEvents = nil
	cb.successEvents = nil

	cb.transitionLocked(context.Background(), StateClosed, "manual reset")
}

func (cb *CircuitBreaker) beforeRequest(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentStateLocked(ctx) != StateOpen {
		return nil
	}

	remaining := cb.config.ResetTimeout - time.Since(cb.lastFailure)
	if remaining < 0 {
		remaining = 0
	}

	rejection := &CircuitOpenError{
		Name:       cb.config.Name,
		Failures:   cb.failureCount,
		Threshold:  cb.config.FailureThreshold,
		RetryAfter: remaining,
	}

	cb.logger.Debug(ctx, "circuit breaker rejected call",
		observe.Field{Key: "breaker", Value: cb.config.Name},
		observe.Field{Key: "retry_after_s", Value: rejection.RetryAfterSeconds()},
	)

	return rejection
}

func (cb *CircuitBreaker) afterRequest(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.pruneEventsLocked(now)

	if cb.config.IsFailure(err) {
		cb.failureEvents = append(cb.failureEvents, now)
		cb.lastFailure = now

		switch cb.state {
		case StateClosed:
			cb.failureCount++
			if cb.failureCount >= cb.config.FailureThreshold {
				cb.transitionLocked(ctx, StateOpen, "failure threshold reached")
			}
		case StateHalfOpen:
			// Failed during probing, go back to open for a full reset timeout.
			cb.transitionLocked(ctx, StateOpen, "probe call failed")
		case StateOpen:
			// A call admitted before the circuit opened finished late.
			// lastFailure is already refreshed above.
		}
		return
	}

	cb.successEvents = append(cb.successEvents, now)
	cb.successCount++

	switch cb.state {
	case StateClosed:
		// Decay, not hard reset: one success erodes a failure streak by one.
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	case StateHalfOpen:
		cb.halfOpenCalls++
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			cb.failureCount = 0
			cb.transitionLocked(ctx, StateClosed, "service recovered")
		}
	}
}

// currentStateLocked returns the state, performing the lazy open → half-open
// transition when the reset timeout has elapsed (transition-then-execute).
func (cb *CircuitBreaker) currentStateLocked(ctx context.Context) State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.transitionLocked(ctx, StateHalfOpen, "reset timeout elapsed")
	}
	return cb.state
}

// transitionLocked moves the breaker to the given state. Idempotent
// transitions are no-ops and do not re-fire the callback.
func (cb *CircuitBreaker) transitionLocked(ctx context.Context, to State, reason string) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.halfOpenCalls = 0

	fields := []observe.Field{
		{Key: "breaker", Value: cb.config.Name},
		{Key: "from", Value: from.String()},
		{Key: "to", Value: to.String()},
		{Key: "reason", Value: reason},
		{Key: "failures", Value: cb.failureCount},
	}
	if to == StateOpen {
		cb.logger.Warn(ctx, "circuit breaker opened", fields...)
	} else {
		cb.logger.Info(ctx, "circuit breaker state changed", fields...)
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to, reason)
	}
}

// pruneEventsLocked drops event-log entries older than the monitor window.
// Runs only when the logs have outgrown their threshold and at least half a
// monitor window has passed since the last prune, bounding amortized cost.
func (cb *CircuitBreaker) pruneEventsLocked(now time.Time) {
	threshold := cb.config.FailureThreshold * eventThresholdFactor
	if threshold < minEventThreshold {
		threshold = minEventThreshold
	}
	if len(cb.failureEvents)+len(cb.successEvents) <= threshold {
		return
	}
	if now.Sub(cb.lastEventPrune) < cb.config.MonitorWindow/2 {
		return
	}

	cutoff := now.Add(-cb.config.MonitorWindow)
	cb.failureEvents = pruneBefore(cb.failureEvents, cutoff)
	cb.successEvents = pruneBefore(cb.successEvents, cutoff)
	cb.lastEventPrune = now
}

// pruneBefore drops leading timestamps at or before the cutoff. Events are
// appended in increasing time, so only a prefix can be stale.
func pruneBefore(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0:0], events[i:]...)
}

// countSince counts timestamps strictly after the cutoff.
func countSince(events []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State        State
	FailureCount int
	SuccessCount int

	// WindowFailures and WindowSuccesses count events inside the monitor
	// window, recomputed on read so lazily-pruned logs stay accurate.
	WindowFailures  int
	WindowSuccesses int

	LastFailure time.Time
}

// Metrics returns current circuit breaker metrics. Never blocks beyond the
// breaker's mutex.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	cb.pruneEventsLocked(now)
	cutoff := now.Add(-cb.config.MonitorWindow)

	return CircuitBreakerMetrics{
		State:           cb.currentStateLocked(context.Background()),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		WindowFailures:  countSince(cb.failureEvents, cutoff),
		WindowSuccesses: countSince(cb.successEvents, cutoff),
		LastFailure:     cb.lastFailure,
	}
}
