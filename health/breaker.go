package health

import (
	"context"
	"fmt"

	"github.com/gmorales/steadfast/resilience"
)

// BreakerChecker reports the health of one protected upstream from its
// circuit breaker state: open is unhealthy, half-open is degraded (recovery
// probing in progress), closed is healthy.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker over the given circuit breaker.
func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

// Name returns the name of this checker.
func (c *BreakerChecker) Name() string {
	return c.name
}

// Check reports health from the breaker's current state and windowed counts.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	m := c.breaker.Metrics()
	details := map[string]any{
		"state":            m.State.String(),
		"failure_count":    m.FailureCount,
		"success_count":    m.SuccessCount,
		"window_failures":  m.WindowFailures,
		"window_successes": m.WindowSuccesses,
	}
	if !m.LastFailure.IsZero() {
		details["last_failure"] = m.LastFailure
	}

	switch m.State {
	case resilience.StateOpen:
		return Unhealthy(
			fmt.Sprintf("circuit breaker open after %d failures", m.FailureCount),
			ErrCircuitOpen,
		).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit breaker half-open, probing recovery").WithDetails(details)
	default:
		return Healthy("circuit breaker closed").WithDetails(details)
	}
}

// LimiterChecker reports the health of a rate-limited upstream: an exhausted
// window degrades the resource since new callers will be delayed.
type LimiterChecker struct {
	name    string
	limiter *resilience.RateLimiter
}

// NewLimiterChecker creates a checker over the given rate limiter.
func NewLimiterChecker(name string, limiter *resilience.RateLimiter) *LimiterChecker {
	return &LimiterChecker{name: name, limiter: limiter}
}

// Name returns the name of this checker.
func (c *LimiterChecker) Name() string {
	return c.name
}

// Check reports health from the limiter's window occupancy.
func (c *LimiterChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	m := c.limiter.Metrics()
	details := map[string]any{
		"active_requests":    m.ActiveRequests,
		"remaining_requests": m.RemainingRequests,
		"total_requests":     m.TotalRequests,
	}

	if m.RemainingRequests == 0 {
		return Degraded("rate limit window exhausted, callers are delayed").WithDetails(details)
	}
	return Healthy("rate limit quota available").WithDetails(details)
}

// RegisterResources registers breaker and limiter checkers for every
// resource currently in the registry. Breaker checks are named
// "<service>.breaker", limiter checks "<service>.ratelimit".
func RegisterResources(agg *Aggregator, reg *resilience.Registry) {
	for _, name := range reg.Names() {
		res, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		agg.Register(name+".breaker", NewBreakerChecker(name+".breaker", res.CircuitBreaker()))
		if limiter := res.RateLimiter(); limiter != nil {
			agg.Register(name+".ratelimit", NewLimiterChecker(name+".ratelimit", limiter))
		}
	}
}
