// Package resilience provides resilience patterns for calling unreliable
// upstream services.
//
// The patterns protect server-side code that depends on external services
// (databases, LLM APIs) from cascading failure, and compose into a single
// guarded call path.
//
// # Patterns
//
//   - Circuit Breaker: a three-state machine (closed/open/half-open) that
//     stops calling a failing dependency for a cooldown period, then probes
//     for recovery with a limited number of trial calls.
//
//   - Retry: re-invokes failed operations with exponential backoff, retrying
//     only failures classified as transient (by status code or transport
//     error code).
//
//   - Rate Limiter: sliding-window admission control that delays callers,
//     rather than rejecting them, once the per-window quota is exhausted.
//
//   - Timeout: races an operation against a deadline.
//
//   - Bulkhead: limits concurrent operations to prevent resource exhaustion.
//
// # Composition
//
// ExecuteWithResilience stitches timeout, circuit breaker, and retry into one
// call, in that fixed order (retry outermost):
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    Name:             "orders-db",
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	})
//
//	err := resilience.ExecuteWithResilience(ctx, callOrdersDB, resilience.CallOptions{
//	    Timeout:        5 * time.Second,
//	    CircuitBreaker: cb,
//	    Retry: resilience.RetryConfig{
//	        MaxAttempts:  3,
//	        InitialDelay: 100 * time.Millisecond,
//	    },
//	})
//
// The rate limiter is an admission gate invoked before the composed call, not
// part of the pipeline. Registry ties it together: one Resource per upstream
// owns its breaker and limiter, and Resource.Do runs admission followed by
// the composed call:
//
//	reg := resilience.NewRegistry(resilience.RegistryConfig{Logger: logger})
//	orders := reg.Resource(resilience.ResourceConfig{
//	    Meta:        observe.ServiceMeta{Name: "orders-db", Kind: "database"},
//	    RateLimiter: &resilience.RateLimiterConfig{MaxRequests: 100, Window: time.Minute},
//	})
//
//	err := orders.Do(ctx, callOrdersDB)
//
// # Error classification
//
// Failures cross the boundary as tagged UpstreamError values built by the
// caller (Transient, Fatal, FromStatus, FromNetError). Classification is a
// pattern match on the tag: fatal errors are never retried, timeouts map to
// the request-timeout status, and transient errors retry only when their
// status or transport code is in the retryable sets. Open-circuit rejections
// are never retryable.
package resilience
