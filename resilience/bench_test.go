package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gmorales/steadfast/observe"
)

// BenchmarkCircuitBreaker_Execute_Closed measures happy path execution.
func BenchmarkCircuitBreaker_Execute_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 100,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkCircuitBreaker_Execute_Open measures fast rejection overhead.
func BenchmarkCircuitBreaker_Execute_Open(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error {
		return errors.New("boom")
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkCircuitBreaker_StateCheck measures state inspection overhead.
func BenchmarkCircuitBreaker_StateCheck(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.State()
	}
}

// BenchmarkCircuitBreaker_Metrics measures metrics retrieval.
func BenchmarkCircuitBreaker_Metrics(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	// Generate some activity
	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Metrics()
	}
}

// BenchmarkCircuitBreaker_Concurrent measures parallel execution.
func BenchmarkCircuitBreaker_Concurrent(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1000,
		ResetTimeout:     time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cb.Execute(ctx, func(ctx context.Context) error {
				return nil
			})
		}
	})
}

// BenchmarkRetry_NoRetries measures retry with immediate success.
func BenchmarkRetry_NoRetries(b *testing.B) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = retry.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkRetry_NonRetryable measures single-attempt failure classification.
func BenchmarkRetry_NonRetryable(b *testing.B) {
	retry := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	})
	ctx := context.Background()
	err := Fatal("bench-svc", errors.New("bad input"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = retry.Execute(ctx, func(ctx context.Context) error {
			return err
		})
	}
}

// BenchmarkBackoff measures delay computation.
func BenchmarkBackoff(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Backoff(i%10+1, 100*time.Millisecond, 30*time.Second, 2.0)
	}
}

// BenchmarkClassifier_Retryable measures classification of a tagged error.
func BenchmarkClassifier_Retryable(b *testing.B) {
	c := newClassifier(nil, nil)
	err := Transient("bench-svc", 503, "", errors.New("down"))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Retryable(err)
	}
}

// BenchmarkRateLimiter_Acquire measures admission under quota.
func BenchmarkRateLimiter_Acquire(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxRequests: 1 << 30, // Effectively unlimited to avoid blocking
		Window:      time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Acquire(ctx)
	}
}

// BenchmarkRateLimiter_Remaining measures quota inspection.
func BenchmarkRateLimiter_Remaining(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxRequests: 100,
		Window:      time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_ = rl.Acquire(ctx)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Remaining()
	}
}

// BenchmarkRateLimiter_Concurrent measures parallel admission.
func BenchmarkRateLimiter_Concurrent(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{
		MaxRequests: 1 << 30,
		Window:      time.Minute,
	})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = rl.Acquire(ctx)
		}
	})
}

// BenchmarkBulkhead_Execute measures semaphore acquire/release.
func BenchmarkBulkhead_Execute(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{
		MaxConcurrent: 1000,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bh.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkTimeout_Execute_Fast measures fast execution path.
func BenchmarkTimeout_Execute_Fast(b *testing.B) {
	timeout := NewTimeout(TimeoutConfig{
		Timeout: time.Second,
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = timeout.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkExecutor_AllPatterns measures the full composed call path.
func BenchmarkExecutor_AllPatterns(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 100,
		ResetTimeout:     time.Minute,
	})
	retry := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
	})

	executor := NewExecutor(
		WithTimeout(time.Second),
		WithCircuitBreaker(cb),
		WithRetry(retry),
	)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = executor.Execute(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkResource_Do measures a registry resource call end to end.
func BenchmarkResource_Do(b *testing.B) {
	reg := NewRegistry(RegistryConfig{})
	res := reg.Resource(ResourceConfig{
		Meta: observe.ServiceMeta{Name: "bench-svc"},
		Call: CallOptions{DisableRetry: true},
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = res.Do(ctx, func(ctx context.Context) error {
			return nil
		})
	}
}

// BenchmarkState_String measures state string conversion.
func BenchmarkState_String(b *testing.B) {
	states := []State{StateClosed, StateOpen, StateHalfOpen}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = states[i%3].String()
	}
}

// BenchmarkErrorIs measures error checking with errors.Is.
func BenchmarkErrorIs(b *testing.B) {
	err := &CircuitOpenError{Name: "bench-svc"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = errors.Is(err, ErrCircuitOpen)
	}
}
