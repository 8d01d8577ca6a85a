package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/gmorales/steadfast/observe"
)

// Cleanup bounds: a full prune of the timestamp slice runs only when it has
// outgrown max(minCleanupThreshold, MaxRequests*cleanupFactor) and at least
// half a window has passed since the last prune. The stored slice may
// transiently exceed the active set between prunes; admission always
// recomputes the true active count.
const (
	minCleanupThreshold = 100
	cleanupFactor       = 2
)

// RateLimiterConfig configures the sliding-window rate limiter.
type RateLimiterConfig struct {
	// Name identifies the guarded resource in logs and metrics.
	Name string

	// MaxRequests is the admission quota per window.
	// Default: 100
	MaxRequests int

	// Window is the sliding window length.
	// Default: 1 minute
	Window time.Duration

	// Logger receives admission-wait diagnostics. Best-effort only.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// RateLimiter is a sliding-window admission gate that delays callers instead
// of rejecting them once the per-window quota is exhausted. Create one
// instance per guarded resource and share it across calls.
type RateLimiter struct {
	config           RateLimiterConfig
	logger           observe.Logger
	cleanupThreshold int

	mu sync.Mutex
	// Admission timestamps, ascending since they are appended in call order.
	requests    []time.Time
	lastCleanup time.Time
}

// NewRateLimiter creates a new sliding-window rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.MaxRequests <= 0 {
		config.MaxRequests = 100
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	threshold := config.MaxRequests * cleanupFactor
	if threshold < minCleanupThreshold {
		threshold = minCleanupThreshold
	}

	return &RateLimiter{
		config:           config,
		logger:           logger,
		cleanupThreshold: threshold,
	}
}

// Acquire blocks until the caller is admitted under the quota or the context
// is canceled. It never rejects on quota: excess callers wait for the window
// to advance, however long that takes.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.maybeCleanupLocked(now)

		active, oldest := rl.activeLocked(now)
		if active < rl.config.MaxRequests {
			rl.requests = append(rl.requests, now)
			rl.mu.Unlock()
			return nil
		}

		wait := rl.config.Window - now.Sub(oldest)
		rl.mu.Unlock()

		// Sleep only for positive waits, tolerating clock drift. Either way
		// re-check: the window may have advanced further in the meantime.
		if wait > 0 {
			rl.logger.Debug(ctx, "rate limit reached, waiting for window",
				observe.Field{Key: "limiter", Value: rl.config.Name},
				observe.Field{Key: "wait_ms", Value: float64(wait.Milliseconds())},
			)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}

// Remaining returns how many requests the current window still admits.
// Never negative and never more than MaxRequests.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.maybeCleanupLocked(now)

	active, _ := rl.activeLocked(now)
	remaining := rl.config.MaxRequests - active
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset clears all recorded admissions.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests = nil
	rl.lastCleanup = time.Time{}
}

// RateLimiterMetrics contains rate limiter statistics.
type RateLimiterMetrics struct {
	// TotalRequests is the raw stored timestamp count, before lazy cleanup,
	// so it may exceed ActiveRequests between prunes.
	TotalRequests int

	// ActiveRequests counts admissions inside the current window.
	ActiveRequests int

	// RemainingRequests is the unconsumed quota of the current window.
	RemainingRequests int

	// WindowStart is the oldest active admission (zero when idle).
	WindowStart time.Time

	// WindowEnd is the observation time.
	WindowEnd time.Time
}

// Metrics returns current rate limiter statistics.
func (rl *RateLimiter) Metrics() RateLimiterMetrics {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	total := len(rl.requests)
	active, oldest := rl.activeLocked(now)

	remaining := rl.config.MaxRequests - active
	if remaining < 0 {
		remaining = 0
	}

	m := RateLimiterMetrics{
		TotalRequests:     total,
		ActiveRequests:    active,
		RemainingRequests: remaining,
		WindowEnd:         now,
	}
	if active > 0 {
		m.WindowStart = oldest
	}
	return m
}

// activeLocked recomputes the true active set on every call: the count of
// timestamps inside the window and the oldest of them. The slice is sorted,
// so only a prefix can be stale.
func (rl *RateLimiter) activeLocked(now time.Time) (int, time.Time) {
	cutoff := now.Add(-rl.config.Window)

	i := 0
	for i < len(rl.requests) && !rl.requests[i].After(cutoff) {
		i++
	}

	if i == len(rl.requests) {
		return 0, time.Time{}
	}
	return len(rl.requests) - i, rl.requests[i]
}

// maybeCleanupLocked prunes stale timestamps under the lazy policy.
func (rl *RateLimiter) maybeCleanupLocked(now time.Time) {
	if len(rl.requests) <= rl.cleanupThreshold {
		return
	}
	if now.Sub(rl.lastCleanup) < rl.config.Window/2 {
		return
	}

	rl.requests = pruneBefore(rl.requests, now.Add(-rl.config.Window))
	rl.lastCleanup = now
}
