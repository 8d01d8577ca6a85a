package resilience

import (
	"math"
	"time"
)

// Backoff computes the exponential delay before retry attempt number attempt.
// attempt is 1-based: attempt 1 is the first retry after the initial failure.
//
//	delay = min(initial * multiplier^(attempt-1), max)
//
// Pure function, no jitter; the retry engine layers jitter on top when enabled.
func Backoff(attempt int, initial, max time.Duration, multiplier float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(initial) * math.Pow(multiplier, float64(attempt-1)))

	// Cap at max; the conversion overflows to a negative duration for very
	// large exponents, which the cap also absorbs.
	if delay > max || delay < 0 {
		delay = max
	}

	return delay
}
