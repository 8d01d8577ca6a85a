package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/gmorales/steadfast/observe"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the initial
	// one. 1 means a single attempt with no retries.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// Jitter adds up to 25% randomness to delays to prevent thundering herd.
	// Default: false, so delays follow Backoff exactly.
	Jitter bool

	// RetryableStatusCodes overrides the retryable status set.
	// Default: DefaultRetryableStatusCodes
	RetryableStatusCodes []int

	// RetryableErrorCodes overrides the retryable transport-code set.
	// Default: DefaultRetryableErrorCodes
	RetryableErrorCodes []string

	// RetryIf fully overrides classification when set.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Logger receives retry diagnostics. Best-effort only.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Retry executes operations with classified retries and exponential backoff.
// Stateless per call; one Retry may be shared across goroutines.
type Retry struct {
	config     RetryConfig
	classifier classifier
	logger     observe.Logger
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Retry{
		config:     config,
		classifier: newClassifier(config.RetryableStatusCodes, config.RetryableErrorCodes),
		logger:     logger,
	}
}

// Execute runs the operation with retry logic.
//
// Contract: the last observed error is always the one returned; errors are
// never wrapped or substituted. A non-retryable failure returns immediately
// after a single invocation.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)

		if err == nil {
			if attempt > 1 {
				r.logger.Info(ctx, "operation succeeded after retries",
					observe.Field{Key: "attempts", Value: attempt},
				)
			}
			return nil
		}

		lastErr = err

		if !r.retryable(err) {
			return err
		}

		// Don't retry if this was the last attempt
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.delayFor(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		r.logger.Warn(ctx, "operation failed, retrying",
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "max_attempts", Value: r.config.MaxAttempts},
			observe.Field{Key: "delay_ms", Value: float64(delay.Milliseconds())},
			observe.Field{Key: "error", Value: err.Error()},
		)

		// Wait for the backoff delay or context cancellation
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		// Exhausted without a captured error; report a generic failure
		// rather than returning nil for a failed call.
		lastErr = ErrRetriesExhausted
	}

	r.logger.Warn(ctx, "retry attempts exhausted",
		observe.Field{Key: "attempts", Value: r.config.MaxAttempts},
		observe.Field{Key: "error", Value: lastErr.Error()},
	)

	return lastErr
}

func (r *Retry) retryable(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return r.classifier.Retryable(err)
}

func (r *Retry) delayFor(attempt int) time.Duration {
	delay := Backoff(attempt, r.config.InitialDelay, r.config.MaxDelay, r.config.Multiplier)

	if r.config.Jitter && delay > 0 {
		// Add up to 25% jitter
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int63n(int64(delay / 4)))
	}

	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
