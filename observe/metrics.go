package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records resilience events for protected upstream calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCall records a completed upstream call with duration and error status.
	RecordCall(ctx context.Context, meta ServiceMeta, duration time.Duration, err error)

	// RecordRetry records a single retry attempt against a service.
	RecordRetry(ctx context.Context, meta ServiceMeta, attempt int)

	// RecordStateChange records a circuit breaker state transition.
	RecordStateChange(ctx context.Context, meta ServiceMeta, from, to string)

	// RecordRateLimitWait records time spent waiting for rate-limit admission.
	RecordRateLimitWait(ctx context.Context, meta ServiceMeta, wait time.Duration)
}

// CollectBreaker returns a state-change hook that feeds breaker transitions
// into the given Metrics. Suitable for wiring as an OnStateChange callback.
func CollectBreaker(m Metrics, meta ServiceMeta) func(from, to string) {
	return func(from, to string) {
		m.RecordStateChange(context.Background(), meta, from, to)
	}
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	callCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	retryCount   metric.Int64Counter
	transitions  metric.Int64Counter
	stateGauge   metric.Int64Gauge
	limiterWait  metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	callCount, err := meter.Int64Counter(
		"upstream.calls.total",
		metric.WithDescription("Total number of protected upstream calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"upstream.calls.errors",
		metric.WithDescription("Total number of failed upstream calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"upstream.call.duration_ms",
		metric.WithDescription("Upstream call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"upstream.retries.total",
		metric.WithDescription("Total number of retry attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"upstream.breaker.transitions",
		metric.WithDescription("Total number of circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	stateGauge, err := meter.Int64Gauge(
		"upstream.breaker.state",
		metric.WithDescription("Current circuit breaker state (0=closed, 1=half-open, 2=open)"),
	)
	if err != nil {
		return nil, err
	}

	limiterWait, err := meter.Float64Histogram(
		"upstream.ratelimit.wait_ms",
		metric.WithDescription("Time spent waiting for rate-limit admission in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		callCount:    callCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		retryCount:   retryCount,
		transitions:  transitions,
		stateGauge:   stateGauge,
		limiterWait:  limiterWait,
	}, nil
}

func serviceAttrs(meta ServiceMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", meta.Name),
	}
	if meta.Kind != "" {
		attrs = append(attrs, attribute.String("service.kind", meta.Kind))
	}
	return attrs
}

// RecordCall records metrics for a completed upstream call.
func (m *metricsImpl) RecordCall(ctx context.Context, meta ServiceMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(serviceAttrs(meta)...)

	// Always increment the call counter
	m.callCount.Add(ctx, 1, opt)

	// Increment error counter on failure
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordRetry records a single retry attempt.
func (m *metricsImpl) RecordRetry(ctx context.Context, meta ServiceMeta, attempt int) {
	attrs := append(serviceAttrs(meta), attribute.Int("retry.attempt", attempt))
	m.retryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStateChange records a circuit breaker state transition.
func (m *metricsImpl) RecordStateChange(ctx context.Context, meta ServiceMeta, from, to string) {
	attrs := append(serviceAttrs(meta),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))

	m.stateGauge.Record(ctx, breakerStateValue(to), metric.WithAttributes(serviceAttrs(meta)...))
}

func breakerStateValue(state string) int64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// RecordRateLimitWait records time spent waiting for admission.
func (m *metricsImpl) RecordRateLimitWait(ctx context.Context, meta ServiceMeta, wait time.Duration) {
	opt := metric.WithAttributes(serviceAttrs(meta)...)
	m.limiterWait.Record(ctx, float64(wait.Milliseconds()), opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics implementation that discards everything.
func NopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordCall(ctx context.Context, meta ServiceMeta, duration time.Duration, err error) {
}
func (noopMetrics) RecordRetry(ctx context.Context, meta ServiceMeta, attempt int)            {}
func (noopMetrics) RecordStateChange(ctx context.Context, meta ServiceMeta, from, to string)  {}
func (noopMetrics) RecordRateLimitWait(ctx context.Context, meta ServiceMeta, wait time.Duration) {
}
