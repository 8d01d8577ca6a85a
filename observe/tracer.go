package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ServiceMeta identifies an upstream service for telemetry purposes.
type ServiceMeta struct {
	Name     string // Logical service name, e.g. "orders-db" (required)
	Kind     string // Service kind, e.g. "database", "llm" (optional)
	Endpoint string // Endpoint identity, e.g. host or base URL (optional)
}

// SpanName returns the deterministic span name for calls to this service.
// Format: upstream.call.<name>
func (m ServiceMeta) SpanName() string {
	return "upstream.call." + m.Name
}

// Tracer wraps OpenTelemetry tracing with upstream-call span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an upstream call.
	StartSpan(ctx context.Context, meta ServiceMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with service metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ServiceMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", meta.Name),
		attribute.Bool("service.error", false), // Updated in EndSpan if error
	}

	if meta.Kind != "" {
		attrs = append(attrs, attribute.String("service.kind", meta.Kind))
	}
	if meta.Endpoint != "" {
		attrs = append(attrs, attribute.String("service.endpoint", meta.Endpoint))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("service.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ServiceMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
