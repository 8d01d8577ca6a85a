package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestServiceMeta_SpanName verifies deterministic span naming.
func TestServiceMeta_SpanName(t *testing.T) {
	meta := ServiceMeta{Name: "orders-db"}

	expected := "upstream.call.orders-db"
	if got := meta.SpanName(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

// TestTracer_SpanAttributes verifies all attributes are present on span.
func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := NewTracer(tracer)
	meta := ServiceMeta{
		Name:     "orders-db",
		Kind:     "database",
		Endpoint: "postgres://orders:5432",
	}

	ctx, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)
	_ = ctx

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	if s.Name() != "upstream.call.orders-db" {
		t.Errorf("expected span name 'upstream.call.orders-db', got %q", s.Name())
	}

	attrMap := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		attrMap[string(a.Key)] = a.Value
	}

	if v, ok := attrMap["service.name"]; !ok || v.AsString() != "orders-db" {
		t.Errorf("expected service.name='orders-db', got %v", v)
	}
	if v, ok := attrMap["service.kind"]; !ok || v.AsString() != "database" {
		t.Errorf("expected service.kind='database', got %v", v)
	}
	if v, ok := attrMap["service.endpoint"]; !ok || v.AsString() != "postgres://orders:5432" {
		t.Errorf("expected service.endpoint='postgres://orders:5432', got %v", v)
	}
	if v, ok := attrMap["service.error"]; !ok || v.AsBool() != false {
		t.Errorf("expected service.error=false, got %v", v)
	}
}

// TestTracer_SpanAttributesMinimal verifies optional attributes are omitted.
func TestTracer_SpanAttributesMinimal(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := NewTracer(tracer)
	meta := ServiceMeta{Name: "cache"}

	_, span := tr.StartSpan(context.Background(), meta)
	tr.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrMap := make(map[string]attribute.Value)
	for _, a := range spans[0].Attributes() {
		attrMap[string(a.Key)] = a.Value
	}

	if _, ok := attrMap["service.name"]; !ok {
		t.Error("expected service.name attribute")
	}
	if v, ok := attrMap["service.kind"]; ok && v.AsString() != "" {
		t.Errorf("expected no service.kind, got %v", v)
	}
	if v, ok := attrMap["service.endpoint"]; ok && v.AsString() != "" {
		t.Errorf("expected no service.endpoint, got %v", v)
	}
}

// TestTracer_ContextPropagation verifies parent span is propagated.
func TestTracer_ContextPropagation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := NewTracer(tracer)
	meta := ServiceMeta{Name: "child-svc"}

	parentCtx, parentSpan := tracer.Start(context.Background(), "parent")

	_, childSpan := tr.StartSpan(parentCtx, meta)
	tr.EndSpan(childSpan, nil)
	parentSpan.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	var child sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "upstream.call.child-svc" {
			child = s
			break
		}
	}
	if child == nil {
		t.Fatal("child span not found")
	}

	if child.Parent().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("child span should have same trace ID as parent")
	}
	if !child.Parent().SpanID().IsValid() {
		t.Error("child span should have valid parent span ID")
	}
}

// TestTracer_ErrorRecording verifies error sets span status and attribute.
func TestTracer_ErrorRecording(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	tr := NewTracer(tracer)
	meta := ServiceMeta{Name: "failing-svc"}

	_, span := tr.StartSpan(context.Background(), meta)
	testErr := errors.New("call failed")
	tr.EndSpan(span, testErr)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	s := spans[0]

	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}

	var svcError bool
	for _, a := range s.Attributes() {
		if string(a.Key) == "service.error" {
			svcError = a.Value.AsBool()
		}
	}
	if !svcError {
		t.Error("expected service.error=true")
	}
}

// TestNoopTracer verifies the noop tracer is usable end to end.
func TestNoopTracer(t *testing.T) {
	tr := NewNoopTracer()

	ctx, span := tr.StartSpan(context.Background(), ServiceMeta{Name: "x"})
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	tr.EndSpan(span, errors.New("ignored"))
}
