package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	m, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name in ResourceMetrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// TestMetrics_CallCounterIncrements verifies upstream.calls.total is incremented.
func TestMetrics_CallCounterIncrements(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db", Kind: "database"}
	m.RecordCall(context.Background(), meta, 100*time.Millisecond, nil)

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.calls.total")
	if found == nil {
		t.Fatal("upstream.calls.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("expected count 1, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_ErrorCounterOnFailure verifies errors counter incremented on failure.
func TestMetrics_ErrorCounterOnFailure(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db"}
	m.RecordCall(context.Background(), meta, 50*time.Millisecond, errors.New("call failed"))

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.calls.errors")
	if found == nil {
		t.Fatal("upstream.calls.errors metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != 1 {
		t.Errorf("expected errors count 1, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_ErrorCounterOnSuccess verifies errors counter NOT incremented on success.
func TestMetrics_ErrorCounterOnSuccess(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db"}
	m.RecordCall(context.Background(), meta, 50*time.Millisecond, nil)

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.calls.errors")
	if found == nil {
		// No error points recorded at all is acceptable
		return
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		return
	}
	if len(sum.DataPoints) > 0 && sum.DataPoints[0].Value != 0 {
		t.Errorf("expected errors count 0, got %d", sum.DataPoints[0].Value)
	}
}

// TestMetrics_DurationHistogramRecords verifies duration is recorded.
func TestMetrics_DurationHistogramRecords(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db"}
	m.RecordCall(context.Background(), meta, 50*time.Millisecond, nil)

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.call.duration_ms")
	if found == nil {
		t.Fatal("upstream.call.duration_ms metric not found")
	}

	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}

	dp := hist.DataPoints[0]
	if dp.Sum < 40 || dp.Sum > 60 {
		t.Errorf("expected duration ~50ms, got %f", dp.Sum)
	}
}

// TestMetrics_RetryCounter verifies upstream.retries.total records attempts.
func TestMetrics_RetryCounter(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "llm-api"}
	m.RecordRetry(context.Background(), meta, 1)
	m.RecordRetry(context.Background(), meta, 2)

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.retries.total")
	if found == nil {
		t.Fatal("upstream.retries.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("expected 2 retries recorded, got %d", total)
	}
}

// TestMetrics_StateChangeCounter verifies breaker transitions are recorded with labels.
func TestMetrics_StateChangeCounter(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db"}
	m.RecordStateChange(context.Background(), meta, "closed", "open")

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.breaker.transitions")
	if found == nil {
		t.Fatal("upstream.breaker.transitions metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}

	var foundFrom, foundTo bool
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		kv := iter.Attribute()
		switch string(kv.Key) {
		case "breaker.from":
			foundFrom = true
			if kv.Value.AsString() != "closed" {
				t.Errorf("expected breaker.from='closed', got %q", kv.Value.AsString())
			}
		case "breaker.to":
			foundTo = true
			if kv.Value.AsString() != "open" {
				t.Errorf("expected breaker.to='open', got %q", kv.Value.AsString())
			}
		}
	}
	if !foundFrom {
		t.Error("breaker.from attribute not found")
	}
	if !foundTo {
		t.Error("breaker.to attribute not found")
	}
}

// TestMetrics_StateGauge verifies the breaker state gauge tracks the new state.
func TestMetrics_StateGauge(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db"}
	m.RecordStateChange(context.Background(), meta, "closed", "open")

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.breaker.state")
	if found == nil {
		t.Fatal("upstream.breaker.state metric not found")
	}

	gauge, ok := found.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("expected Gauge[int64], got %T", found.Data)
	}
	if len(gauge.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if gauge.DataPoints[0].Value != 2 {
		t.Errorf("expected state value 2 (open), got %d", gauge.DataPoints[0].Value)
	}

	m.RecordStateChange(context.Background(), meta, "open", "half-open")
	rm = collect(t, reader)
	found = findMetric(rm, "upstream.breaker.state")
	if found == nil {
		t.Fatal("upstream.breaker.state metric not found after second transition")
	}
	gauge = found.Data.(metricdata.Gauge[int64])
	if gauge.DataPoints[0].Value != 1 {
		t.Errorf("expected state value 1 (half-open), got %d", gauge.DataPoints[0].Value)
	}
}

// TestCollectBreaker verifies the hook feeds transitions into metrics.
func TestCollectBreaker(t *testing.T) {
	m, reader := newTestMetrics(t)

	hook := CollectBreaker(m, ServiceMeta{Name: "orders-db"})
	hook("closed", "open")

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.breaker.transitions")
	if found == nil {
		t.Fatal("upstream.breaker.transitions metric not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Error("expected one transition recorded through the hook")
	}
}

// TestMetrics_RateLimitWait verifies admission wait time is recorded.
func TestMetrics_RateLimitWait(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "llm-api"}
	m.RecordRateLimitWait(context.Background(), meta, 250*time.Millisecond)

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.ratelimit.wait_ms")
	if found == nil {
		t.Fatal("upstream.ratelimit.wait_ms metric not found")
	}

	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if hist.DataPoints[0].Sum < 240 || hist.DataPoints[0].Sum > 260 {
		t.Errorf("expected wait ~250ms, got %f", hist.DataPoints[0].Sum)
	}
}

// TestMetrics_ServiceLabelsApplied verifies labels include service metadata.
func TestMetrics_ServiceLabelsApplied(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "orders-db", Kind: "database"}
	m.RecordCall(context.Background(), meta, 10*time.Millisecond, nil)

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.calls.total")
	if found == nil {
		t.Fatal("upstream.calls.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}

	var foundName, foundKind bool
	for iter := sum.DataPoints[0].Attributes.Iter(); iter.Next(); {
		kv := iter.Attribute()
		switch string(kv.Key) {
		case "service.name":
			foundName = true
			if kv.Value.AsString() != "orders-db" {
				t.Errorf("expected service.name='orders-db', got %q", kv.Value.AsString())
			}
		case "service.kind":
			foundKind = true
			if kv.Value.AsString() != "database" {
				t.Errorf("expected service.kind='database', got %q", kv.Value.AsString())
			}
		}
	}
	if !foundName {
		t.Error("service.name attribute not found")
	}
	if !foundKind {
		t.Error("service.kind attribute not found")
	}
}

// TestMetrics_ConcurrentRecording verifies thread safety.
func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)

	meta := ServiceMeta{Name: "concurrent-svc"}
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			m.RecordCall(context.Background(), meta, time.Millisecond, nil)
		}()
	}

	wg.Wait()

	rm := collect(t, reader)

	found := findMetric(rm, "upstream.calls.total")
	if found == nil {
		t.Fatal("upstream.calls.total metric not found")
	}

	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", found.Data)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if sum.DataPoints[0].Value != numGoroutines {
		t.Errorf("expected count %d, got %d", numGoroutines, sum.DataPoints[0].Value)
	}
}

// TestNopMetrics verifies the nop metrics never panics.
func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	meta := ServiceMeta{Name: "x"}

	m.RecordCall(context.Background(), meta, time.Millisecond, errors.New("err"))
	m.RecordRetry(context.Background(), meta, 1)
	m.RecordStateChange(context.Background(), meta, "closed", "open")
	m.RecordRateLimitWait(context.Background(), meta, time.Millisecond)
}
