package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogger_IncludesServiceFields verifies service fields are present in log output.
func TestLogger_IncludesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := ServiceMeta{
		Name: "orders-db",
		Kind: "database",
	}

	svcLogger := logger.WithService(meta)
	svcLogger.Info(context.Background(), "test message")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, output)
	}

	if v, ok := logEntry["service.name"].(string); !ok || v != "orders-db" {
		t.Errorf("expected service.name='orders-db', got %v", logEntry["service.name"])
	}
	if v, ok := logEntry["service.kind"].(string); !ok || v != "database" {
		t.Errorf("expected service.kind='database', got %v", logEntry["service.kind"])
	}
}

// TestLogger_EndpointIncluded verifies endpoint is included when set.
func TestLogger_EndpointIncluded(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := ServiceMeta{
		Name:     "llm-api",
		Endpoint: "https://api.example.com",
	}
	svcLogger := logger.WithService(meta)

	svcLogger.Info(context.Background(), "test")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["service.endpoint"].(string); !ok || v != "https://api.example.com" {
		t.Errorf("expected service.endpoint='https://api.example.com', got %v", logEntry["service.endpoint"])
	}
}

// TestLogger_IncludesFields verifies caller fields are present.
func TestLogger_IncludesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "test message",
		Field{Key: "duration_ms", Value: 50.5},
		Field{Key: "attempt", Value: 2},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["duration_ms"].(float64); !ok || v != 50.5 {
		t.Errorf("expected duration_ms=50.5, got %v", logEntry["duration_ms"])
	}
}

// TestLogger_Levels verifies each level is stamped on its entries.
func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name string
		log  func(Logger)
		want string
	}{
		{"debug", func(l Logger) { l.Debug(context.Background(), "m") }, "debug"},
		{"info", func(l Logger) { l.Info(context.Background(), "m") }, "info"},
		{"warn", func(l Logger) { l.Warn(context.Background(), "m") }, "warn"},
		{"error", func(l Logger) { l.Error(context.Background(), "m") }, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter("debug", &buf)

			tt.log(logger)

			var logEntry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Fatalf("failed to parse log output as JSON: %v", err)
			}
			if v, ok := logEntry["level"].(string); !ok || v != tt.want {
				t.Errorf("expected level=%q, got %v", tt.want, logEntry["level"])
			}
		})
	}
}

// TestLogger_SensitiveFieldsRedacted verifies sensitive values never reach output.
func TestLogger_SensitiveFieldsRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "upstream call completed",
		Field{Key: "payload", Value: "secret_password_123"},
		Field{Key: "token", Value: "bearer-xyz"},
	)

	output := buf.String()

	if strings.Contains(output, "secret_password_123") {
		t.Error("payload value should be redacted, but found in output")
	}
	if strings.Contains(output, "bearer-xyz") {
		t.Error("token value should be redacted, but found in output")
	}
	if !strings.Contains(output, "[REDACTED]") {
		t.Error("expected redaction marker in output")
	}
}

// TestLogger_LevelFiltering verifies log level filtering.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	// Info should be filtered out
	logger.Info(context.Background(), "info message")

	if strings.Contains(buf.String(), "info message") {
		t.Error("info message should be filtered when level is warn")
	}

	// Warn should pass through
	logger.Warn(context.Background(), "warn message")

	if !strings.Contains(buf.String(), "warn message") {
		t.Error("warn message should pass through when level is warn")
	}
}

// TestParseLogLevel verifies level parsing with unknown fallback.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// TestNopLogger verifies the nop logger is safe to use everywhere.
func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// Must not panic, including through WithService
	logger.Info(context.Background(), "dropped")
	logger.WithService(ServiceMeta{Name: "x"}).Error(context.Background(), "dropped too")
}
