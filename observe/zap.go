package observe

import (
	"context"

	"go.uber.org/zap"
)

// zapLogger adapts a *zap.Logger to the Logger interface so hosts that are
// already standardized on zap can feed resilience diagnostics into their
// existing pipeline instead of the built-in JSON logger.
type zapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps an existing zap logger. A nil logger yields a NopLogger.
func NewZapLogger(logger *zap.Logger) Logger {
	if logger == nil {
		return NopLogger()
	}
	return &zapLogger{logger: logger}
}

// WithService returns a logger with upstream service context attached.
func (l *zapLogger) WithService(meta ServiceMeta) Logger {
	zl := l.logger.With(zap.String("service.name", meta.Name))
	if meta.Kind != "" {
		zl = zl.With(zap.String("service.kind", meta.Kind))
	}
	if meta.Endpoint != "" {
		zl = zl.With(zap.String("service.endpoint", meta.Endpoint))
	}
	return &zapLogger{logger: zl}
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.logger.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.logger.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.logger.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.logger.Debug(msg, zapFields(fields)...)
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if isRedactedField(f.Key) {
			out = append(out, zap.String(f.Key, "[REDACTED]"))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// Ensure zapLogger implements Logger
var _ Logger = (*zapLogger)(nil)
