package instrument

import (
	"context"
	"time"
)

// Logger interface for operational warnings and error reporting from the
// weaving engine, such as degraded value formatting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace
// correlation. Implementations can derive trace and span ids from the
// context so log records line up with the spans this engine produces.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting invocation metrics. This is a
// dependency-free contract; any metrics backend can implement it.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware
// methods. The engine prefers these when available so metric exemplars can be
// correlated with the active span; it falls back to the base interface
// otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// Attribute is a single key/value pair recorded on a span. Attributes are
// carried as an ordered slice, not a map: parameter attributes precede custom
// fields, and a later write to the same key wins.
type Attribute struct {
	Key   string
	Value string
}

// SpanHandle is an open span owned by exactly one invocation. The lifecycle
// controller writes attributes and status through it and ends it exactly
// once; a handle must tolerate writes in any order before End.
type SpanHandle interface {
	AddAttribute(key, value string)
	SetStatus(status string, description string)
	RecordError(err error)
	End()
}

// TracingCollector is the external span API this engine records through. Any
// tracing backend (OpenTelemetry, Jaeger, an in-memory recorder) can
// implement it. StartSpan creates a span named name as a child of the span
// carried by ctx, and returns a derived context carrying the new span.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string) (context.Context, SpanHandle)
}
