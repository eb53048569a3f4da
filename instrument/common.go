package instrument

import "sync"

// Reserved attribute keys. A fields(...) entry may not use them; Bind rejects
// such directives with ErrReservedFieldKey.
const attrKeyReturn = "return"
const attrKeyError = "error"

// Optional per-invocation duration attribute, enabled with WithDurationAttribute.
const attrKeyDurationMS = "duration_ms"

// Span status strings passed to SpanHandle.SetStatus.
const StatusOK = "ok"
const StatusError = "error"

// Metric names recorded per invocation when a MetricsCollector is configured.
const metricInvocations = "instrument_invocations_total"
const metricInvocationDuration = "instrument_invocation_duration_seconds"
const metricFormattingDegraded = "instrument_formatting_degraded_total"

const labelOperation = "operation"
const labelStatus = "status"

const statusSuccess = "success"
const statusError = "error"
const statusCancelled = "cancelled"

// DefaultTracerName is the tracer identifier used when SetTracerName was
// never called.
const DefaultTracerName = "otel-instrument"

var tracerNameMu sync.RWMutex
var tracerName = DefaultTracerName

// SetTracerName declares the process-wide tracer identifier used by adapters
// that resolve a tracer from a global registry. Call it once at startup,
// before any callable is wrapped; it is read-only afterward. An empty name
// restores the default.
func SetTracerName(name string) {
	tracerNameMu.Lock()
	defer tracerNameMu.Unlock()
	if name == "" {
		tracerName = DefaultTracerName
		return
	}
	tracerName = name
}

// TracerName returns the process-wide tracer identifier.
func TracerName() string {
	tracerNameMu.RLock()
	defer tracerNameMu.RUnlock()
	return tracerName
}
