// Package testdoubles provides test doubles (spies) for the instrument
// package's observability interfaces:
//   - TracingCollectorSpy / SpanSpy: capture spans, ordered attributes,
//     status, and end counts
//   - MetricsCollectorSpy: captures metric recording calls
//   - ContextualLoggerSpy: captures structured logging with context
//
// They enable testing of the weaving engine's span lifecycle guarantees
// without a telemetry backend.
package testdoubles
