package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelweave/otel-instrument-go/instrument"
)

// TracingCollector implements instrument.TracingCollector on the
// OpenTelemetry tracing API. Spans started through it are parented to the
// span carried by the given context, which is how the engine realizes both
// ambient and overridden parent linkage.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector over the given tracer. The tracer
// should come from your OpenTelemetry TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// NewGlobalTracingCollector creates a collector over the globally registered
// tracer named by instrument.TracerName(). Set the name once at startup with
// instrument.SetTracerName.
func NewGlobalTracingCollector() *TracingCollector {
	return &TracingCollector{tracer: otel.Tracer(instrument.TracerName())}
}

// StartSpan implements instrument.TracingCollector.
func (t *TracingCollector) StartSpan(ctx context.Context, name string) (context.Context, instrument.SpanHandle) {
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, &SpanHandle{span: span}
}

// Ensure TracingCollector implements instrument.TracingCollector.
var _ instrument.TracingCollector = (*TracingCollector)(nil)

// SpanHandle implements instrument.SpanHandle by wrapping an OpenTelemetry
// span.
type SpanHandle struct {
	span trace.Span
}

// AddAttribute records a string attribute on the span.
func (s *SpanHandle) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

// SetStatus maps the engine's status strings onto OpenTelemetry status
// codes. OpenTelemetry ignores descriptions on Ok status, matching the
// engine's contract of an empty description for success.
func (s *SpanHandle) SetStatus(status string, description string) {
	switch status {
	case instrument.StatusOK:
		s.span.SetStatus(codes.Ok, "")
	case instrument.StatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetAttributes(attribute.String("status", status))
	}
}

// RecordError records the error as a span event.
func (s *SpanHandle) RecordError(err error) {
	s.span.RecordError(err)
}

// End finishes the span.
func (s *SpanHandle) End() {
	s.span.End()
}

// Ensure SpanHandle implements instrument.SpanHandle.
var _ instrument.SpanHandle = (*SpanHandle)(nil)
