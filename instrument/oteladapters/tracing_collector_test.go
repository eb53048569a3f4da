package oteladapters_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/otelweave/otel-instrument-go/instrument"
	"github.com/otelweave/otel-instrument-go/instrument/oteladapters"
)

func Test_NewTracingCollector_Construction(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	assert.NotNil(t, collector, "NewTracingCollector should return non-nil collector")
}

func Test_NewGlobalTracingCollector_Construction(t *testing.T) {
	collector := oteladapters.NewGlobalTracingCollector()

	assert.NotNil(t, collector, "NewGlobalTracingCollector should return non-nil collector")
}

func Test_TracingCollector_StartSpan_RecordsNameAndAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	ctx, handle := collector.StartSpan(context.Background(), "login")
	assert.NotNil(t, ctx, "Context should not be nil")
	require.NotNil(t, handle, "Span handle should not be nil")

	handle.AddAttribute("username", "alice")
	handle.AddAttribute("operation", "login")
	handle.SetStatus(instrument.StatusOK, "")
	handle.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, "login", span.Name, "Span name should match")
	assert.Equal(t, codes.Ok, span.Status.Code, "Span should have OK status")
	assertSpanHasAttribute(t, span, "username", "alice")
	assertSpanHasAttribute(t, span, "operation", "login")
}

func Test_TracingCollector_SetStatus_Error(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	_, handle := collector.StartSpan(context.Background(), "delete_account")
	handle.SetStatus(instrument.StatusError, "account is locked")
	handle.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status.Code, "Span should have Error status")
	assert.Equal(t, "account is locked", span.Status.Description, "Error description should match")
}

func Test_TracingCollector_SetStatus_UnknownStatusBecomesAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	_, handle := collector.StartSpan(context.Background(), "test")
	handle.SetStatus("degraded", "")
	handle.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	// Unknown status should be recorded as an attribute, not span status
	assertSpanHasAttribute(t, spans[0], "status", "degraded")
}

func Test_TracingCollector_RecordError_AddsExceptionEvent(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	_, handle := collector.StartSpan(context.Background(), "charge")
	handle.RecordError(errors.New("insufficient funds"))
	handle.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	require.Len(t, span.Events, 1, "Expected exactly one span event")
	assert.Equal(t, "exception", span.Events[0].Name, "Error should be recorded as exception event")
}

func Test_TracingCollector_ContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	// Start a parent span manually
	parentCtx, parentSpan := tracer.Start(context.Background(), "parent-operation")
	defer parentSpan.End()

	// Start a child span through the collector
	childCtx, handle := collector.StartSpan(parentCtx, "child-operation")
	handle.End()

	assert.NotEqual(t, parentCtx, childCtx, "Child context should be different from parent")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span from collector")

	childSpan := spans[0]
	assert.Equal(t, "child-operation", childSpan.Name, "Child span name should match")
	assert.Equal(t, parentSpan.SpanContext().SpanID(), childSpan.Parent.SpanID(), "Child should have correct parent")
}

func Test_TracingCollector_EndToEndWithWeaver(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	weaver, err := instrument.NewWeaver(
		instrument.WithTracing(oteladapters.NewTracingCollector(tracer)),
	)
	require.NoError(t, err)

	sig := instrument.DescribeCallable("login").
		WithContextParam("ctx").
		WithParam("username").
		WithParam("password").
		ReturningError().
		Finalize()

	directive, err := instrument.ParseDirective(`skip(password), ret, err, fields(operation = "login")`)
	require.NoError(t, err)

	plan, err := instrument.Bind(directive, sig)
	require.NoError(t, err)

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, username, _ string) (string, error) {
		return "session-" + username, nil
	})

	session, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "session-alice", session)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one exported span")

	span := spans[0]
	assert.Equal(t, "login", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)
	assertSpanHasAttribute(t, span, "username", "alice")
	assertSpanHasAttribute(t, span, "operation", "login")
	assertSpanHasAttribute(t, span, "return", "session-alice")
	assertSpanDoesNotHaveAttribute(t, span, "password")
}

func Test_TracingCollector_EndToEndFailure(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	weaver, err := instrument.NewWeaver(
		instrument.WithTracing(oteladapters.NewTracingCollector(tracer)),
	)
	require.NoError(t, err)

	sig := instrument.DescribeCallable("charge").
		WithContextParam("ctx").
		WithParam("amount").
		ReturningError().
		Finalize()

	directive, err := instrument.ParseDirective("err")
	require.NoError(t, err)

	plan, err := instrument.Bind(directive, sig)
	require.NoError(t, err)

	failure := errors.New("insufficient funds")
	charge := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ int) error {
		return failure
	})

	err = charge(context.Background(), 100)
	require.ErrorIs(t, err, failure)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one exported span")

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Equal(t, "insufficient funds", span.Status.Description)
	assertSpanHasAttribute(t, span, "error", "insufficient funds")
	require.Len(t, span.Events, 1, "Expected the error as a span event")
	assert.Equal(t, "exception", span.Events[0].Name)
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()
	found := false
	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			found = true
			break
		}
	}
	assert.True(t, found, "Span should have attribute %s=%s", key, expectedValue)
}

func assertSpanDoesNotHaveAttribute(t *testing.T, span tracetest.SpanStub, key string) {
	t.Helper()
	for _, attr := range span.Attributes {
		assert.NotEqual(t, attribute.Key(key), attr.Key, "Span should not have attribute %s", key)
	}
}
