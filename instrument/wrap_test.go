package instrument_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/otelweave/otel-instrument-go/instrument"
	"github.com/otelweave/otel-instrument-go/testutil/observability/testdoubles"
)

type ctxKey string

func mustParse(t *testing.T, input string) instrument.Directive {
	t.Helper()
	d, err := instrument.ParseDirective(input)
	require.NoError(t, err)
	return d
}

func mustBind(t *testing.T, d instrument.Directive, sig instrument.Signature, opts ...instrument.BindOption) *instrument.BindingPlan {
	t.Helper()
	plan, err := instrument.Bind(d, sig, opts...)
	require.NoError(t, err)
	return plan
}

func newTracedWeaver(t *testing.T, extra ...instrument.Option) (*instrument.Weaver, *testdoubles.TracingCollectorSpy) {
	t.Helper()
	tracingSpy := testdoubles.NewTracingCollectorSpy()
	opts := append([]instrument.Option{instrument.WithTracing(tracingSpy)}, extra...)
	weaver, err := instrument.NewWeaver(opts...)
	require.NoError(t, err)
	return weaver, tracingSpy
}

func Test_WrappedCall_Success_RecordsParametersInDeclarationOrder(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := loginSignature()
	plan := mustBind(t, mustParse(t, `fields(operation = "login")`), sig)

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, username, _ string) (string, error) {
		return "session-" + username, nil
	})

	session, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "session-alice", session)

	spans := tracingSpy.Spans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "login", span.Name())
	assert.Equal(t, 1, span.EndCount(), "span must be closed exactly once")

	attrs := span.Attributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, instrument.Attribute{Key: "username", Value: "alice"}, attrs[0])
	assert.Equal(t, instrument.Attribute{Key: "password", Value: "s3cret"}, attrs[1])
	assert.Equal(t, instrument.Attribute{Key: "operation", Value: "login"}, attrs[2])

	status, description := span.Status()
	assert.Equal(t, instrument.StatusOK, status)
	assert.Empty(t, description)
}

func Test_WrappedCall_SkipExcludesParameterFromSpan(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	plan := mustBind(t, mustParse(t, "skip(password)"), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	span := tracingSpy.Spans()[0]
	_, found := span.AttributeValue("password")
	assert.False(t, found, "skipped parameter must not reach the span")
	value, found := span.AttributeValue("username")
	assert.True(t, found)
	assert.Equal(t, "alice", value)
}

func Test_WrappedCall_FieldOverridesParameterAttribute(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	plan := mustBind(t, mustParse(t, `fields(username = "masked")`), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	span := tracingSpy.Spans()[0]

	// Both writes happen, the field last, so the later write wins.
	attrs := span.Attributes()
	assert.Equal(t, "username", attrs[0].Key)
	assert.Equal(t, "alice", attrs[0].Value)

	value, found := span.AttributeValue("username")
	assert.True(t, found)
	assert.Equal(t, "masked", value)
}

func Test_WrappedCall_FieldShorthandRecordsParameterValue(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	plan := mustBind(t, mustParse(t, "skip_all, fields(username)"), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	span := tracingSpy.Spans()[0]
	attrs := span.Attributes()
	require.Len(t, attrs, 1)
	assert.Equal(t, instrument.Attribute{Key: "username", Value: "alice"}, attrs[0])
}

func Test_WrappedCall_FieldFuncComputesValuePerInvocation(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	plan := mustBind(t, mustParse(t, "skip_all"), loginSignature(),
		instrument.WithFieldFunc("username_length", func(args []any) any {
			username, _ := args[1].(string)
			return len(username)
		}))

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	value, found := tracingSpy.Spans()[0].AttributeValue("username_length")
	assert.True(t, found)
	assert.Equal(t, "5", value)
}

func Test_WrappedCall_RetRecordsReturnValue(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	plan := mustBind(t, mustParse(t, "skip_all, ret"), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session-42", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	value, found := tracingSpy.Spans()[0].AttributeValue("return")
	assert.True(t, found)
	assert.Equal(t, "session-42", value)
}

func Test_WrappedCall_Failure_RecordsErrorAndStatus(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("delete_account").
		WithContextParam("ctx").
		WithParam("accountID").
		ReturningError().
		Finalize()
	plan := mustBind(t, mustParse(t, "err"), sig)

	failure := errors.New("account is locked")
	deleteAccount := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ string) error {
		return failure
	})

	err := deleteAccount(context.Background(), "acc-1")
	require.ErrorIs(t, err, failure, "the caller receives the original error unchanged")

	span := tracingSpy.Spans()[0]
	assert.Equal(t, 1, span.EndCount())

	value, found := span.AttributeValue("error")
	assert.True(t, found)
	assert.Equal(t, "account is locked", value)

	status, description := span.Status()
	assert.Equal(t, instrument.StatusError, status)
	assert.Equal(t, "account is locked", description)

	require.Len(t, span.RecordedErrors(), 1)
	assert.Same(t, failure, span.RecordedErrors()[0])
}

func Test_WrappedCall_Failure_WithoutErrClauseLeavesSpanUntouched(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("delete_account").
		WithContextParam("ctx").
		WithParam("accountID").
		ReturningError().
		Finalize()
	plan := mustBind(t, instrument.Directive{}, sig)

	deleteAccount := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ string) error {
		return errors.New("nope")
	})

	err := deleteAccount(context.Background(), "acc-1")
	require.Error(t, err)

	span := tracingSpy.Spans()[0]
	_, found := span.AttributeValue("error")
	assert.False(t, found)
	status, _ := span.Status()
	assert.Empty(t, status)
	assert.Empty(t, span.RecordedErrors())
	assert.Equal(t, 1, span.EndCount())
}

func Test_WrappedCall_ErrorMapperShapesRecordedError(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("charge").
		WithContextParam("ctx").
		WithParam("amount").
		ReturningError().
		Finalize()

	cause := errors.New("insufficient funds")
	plan := mustBind(t, mustParse(t, "err = rootCause"), sig,
		instrument.WithErrorMapper(func(err error) error {
			return errors.Unwrap(err)
		}))

	wrapped := fmt.Errorf("charge failed: %w", cause)
	charge := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ int) error {
		return wrapped
	})

	err := charge(context.Background(), 100)
	require.ErrorIs(t, err, wrapped)

	span := tracingSpy.Spans()[0]
	require.Len(t, span.RecordedErrors(), 1)
	assert.Same(t, cause, span.RecordedErrors()[0], "the mapped error is what the span records")

	value, _ := span.AttributeValue("error")
	assert.Equal(t, "insufficient funds", value)
}

func Test_WrappedCall_PanicStillClosesSpanExactlyOnce(t *testing.T) {
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	weaver, tracingSpy := newTracedWeaver(t, instrument.WithMetrics(metricsSpy))

	sig := instrument.DescribeCallable("explode").
		WithContextParam("ctx").
		ReturningError().
		Finalize()
	plan := mustBind(t, instrument.Directive{}, sig)

	explode := instrument.WrapErr0(weaver, plan, func(_ context.Context) error {
		panic("kaboom")
	})

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = explode(context.Background())
	})

	span := tracingSpy.Spans()[0]
	assert.Equal(t, 1, span.EndCount(), "span must be closed even when the body panics")

	counters := metricsSpy.CounterRecords()
	require.Len(t, counters, 1)
	assert.Equal(t, "error", counters[0].Labels["status"])
}

func Test_WrappedCall_AsyncSuccess(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("fetch_profile").
		WithContextParam("ctx").
		WithParam("userID").
		Async().
		ReturningError().
		Finalize()
	plan := mustBind(t, mustParse(t, "ret"), sig)

	fetch := instrument.Wrap1(weaver, plan, func(_ context.Context, userID string) (string, error) {
		return "profile-" + userID, nil
	})

	profile, err := fetch(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "profile-u1", profile)

	span := tracingSpy.Spans()[0]
	assert.Equal(t, 1, span.EndCount())
	value, _ := span.AttributeValue("return")
	assert.Equal(t, "profile-u1", value)
}

func Test_WrappedCall_AsyncCancellationClosesSpanWithoutOutcome(t *testing.T) {
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	weaver, tracingSpy := newTracedWeaver(t, instrument.WithMetrics(metricsSpy))

	sig := instrument.DescribeCallable("slow_fetch").
		WithContextParam("ctx").
		Async().
		ReturningError().
		Finalize()
	plan := mustBind(t, mustParse(t, "err"), sig)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	fetch := instrument.WrapErr0(weaver, plan, func(_ context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fetch(ctx)
	require.ErrorIs(t, err, context.Canceled)

	span := tracingSpy.Spans()[0]
	assert.Equal(t, 1, span.EndCount(), "cancellation must still close the span")

	status, _ := span.Status()
	assert.Empty(t, status, "an unresolved outcome records no status")
	_, found := span.AttributeValue("error")
	assert.False(t, found, "an unresolved outcome records no error value")

	counters := metricsSpy.CounterRecords()
	require.Len(t, counters, 1)
	assert.Equal(t, "cancelled", counters[0].Labels["status"])
}

func Test_WrappedCall_AsyncPanicResumesOnCaller(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("explode_async").
		WithContextParam("ctx").
		Async().
		ReturningError().
		Finalize()
	plan := mustBind(t, instrument.Directive{}, sig)

	explode := instrument.WrapErr0(weaver, plan, func(_ context.Context) error {
		panic("kaboom")
	})

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = explode(context.Background())
	})
	assert.Equal(t, 1, tracingSpy.Spans()[0].EndCount())
}

func Test_WrappedCall_WithoutTracingCollectorStillRunsBody(t *testing.T) {
	weaver, err := instrument.NewWeaver()
	require.NoError(t, err)

	plan := mustBind(t, mustParse(t, "ret, err"), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, username, _ string) (string, error) {
		return "session-" + username, nil
	})

	session, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "session-alice", session)
}

func Test_WrappedCall_ParentParameterOverridesAmbientContext(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("child_op").
		WithContextParam("ctx").
		WithContextParam("parentCtx").
		WithParam("payload").
		ReturningError().
		Finalize()
	plan := mustBind(t, mustParse(t, "parent = parentCtx"), sig)

	childOp := instrument.WrapErr2(weaver, plan, func(_ context.Context, _ context.Context, _ string) error {
		return nil
	})

	parent := context.WithValue(context.Background(), ctxKey("origin"), "batch-7")

	err := childOp(context.Background(), parent, "data")
	require.NoError(t, err)

	span := tracingSpy.Spans()[0]
	assert.Equal(t, "batch-7", span.StartContext().Value(ctxKey("origin")),
		"the span must be parented to the named parameter, not the ambient context")

	_, found := span.AttributeValue("parentCtx")
	assert.False(t, found, "the parent source is never recorded as an attribute")
}

func Test_WrappedCall_ParentFuncOverridesAmbientContext(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	parent := context.WithValue(context.Background(), ctxKey("origin"), "job-3")

	sig := instrument.DescribeCallable("child_op").
		WithContextParam("ctx").
		WithParam("payload").
		ReturningError().
		Finalize()
	plan := mustBind(t, instrument.Directive{}, sig,
		instrument.WithParentFunc(func(_ context.Context, _ []any) context.Context {
			return parent
		}))

	childOp := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ string) error {
		return nil
	})

	require.NoError(t, childOp(context.Background(), "data"))

	span := tracingSpy.Spans()[0]
	assert.Equal(t, "job-3", span.StartContext().Value(ctxKey("origin")))
}

func Test_WrappedCall_NonContextParentValueFallsBackWithWarning(t *testing.T) {
	loggerSpy := testdoubles.NewContextualLoggerSpy()
	weaver, tracingSpy := newTracedWeaver(t, instrument.WithContextualLogger(loggerSpy))

	sig := instrument.DescribeCallable("child_op").
		WithContextParam("ctx").
		WithContextParam("parentCtx").
		ReturningError().
		Finalize()
	plan := mustBind(t, mustParse(t, "parent = parentCtx"), sig)

	// The plan declares parentCtx as a context, but the call site hands over
	// a plain string.
	childOp := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ string) error {
		return nil
	})

	ambient := context.WithValue(context.Background(), ctxKey("origin"), "ambient")
	require.NoError(t, childOp(ambient, "not a context"))

	span := tracingSpy.Spans()[0]
	assert.Equal(t, "ambient", span.StartContext().Value(ctxKey("origin")))
	assert.True(t, loggerSpy.HasLog("warn", "parent parameter does not carry a context, using ambient context"))
}

func Test_WrappedCall_FormatterDegradationUsesPlaceholder(t *testing.T) {
	loggerSpy := testdoubles.NewContextualLoggerSpy()
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	weaver, tracingSpy := newTracedWeaver(t,
		instrument.WithContextualLogger(loggerSpy),
		instrument.WithMetrics(metricsSpy))

	sig := instrument.DescribeCallable("process").
		WithContextParam("ctx").
		WithParam("payload").
		ReturningError().
		Finalize()
	plan := mustBind(t, instrument.Directive{}, sig)

	process := instrument.WrapErr1(weaver, plan, func(_ context.Context, _ chan int) error {
		return nil
	})

	require.NoError(t, process(context.Background(), make(chan int)))

	value, found := tracingSpy.Spans()[0].AttributeValue("payload")
	assert.True(t, found)
	assert.Equal(t, instrument.FormattingPlaceholder, value)

	assert.True(t, loggerSpy.HasLog("warn", "value formatting degraded to placeholder"))
	assert.Equal(t, 1, metricsSpy.CounterTotal("instrument_formatting_degraded_total"))
}

func Test_WrappedCall_PanickingFormatterDegradesToo(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t,
		instrument.WithFormatter(panickingFormatter{}))

	plan := mustBind(t, instrument.Directive{}, loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session", nil
	})

	session, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err, "a broken formatter must never abort the call")
	assert.Equal(t, "session", session)

	value, _ := tracingSpy.Spans()[0].AttributeValue("username")
	assert.Equal(t, instrument.FormattingPlaceholder, value)
}

type panickingFormatter struct{}

func (panickingFormatter) Format(any) (string, error) {
	panic("formatter blew up")
}

func Test_WrappedCall_RecordsInvocationMetrics(t *testing.T) {
	metricsSpy := testdoubles.NewMetricsCollectorSpy()
	weaver, _ := newTracedWeaver(t, instrument.WithMetrics(metricsSpy))

	plan := mustBind(t, instrument.Directive{}, loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		return "session", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	counters := metricsSpy.CounterRecords()
	require.Len(t, counters, 1)
	assert.Equal(t, "instrument_invocations_total", counters[0].Metric)
	assert.Equal(t, "login", counters[0].Labels["operation"])
	assert.Equal(t, "success", counters[0].Labels["status"])
	assert.True(t, counters[0].Contextual, "context-aware recording is preferred when available")

	durations := metricsSpy.DurationRecords()
	require.Len(t, durations, 1)
	assert.Equal(t, "instrument_invocation_duration_seconds", durations[0].Metric)
}

func Test_WrappedCall_DurationAttributeUsesConfiguredClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	weaver, tracingSpy := newTracedWeaver(t,
		instrument.WithClock(clock),
		instrument.WithDurationAttribute())

	plan := mustBind(t, mustParse(t, "skip_all"), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, _, _ string) (string, error) {
		clock.Advance(150 * time.Millisecond)
		return "session", nil
	})

	_, err := login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	value, found := tracingSpy.Spans()[0].AttributeValue("duration_ms")
	assert.True(t, found)
	assert.Equal(t, "150.00", value)
}

func Test_WrappedCall_PlanIsReusableAcrossInvocations(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	plan := mustBind(t, mustParse(t, "skip(password)"), loginSignature())

	login := instrument.Wrap2(weaver, plan, func(_ context.Context, username, _ string) (string, error) {
		return "session-" + username, nil
	})

	for _, username := range []string{"alice", "bob", "carol"} {
		_, err := login(context.Background(), username, "pw")
		require.NoError(t, err)
	}

	spans := tracingSpy.Spans()
	require.Len(t, spans, 3)
	for i, username := range []string{"alice", "bob", "carol"} {
		value, _ := spans[i].AttributeValue("username")
		assert.Equal(t, username, value)
		assert.Equal(t, 1, spans[i].EndCount())
	}
}

func Test_WrapVal_SuccessWithoutErrorChannel(t *testing.T) {
	weaver, tracingSpy := newTracedWeaver(t)

	sig := instrument.DescribeCallable("normalize").
		WithContextParam("ctx").
		WithParam("input").
		Finalize()
	plan := mustBind(t, mustParse(t, "ret"), sig)

	normalize := instrument.WrapVal1(weaver, plan, func(_ context.Context, input string) string {
		return input + "!"
	})

	assert.Equal(t, "hi!", normalize(context.Background(), "hi"))

	span := tracingSpy.Spans()[0]
	value, _ := span.AttributeValue("return")
	assert.Equal(t, "hi!", value)

	status, _ := span.Status()
	assert.Empty(t, status, "without an error channel no status is set")
}

func Test_Wrap_PanicsOnArityMismatch(t *testing.T) {
	weaver, _ := newTracedWeaver(t)

	plan := mustBind(t, instrument.Directive{}, loginSignature())

	assert.Panics(t, func() {
		instrument.Wrap1(weaver, plan, func(_ context.Context, _ string) (string, error) {
			return "", nil
		})
	}, "a three-parameter plan cannot back a two-parameter wrapper")
}

func Test_Wrap_PanicsOnErrorChannelMismatch(t *testing.T) {
	weaver, _ := newTracedWeaver(t)

	plan := mustBind(t, instrument.Directive{}, loginSignature())

	assert.Panics(t, func() {
		instrument.WrapVal2(weaver, plan, func(_ context.Context, _, _ string) string {
			return ""
		})
	}, "a plan with an error channel cannot back a value-only wrapper")
}
