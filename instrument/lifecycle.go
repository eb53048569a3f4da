package instrument

import (
	"context"
	"fmt"
	"time"
)

// executionState tracks the per-invocation span lifecycle:
// NotStarted -> Started -> Recording -> (Succeeded | Failed) -> Closed.
// Closed is terminal; close is guaranteed on every exit path, including
// panics and cancellation, and happens exactly once.
type executionState int

const (
	stateNotStarted executionState = iota
	stateStarted
	stateRecording
	stateSucceeded
	stateFailed
	stateClosed
)

// spanExecution is the ephemeral state of one instrumented invocation. It is
// owned exclusively by that invocation and discarded when the call returns;
// concurrent invocations of the same callable never share one.
type spanExecution struct {
	weaver    *Weaver
	plan      *BindingPlan
	span      SpanHandle
	ctx       context.Context
	state     executionState
	status    string
	startedAt time.Time
	closed    bool
}

// invoke drives one invocation through the full lifecycle. It is the single
// entry point behind every wrapped callable.
func (w *Weaver) invoke(ctx context.Context, plan *BindingPlan, args []any, body bodyFunc) (any, error) {
	exec := &spanExecution{
		weaver:    w,
		plan:      plan,
		state:     stateNotStarted,
		startedAt: w.clock.Now(),
	}

	callCtx := exec.start(ctx, args)
	defer exec.close()

	exec.record(args)

	var shim executionShim = blockingShim{}
	if plan.async {
		shim = dispatchShim{}
	}

	out := shim.run(callCtx, body)
	exec.finish(out)

	return out.value, out.err
}

// start resolves the parent context, obtains the span, and returns the
// context the body runs under. Without a tracing collector the invocation
// proceeds span-less.
func (e *spanExecution) start(ctx context.Context, args []any) context.Context {
	parent := e.resolveParent(ctx, args)
	e.ctx = parent
	e.state = stateStarted

	if e.weaver.tracingCollector == nil {
		return parent
	}

	spanCtx, span := e.weaver.tracingCollector.StartSpan(parent, e.plan.spanName)
	e.span = span
	e.ctx = spanCtx

	return spanCtx
}

// resolveParent prefers an explicit parent function, then a parent-source
// parameter, then the ambient context.
func (e *spanExecution) resolveParent(ctx context.Context, args []any) context.Context {
	if e.plan.parentFunc != nil {
		if parent := e.plan.parentFunc(ctx, args); parent != nil {
			return parent
		}
		return ctx
	}

	if e.plan.parentPos >= 0 && e.plan.parentPos < len(args) {
		if parent, ok := args[e.plan.parentPos].(context.Context); ok && parent != nil {
			return parent
		}
		e.weaver.logWarnContext(ctx, "parent parameter does not carry a context, using ambient context",
			"operation", e.plan.spanName)
	}

	return ctx
}

// record attaches parameter attributes in declaration order, then custom
// fields in directive order. A field whose key matches a parameter attribute
// is written after it, so the later write wins at the backend.
func (e *spanExecution) record(args []any) {
	e.state = stateRecording

	if e.span == nil {
		return
	}

	for _, binding := range e.plan.bindings {
		if !binding.Recorded || binding.Position >= len(args) {
			continue
		}
		e.addAttribute(binding.Name, args[binding.Position])
	}

	for _, field := range e.plan.fields {
		switch field.kind {
		case FieldValueLiteral:
			e.addAttribute(field.key, field.literal)
		case FieldValueParam:
			if field.paramPos >= 0 && field.paramPos < len(args) {
				e.addAttribute(field.key, args[field.paramPos])
			}
		case FieldValueFunc:
			e.addAttribute(field.key, field.fn(args))
		}
	}
}

// finish records the outcome. An unresolved outcome (cancellation) records
// nothing: the span is closed by the deferred close with status untouched.
func (e *spanExecution) finish(out outcome) {
	if !out.resolved {
		e.status = statusCancelled
		return
	}

	if out.err != nil {
		e.state = stateFailed
		e.status = statusError
		e.recordFailure(out.err)
		return
	}

	e.state = stateSucceeded
	e.status = statusSuccess

	if e.span == nil {
		return
	}
	if e.plan.directive.Ret {
		e.addAttribute(attrKeyReturn, out.value)
	}
	if e.plan.returnsError {
		e.span.SetStatus(StatusOK, "")
	}
}

// recordFailure captures the failure value when err recording is requested.
// The caller still receives the original error unchanged.
func (e *spanExecution) recordFailure(err error) {
	if e.span == nil || !e.plan.directive.Err {
		return
	}

	recorded := err
	if e.plan.errMapper != nil {
		if mapped := e.plan.errMapper(err); mapped != nil {
			recorded = mapped
		}
	}

	formatted := e.formatValue(attrKeyError, recorded)
	e.span.AddAttribute(attrKeyError, formatted)
	e.span.SetStatus(StatusError, formatted)
	e.span.RecordError(recorded)
}

// close ends the span exactly once. It runs deferred, so it also covers
// panics unwinding out of the body and cancellation mid-suspension.
func (e *spanExecution) close() {
	if e.closed {
		return
	}
	e.closed = true

	duration := e.weaver.clock.Now().Sub(e.startedAt)

	if e.span != nil {
		if e.weaver.recordDuration {
			e.span.AddAttribute(attrKeyDurationMS, formatMilliseconds(duration))
		}
		e.span.End()
	}

	e.state = stateClosed

	status := e.status
	if status == "" {
		// finish never ran: the body panicked.
		status = statusError
	}
	e.weaver.recordInvocationMetrics(e.ctx, e.plan.spanName, status, duration)
}

func (e *spanExecution) addAttribute(key string, value any) {
	e.span.AddAttribute(key, e.formatValue(key, value))
}

// formatValue formats through the configured formatter, degrading to the
// placeholder when formatting fails. Degradation is logged and counted but
// never interrupts the invocation.
func (e *spanExecution) formatValue(key string, value any) string {
	formatted, degraded := safeFormat(e.weaver.formatter, value)
	if degraded {
		e.weaver.logWarnContext(e.ctx, "value formatting degraded to placeholder",
			"operation", e.plan.spanName, "attribute", key)
		e.weaver.recordFormattingDegraded(e.ctx, e.plan.spanName, key)
	}
	return formatted
}

func formatMilliseconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}

// logWarnContext logs through the contextual logger when configured, falling
// back to the plain logger.
func (w *Weaver) logWarnContext(ctx context.Context, msg string, args ...any) {
	if w.contextualLogger != nil {
		w.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

// recordInvocationMetrics records the per-invocation counter and duration if
// a metrics collector is configured, preferring context-aware methods.
func (w *Weaver) recordInvocationMetrics(ctx context.Context, operation, status string, duration time.Duration) {
	if w.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	}

	if contextual, ok := w.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricInvocations, labels)
		contextual.RecordDurationContext(ctx, metricInvocationDuration, duration, labels)
		return
	}

	w.metricsCollector.IncrementCounter(metricInvocations, labels)
	w.metricsCollector.RecordDuration(metricInvocationDuration, duration, labels)
}

// recordFormattingDegraded counts a degraded formatting event.
func (w *Weaver) recordFormattingDegraded(ctx context.Context, operation, key string) {
	if w.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		"attribute":    key,
	}

	if contextual, ok := w.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metricFormattingDegraded, labels)
		return
	}

	w.metricsCollector.IncrementCounter(metricFormattingDegraded, labels)
}
