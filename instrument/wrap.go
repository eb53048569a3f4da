package instrument

import (
	"context"
	"fmt"
)

// The Wrap functions produce the instrumented form of a callable from a
// Weaver and a BindingPlan. The wrapped function has the exact signature of
// the original; on every call it opens a span, records the bound attributes,
// runs the body through the shim the plan selects, captures the outcome, and
// closes the span before returning the original result unchanged.
//
// The plan's signature must list every Go parameter in order, starting with
// the context parameter. Arity is checked at wrap time: a mismatch is a
// wiring bug, reported by panicking at definition time, mirroring the
// build-time failure of the directive grammar itself.
//
// Three shapes cover the usual Go signatures per arity of 0-3 value
// parameters: Wrap* for (R, error) results, WrapErr* for error-only results,
// and WrapVal* for results with no failure channel (always a success
// outcome).

// Wrap0 instruments func(ctx) (R, error).
func Wrap0[R any](w *Weaver, plan *BindingPlan, fn func(context.Context) (R, error)) func(context.Context) (R, error) {
	mustMatchPlan(plan, 1, true)
	return func(ctx context.Context) (R, error) {
		value, err := w.invoke(ctx, plan, []any{ctx}, func(callCtx context.Context) (any, error) {
			return fn(callCtx)
		})
		return typedValue[R](value), err
	}
}

// Wrap1 instruments func(ctx, A1) (R, error).
func Wrap1[A1, R any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1) (R, error)) func(context.Context, A1) (R, error) {
	mustMatchPlan(plan, 2, true)
	return func(ctx context.Context, a1 A1) (R, error) {
		value, err := w.invoke(ctx, plan, []any{ctx, a1}, func(callCtx context.Context) (any, error) {
			return fn(callCtx, a1)
		})
		return typedValue[R](value), err
	}
}

// Wrap2 instruments func(ctx, A1, A2) (R, error).
func Wrap2[A1, A2, R any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1, A2) (R, error)) func(context.Context, A1, A2) (R, error) {
	mustMatchPlan(plan, 3, true)
	return func(ctx context.Context, a1 A1, a2 A2) (R, error) {
		value, err := w.invoke(ctx, plan, []any{ctx, a1, a2}, func(callCtx context.Context) (any, error) {
			return fn(callCtx, a1, a2)
		})
		return typedValue[R](value), err
	}
}

// Wrap3 instruments func(ctx, A1, A2, A3) (R, error).
func Wrap3[A1, A2, A3, R any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1, A2, A3) (R, error)) func(context.Context, A1, A2, A3) (R, error) {
	mustMatchPlan(plan, 4, true)
	return func(ctx context.Context, a1 A1, a2 A2, a3 A3) (R, error) {
		value, err := w.invoke(ctx, plan, []any{ctx, a1, a2, a3}, func(callCtx context.Context) (any, error) {
			return fn(callCtx, a1, a2, a3)
		})
		return typedValue[R](value), err
	}
}

// WrapErr0 instruments func(ctx) error.
func WrapErr0(w *Weaver, plan *BindingPlan, fn func(context.Context) error) func(context.Context) error {
	mustMatchPlan(plan, 1, true)
	return func(ctx context.Context) error {
		_, err := w.invoke(ctx, plan, []any{ctx}, func(callCtx context.Context) (any, error) {
			return nil, fn(callCtx)
		})
		return err
	}
}

// WrapErr1 instruments func(ctx, A1) error.
func WrapErr1[A1 any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1) error) func(context.Context, A1) error {
	mustMatchPlan(plan, 2, true)
	return func(ctx context.Context, a1 A1) error {
		_, err := w.invoke(ctx, plan, []any{ctx, a1}, func(callCtx context.Context) (any, error) {
			return nil, fn(callCtx, a1)
		})
		return err
	}
}

// WrapErr2 instruments func(ctx, A1, A2) error.
func WrapErr2[A1, A2 any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1, A2) error) func(context.Context, A1, A2) error {
	mustMatchPlan(plan, 3, true)
	return func(ctx context.Context, a1 A1, a2 A2) error {
		_, err := w.invoke(ctx, plan, []any{ctx, a1, a2}, func(callCtx context.Context) (any, error) {
			return nil, fn(callCtx, a1, a2)
		})
		return err
	}
}

// WrapErr3 instruments func(ctx, A1, A2, A3) error.
func WrapErr3[A1, A2, A3 any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1, A2, A3) error) func(context.Context, A1, A2, A3) error {
	mustMatchPlan(plan, 4, true)
	return func(ctx context.Context, a1 A1, a2 A2, a3 A3) error {
		_, err := w.invoke(ctx, plan, []any{ctx, a1, a2, a3}, func(callCtx context.Context) (any, error) {
			return nil, fn(callCtx, a1, a2, a3)
		})
		return err
	}
}

// WrapVal0 instruments func(ctx) R. The outcome is always a success.
func WrapVal0[R any](w *Weaver, plan *BindingPlan, fn func(context.Context) R) func(context.Context) R {
	mustMatchPlan(plan, 1, false)
	return func(ctx context.Context) R {
		value, _ := w.invoke(ctx, plan, []any{ctx}, func(callCtx context.Context) (any, error) {
			return fn(callCtx), nil
		})
		return typedValue[R](value)
	}
}

// WrapVal1 instruments func(ctx, A1) R.
func WrapVal1[A1, R any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1) R) func(context.Context, A1) R {
	mustMatchPlan(plan, 2, false)
	return func(ctx context.Context, a1 A1) R {
		value, _ := w.invoke(ctx, plan, []any{ctx, a1}, func(callCtx context.Context) (any, error) {
			return fn(callCtx, a1), nil
		})
		return typedValue[R](value)
	}
}

// WrapVal2 instruments func(ctx, A1, A2) R.
func WrapVal2[A1, A2, R any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1, A2) R) func(context.Context, A1, A2) R {
	mustMatchPlan(plan, 3, false)
	return func(ctx context.Context, a1 A1, a2 A2) R {
		value, _ := w.invoke(ctx, plan, []any{ctx, a1, a2}, func(callCtx context.Context) (any, error) {
			return fn(callCtx, a1, a2), nil
		})
		return typedValue[R](value)
	}
}

// WrapVal3 instruments func(ctx, A1, A2, A3) R.
func WrapVal3[A1, A2, A3, R any](w *Weaver, plan *BindingPlan, fn func(context.Context, A1, A2, A3) R) func(context.Context, A1, A2, A3) R {
	mustMatchPlan(plan, 4, false)
	return func(ctx context.Context, a1 A1, a2 A2, a3 A3) R {
		value, _ := w.invoke(ctx, plan, []any{ctx, a1, a2, a3}, func(callCtx context.Context) (any, error) {
			return fn(callCtx, a1, a2, a3), nil
		})
		return typedValue[R](value)
	}
}

// mustMatchPlan checks at wrap time that the plan's declared parameter count
// and error channel match the Go function being wrapped.
func mustMatchPlan(plan *BindingPlan, wantParams int, wantsError bool) {
	if plan.paramCount() != wantParams {
		panic(fmt.Sprintf("instrument: plan for %q declares %d parameters, wrapper expects %d",
			plan.SpanName(), plan.paramCount(), wantParams))
	}
	if plan.ReturnsError() != wantsError {
		panic(fmt.Sprintf("instrument: plan for %q declares returnsError=%t, wrapper expects %t",
			plan.SpanName(), plan.ReturnsError(), wantsError))
	}
}

// typedValue unboxes the controller's any-typed outcome value. It yields the
// zero value when no outcome was produced, e.g. after cancellation.
func typedValue[R any](value any) R {
	if v, ok := value.(R); ok {
		return v
	}
	var zero R
	return zero
}
