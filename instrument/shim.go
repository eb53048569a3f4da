package instrument

import "context"

// outcome is the single result shape both shims present to the lifecycle
// controller. resolved is false when the body never produced a result, i.e.
// the invocation was cancelled mid-flight; the span is then closed without
// recording a return or error value.
type outcome struct {
	value    any
	err      error
	resolved bool
}

// bodyFunc runs the original callable body under the span's context.
type bodyFunc func(ctx context.Context) (any, error)

// executionShim runs the body to completion and reports its outcome. The
// lifecycle controller never branches on the calling convention; the shim
// hides it entirely.
type executionShim interface {
	run(ctx context.Context, body bodyFunc) outcome
}

// blockingShim calls the body in-line on the calling goroutine.
type blockingShim struct{}

func (blockingShim) run(ctx context.Context, body bodyFunc) outcome {
	value, err := body(ctx)
	return outcome{value: value, err: err, resolved: true}
}

// dispatchShim runs the body on its own goroutine and waits on either the
// result or cancellation. The span travels with the context, so it stays
// attached to the logical invocation no matter which goroutine executes the
// body. On cancellation the body goroutine is abandoned; its late completion
// goes to a buffered channel and never touches the already-closed span.
type dispatchShim struct{}

type dispatchResult struct {
	value    any
	err      error
	panicVal any
	panicked bool
}

func (dispatchShim) run(ctx context.Context, body bodyFunc) outcome {
	done := make(chan dispatchResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- dispatchResult{panicVal: r, panicked: true}
			}
		}()
		value, err := body(ctx)
		done <- dispatchResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.panicked {
			// Resume unwinding on the caller's goroutine so the
			// close-on-every-exit guarantee still holds.
			panic(res.panicVal)
		}
		return outcome{value: res.value, err: res.err, resolved: true}
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	}
}
