package instrument

import (
	"errors"

	"github.com/zoobzio/clockz"
)

// Option defines a functional option for configuring a Weaver.
type Option func(*Weaver) error

// WithTracing sets the tracing collector the Weaver records spans through.
// Without one, wrapped callables execute their bodies but create no spans.
func WithTracing(collector TracingCollector) Option {
	return func(w *Weaver) error {
		w.tracingCollector = collector
		return nil
	}
}

// WithFormatter replaces the default JSON value formatter.
func WithFormatter(formatter ValueFormatter) Option {
	return func(w *Weaver) error {
		if formatter == nil {
			return errors.New("nil formatter supplied")
		}
		w.formatter = formatter
		return nil
	}
}

// WithMetrics sets the metrics collector. It receives an invocation counter,
// an invocation duration, and a degraded-formatting counter per call.
func WithMetrics(collector MetricsCollector) Option {
	return func(w *Weaver) error {
		w.metricsCollector = collector
		return nil
	}
}

// WithLogger sets the logger for operational warnings, such as a formatter
// that had to degrade to the placeholder value.
func WithLogger(logger Logger) Option {
	return func(w *Weaver) error {
		w.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger. When both loggers are
// configured the contextual one is preferred, so warnings correlate with the
// span of the invocation that produced them.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(w *Weaver) error {
		w.contextualLogger = logger
		return nil
	}
}

// WithClock replaces the clock used to measure invocation durations.
func WithClock(clock clockz.Clock) Option {
	return func(w *Weaver) error {
		if clock == nil {
			return errors.New("nil clock supplied")
		}
		w.clock = clock
		return nil
	}
}

// WithDurationAttribute records each invocation's wall time as a
// "duration_ms" span attribute, added just before the span ends.
func WithDurationAttribute() Option {
	return func(w *Weaver) error {
		w.recordDuration = true
		return nil
	}
}
