package instrument

import (
	"github.com/zoobzio/clockz"
)

// Weaver holds the invocation-time collaborators shared by every callable
// wrapped through it: the tracing backend, the value formatter, and the
// optional metrics and logging collectors. A Weaver is immutable after
// construction and safe for concurrent use.
//
// Every collaborator except the formatter is optional. With no tracing
// collector configured the wrapped callable still runs its body and returns
// its outcome; only the span is skipped.
type Weaver struct {
	tracingCollector TracingCollector
	metricsCollector MetricsCollector
	logger           Logger
	contextualLogger ContextualLogger
	formatter        ValueFormatter
	clock            clockz.Clock
	recordDuration   bool
}

// NewWeaver creates a Weaver with the given options. The default formatter
// is the jsoniter-backed JSONFormatter and the default clock is the real one.
func NewWeaver(opts ...Option) (*Weaver, error) {
	w := &Weaver{
		formatter: NewJSONFormatter(),
		clock:     clockz.RealClock,
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}
