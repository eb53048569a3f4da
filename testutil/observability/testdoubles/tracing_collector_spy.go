package testdoubles

import (
	"context"
	"sync"

	"github.com/otelweave/otel-instrument-go/instrument"
)

type spanSpyContextKey struct{}

// TracingCollectorSpy is a TracingCollector implementation that records every
// span started through it for later inspection.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpanSpy
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy instance.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements the TracingCollector interface. The returned context
// carries the SpanSpy; retrieve it with SpanFromContext.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string) (context.Context, instrument.SpanHandle) {
	span := &SpanSpy{name: name, startContext: ctx}

	s.mu.Lock()
	s.spans = append(s.spans, span)
	s.mu.Unlock()

	return context.WithValue(ctx, spanSpyContextKey{}, span), span
}

// Spans returns every span started so far, in start order.
func (s *TracingCollectorSpy) Spans() []*SpanSpy {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*SpanSpy, len(s.spans))
	copy(out, s.spans)
	return out
}

// Reset discards all recorded spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = nil
}

// SpanFromContext returns the SpanSpy carried by a context produced by
// StartSpan, or nil.
func SpanFromContext(ctx context.Context) *SpanSpy {
	span, _ := ctx.Value(spanSpyContextKey{}).(*SpanSpy)
	return span
}

// Ensure TracingCollectorSpy implements instrument.TracingCollector.
var _ instrument.TracingCollector = (*TracingCollectorSpy)(nil)

// SpanSpy records everything written to one span handle.
type SpanSpy struct {
	name         string
	startContext context.Context

	mu                sync.Mutex
	attributes        []instrument.Attribute
	status            string
	statusDescription string
	recordedErrors    []error
	endCount          int
}

// Name returns the span's display name.
func (s *SpanSpy) Name() string {
	return s.name
}

// StartContext returns the context the span was started from, i.e. the
// resolved parent context.
func (s *SpanSpy) StartContext() context.Context {
	return s.startContext
}

// AddAttribute implements the SpanHandle interface.
func (s *SpanSpy) AddAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes = append(s.attributes, instrument.Attribute{Key: key, Value: value})
}

// SetStatus implements the SpanHandle interface.
func (s *SpanSpy) SetStatus(status string, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.statusDescription = description
}

// RecordError implements the SpanHandle interface.
func (s *SpanSpy) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordedErrors = append(s.recordedErrors, err)
}

// End implements the SpanHandle interface.
func (s *SpanSpy) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endCount++
}

// Attributes returns every attribute write in order, including repeated
// writes to the same key.
func (s *SpanSpy) Attributes() []instrument.Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]instrument.Attribute, len(s.attributes))
	copy(out, s.attributes)
	return out
}

// AttributeValue returns the effective value for a key (last write wins) and
// whether the key was written at all.
func (s *SpanSpy) AttributeValue(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, found := "", false
	for _, attr := range s.attributes {
		if attr.Key == key {
			value, found = attr.Value, true
		}
	}
	return value, found
}

// Status returns the last status write.
func (s *SpanSpy) Status() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusDescription
}

// RecordedErrors returns the errors recorded on the span.
func (s *SpanSpy) RecordedErrors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]error, len(s.recordedErrors))
	copy(out, s.recordedErrors)
	return out
}

// EndCount returns how many times End was called.
func (s *SpanSpy) EndCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endCount
}

// Ensure SpanSpy implements instrument.SpanHandle.
var _ instrument.SpanHandle = (*SpanSpy)(nil)
