package testdoubles

import (
	"context"
	"sync"
	"time"

	"github.com/otelweave/otel-instrument-go/instrument"
)

// MetricsCollectorSpy captures metric recording calls for testing. It
// implements both MetricsCollector and ContextualMetricsCollector, so it
// also verifies that the engine prefers the context-aware methods.
type MetricsCollectorSpy struct {
	mu        sync.Mutex
	counters  []SpyCounterRecord
	durations []SpyDurationRecord
	values    []SpyValueRecord
}

// SpyCounterRecord represents one counter increment.
type SpyCounterRecord struct {
	Metric     string
	Labels     map[string]string
	Context    context.Context
	Contextual bool
}

// SpyDurationRecord represents one duration recording.
type SpyDurationRecord struct {
	Metric     string
	Duration   time.Duration
	Labels     map[string]string
	Context    context.Context
	Contextual bool
}

// SpyValueRecord represents one value recording.
type SpyValueRecord struct {
	Metric     string
	Value      float64
	Labels     map[string]string
	Context    context.Context
	Contextual bool
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy instance.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// IncrementCounter implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.addCounter(SpyCounterRecord{Metric: metric, Labels: labels})
}

// IncrementCounterContext implements the ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	s.addCounter(SpyCounterRecord{Metric: metric, Labels: labels, Context: ctx, Contextual: true})
}

// RecordDuration implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.addDuration(SpyDurationRecord{Metric: metric, Duration: duration, Labels: labels})
}

// RecordDurationContext implements the ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.addDuration(SpyDurationRecord{Metric: metric, Duration: duration, Labels: labels, Context: ctx, Contextual: true})
}

// RecordValue implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.addValue(SpyValueRecord{Metric: metric, Value: value, Labels: labels})
}

// RecordValueContext implements the ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	s.addValue(SpyValueRecord{Metric: metric, Value: value, Labels: labels, Context: ctx, Contextual: true})
}

func (s *MetricsCollectorSpy) addCounter(record SpyCounterRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = append(s.counters, record)
}

func (s *MetricsCollectorSpy) addDuration(record SpyDurationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, record)
}

func (s *MetricsCollectorSpy) addValue(record SpyValueRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, record)
}

// CounterRecords returns a copy of all counter increments.
func (s *MetricsCollectorSpy) CounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpyCounterRecord(nil), s.counters...)
}

// DurationRecords returns a copy of all duration recordings.
func (s *MetricsCollectorSpy) DurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpyDurationRecord(nil), s.durations...)
}

// ValueRecords returns a copy of all value recordings.
func (s *MetricsCollectorSpy) ValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpyValueRecord(nil), s.values...)
}

// CounterTotal returns how many times the named counter was incremented.
func (s *MetricsCollectorSpy) CounterTotal(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, record := range s.counters {
		if record.Metric == metric {
			total++
		}
	}
	return total
}

// Reset clears all recorded calls.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = nil
	s.durations = nil
	s.values = nil
}

// Ensure MetricsCollectorSpy implements both metrics interfaces.
var _ instrument.MetricsCollector = (*MetricsCollectorSpy)(nil)
var _ instrument.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
