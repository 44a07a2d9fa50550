// Package metrics provides custom Prometheus metrics for TrollTrack.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder defines a minimal interface for recording metrics.
// Services depend on it rather than on a concrete metrics type so tests can
// substitute a TestRecorder.
type Recorder interface {
	// RecordOperation records an operation with its status ("success", "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type, usually an error category.
	RecordError(operation, errorType string)
}

// operationMetrics is the shared implementation of Recorder used by the
// per-subsystem metric sets.
type operationMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

func newOperationMetrics(subsystem string, buckets []float64) operationMetrics {
	return operationMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Total number of " + subsystem + " operations",
			},
			[]string{"operation", "status"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Duration of " + subsystem + " operations",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "errors_total",
				Help:      "Total number of " + subsystem + " errors by type",
			},
			[]string{"operation", "error_type"},
		),
	}
}

// RecordOperation implements Recorder.
func (m *operationMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

// RecordDuration implements Recorder.
func (m *operationMetrics) RecordDuration(operation string, seconds float64) {
	m.durations.WithLabelValues(operation).Observe(seconds)
}

// RecordError implements Recorder.
func (m *operationMetrics) RecordError(operation, errorType string) {
	m.errors.WithLabelValues(operation, errorType).Inc()
}

func (m *operationMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operations, m.durations, m.errors}
}

// namespace prefixes every metric name
const namespace = "trolltrack"
