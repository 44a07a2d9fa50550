package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetrics covers the local JSON API. Routes are labelled by their
// pattern, such as /api/v1/catches/:id.
type APIMetrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	payloadBytes *prometheus.HistogramVec
}

// NewAPIMetrics creates and registers the API metrics
func NewAPIMetrics(registry *prometheus.Registry) (*APIMetrics, error) {
	m := &APIMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *APIMetrics) initMetrics() {
	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)
	m.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency; dashboard and weather routes wait on weatherapi.com",
			Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"route"},
	)
	m.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "failures_total",
			Help:      "Handler errors by route and error category",
		},
		[]string{"route", "category"},
	)
	m.payloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "response_bytes",
			Help:      "Response body size; catch list exports grow with the log",
			Buckets:   prometheus.ExponentialBuckets(BucketStart64B, BucketFactor4, BucketCount10),
		},
		[]string{"route"},
	)
}

// RecordRequest records a finished request
func (m *APIMetrics) RecordRequest(route, method string, code int, took time.Duration, sizeBytes int64) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(route).Observe(took.Seconds())
	m.payloadBytes.WithLabelValues(route).Observe(float64(sizeBytes))
}

// RecordFailure counts a handler error of the given category
func (m *APIMetrics) RecordFailure(route, category string) {
	m.failures.WithLabelValues(route, category).Inc()
}

// Describe implements the Collector interface
func (m *APIMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requests.Describe(ch)
	m.latency.Describe(ch)
	m.failures.Describe(ch)
	m.payloadBytes.Describe(ch)
}

// Collect implements the Collector interface
func (m *APIMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requests.Collect(ch)
	m.latency.Collect(ch)
	m.failures.Collect(ch)
	m.payloadBytes.Collect(ch)
}
