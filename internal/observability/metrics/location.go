package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LocationMetrics contains Prometheus metrics for the location provider
type LocationMetrics struct {
	operationMetrics
	registry *prometheus.Registry

	historySize prometheus.Gauge
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
}

// NewLocationMetrics creates and registers new location metrics
func NewLocationMetrics(registry *prometheus.Registry) (*LocationMetrics, error) {
	m := &LocationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LocationMetrics) initMetrics() {
	// Fixes: 10ms to ~5s; gpsd can take a few seconds for a first fix
	m.operationMetrics = newOperationMetrics("location",
		prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10))

	m.historySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "location",
		Name:      "history_size",
		Help:      "Number of fixes held in the location history",
	})
	m.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "location",
		Name:      "subscribers",
		Help:      "Number of active location update subscribers",
	})
	m.dropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "location",
		Name:      "updates_dropped_total",
		Help:      "Location updates dropped because a subscriber was not keeping up",
	})
}

func (m *LocationMetrics) getCollectors() []prometheus.Collector {
	return append(m.collectors(), m.historySize, m.subscribers, m.dropped)
}

// Describe implements the Collector interface
func (m *LocationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *LocationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// SetHistorySize sets the history size gauge
func (m *LocationMetrics) SetHistorySize(n int) {
	m.historySize.Set(float64(n))
}

// SetSubscribers sets the subscriber gauge
func (m *LocationMetrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}

// IncrementDropped counts an update not delivered to a slow subscriber
func (m *LocationMetrics) IncrementDropped() {
	m.dropped.Inc()
}
