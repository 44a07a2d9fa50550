package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains Prometheus metrics for fishing alerts
type NotificationMetrics struct {
	registry *prometheus.Registry

	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	suppressedTotal  prometheus.Counter
}

// NewNotificationMetrics creates and registers new notification metrics
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() {
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Total number of alert deliveries",
		},
		[]string{"notification_type", "status"},
	)
	m.deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notification",
			Name:      "delivery_duration_seconds",
			Help:      "Time taken to deliver an alert to all services",
			Buckets:   prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"notification_type"},
	)
	m.suppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "suppressed_total",
		Help:      "Weather updates that did not change the fishing verdict",
	})
}

// RecordDelivery records an alert delivery attempt
func (m *NotificationMetrics) RecordDelivery(notificationType, status string, duration time.Duration) {
	m.deliveriesTotal.WithLabelValues(notificationType, status).Inc()
	m.deliveryDuration.WithLabelValues(notificationType).Observe(duration.Seconds())
}

// IncrementSuppressed counts an update that produced no alert
func (m *NotificationMetrics) IncrementSuppressed() {
	m.suppressedTotal.Inc()
}

// Describe implements the Collector interface
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deliveriesTotal.Describe(ch)
	m.deliveryDuration.Describe(ch)
	m.suppressedTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deliveriesTotal.Collect(ch)
	m.deliveryDuration.Collect(ch)
	m.suppressedTotal.Collect(ch)
}
