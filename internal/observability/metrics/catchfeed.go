package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatchFeedMetrics tracks the MQTT catch feed: whether the broker is
// reachable and how catch messages fare per topic.
type CatchFeedMetrics struct {
	registry *prometheus.Registry

	brokerUp        prometheus.Gauge
	lastConnected   prometheus.Gauge
	connectionsLost prometheus.Counter
	reconnects      prometheus.Counter
	catchesSent     *prometheus.CounterVec
	sendDuration    *prometheus.HistogramVec
	catchBytes      prometheus.Histogram
}

// NewCatchFeedMetrics creates and registers the catch feed metrics
func NewCatchFeedMetrics(registry *prometheus.Registry) (*CatchFeedMetrics, error) {
	m := &CatchFeedMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CatchFeedMetrics) initMetrics() {
	m.brokerUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catch_feed",
		Name:      "broker_up",
		Help:      "1 while the catch feed is connected to its broker",
	})
	m.lastConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "catch_feed",
		Name:      "last_connected_timestamp_seconds",
		Help:      "Unix time the broker connection was last established",
	})
	m.connectionsLost = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catch_feed",
		Name:      "connections_lost_total",
		Help:      "Broker connections dropped while the feed was running",
	})
	m.reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catch_feed",
		Name:      "reconnects_total",
		Help:      "Attempts to reconnect to the broker",
	})
	m.catchesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catch_feed",
			Name:      "catches_sent_total",
			Help:      "Catch messages handed to the broker",
		},
		[]string{"topic", "status"},
	)
	m.sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catch_feed",
			Name:      "send_duration_seconds",
			Help:      "Time until the broker acknowledged a catch message",
			Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		},
		[]string{"topic"},
	)
	m.catchBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "catch_feed",
		Name:      "catch_message_bytes",
		Help:      "Size of published catch messages",
		Buckets:   prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})
}

// SetBrokerUp records the broker connection state
func (m *CatchFeedMetrics) SetBrokerUp(up bool) {
	if !up {
		m.brokerUp.Set(0)
		return
	}
	m.brokerUp.Set(1)
	m.lastConnected.SetToCurrentTime()
}

// RecordConnectionLost counts a dropped broker connection
func (m *CatchFeedMetrics) RecordConnectionLost() {
	m.brokerUp.Set(0)
	m.connectionsLost.Inc()
}

// RecordReconnect counts a reconnect attempt
func (m *CatchFeedMetrics) RecordReconnect() {
	m.reconnects.Inc()
}

// RecordCatchSent records one publish of a catch message to topic. Size is
// only observed for messages the broker accepted.
func (m *CatchFeedMetrics) RecordCatchSent(topic string, sizeBytes int, took time.Duration, err error) {
	m.sendDuration.WithLabelValues(topic).Observe(took.Seconds())
	if err != nil {
		m.catchesSent.WithLabelValues(topic, StatusError).Inc()
		return
	}
	m.catchesSent.WithLabelValues(topic, StatusSuccess).Inc()
	m.catchBytes.Observe(float64(sizeBytes))
}

// Describe implements the Collector interface
func (m *CatchFeedMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.brokerUp.Describe(ch)
	m.lastConnected.Describe(ch)
	m.connectionsLost.Describe(ch)
	m.reconnects.Describe(ch)
	m.catchesSent.Describe(ch)
	m.sendDuration.Describe(ch)
	m.catchBytes.Describe(ch)
}

// Collect implements the Collector interface
func (m *CatchFeedMetrics) Collect(ch chan<- prometheus.Metric) {
	m.brokerUp.Collect(ch)
	m.lastConnected.Collect(ch)
	m.connectionsLost.Collect(ch)
	m.reconnects.Collect(ch)
	m.catchesSent.Collect(ch)
	m.sendDuration.Collect(ch)
	m.catchBytes.Collect(ch)
}
