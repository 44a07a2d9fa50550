// Package metrics provides weather client metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WeatherMetrics contains Prometheus metrics for weather client operations
type WeatherMetrics struct {
	operationMetrics
	registry *prometheus.Registry

	cacheResultsTotal *prometheus.CounterVec
	statusCodesTotal  *prometheus.CounterVec

	temperatureGauge prometheus.Gauge
	pressureGauge    prometheus.Gauge
	windSpeedGauge   prometheus.Gauge
	fishingGoodGauge prometheus.Gauge
}

// NewWeatherMetrics creates and registers new weather metrics
func NewWeatherMetrics(registry *prometheus.Registry) (*WeatherMetrics, error) {
	m := &WeatherMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WeatherMetrics) initMetrics() {
	// API round trips: 100ms to ~50s, past the client timeout
	m.operationMetrics = newOperationMetrics("weather",
		prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10))

	m.cacheResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "cache_results_total",
			Help:      "Weather response cache lookups by result",
		},
		[]string{"endpoint", "result"}, // result: hit, miss
	)

	m.statusCodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "api_responses_total",
			Help:      "Weather API responses by HTTP status code",
		},
		[]string{"endpoint", "status_code"},
	)

	m.temperatureGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "weather",
		Name:      "temperature_fahrenheit",
		Help:      "Temperature of the latest current-conditions snapshot",
	})
	m.pressureGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "weather",
		Name:      "pressure_hpa",
		Help:      "Pressure of the latest current-conditions snapshot in hPa",
	})
	m.windSpeedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "weather",
		Name:      "wind_speed_mph",
		Help:      "Wind speed of the latest current-conditions snapshot",
	})
	m.fishingGoodGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "weather",
		Name:      "fishing_good",
		Help:      "1 when the latest snapshot rates as good fishing weather, 0 otherwise",
	})
}

func (m *WeatherMetrics) getCollectors() []prometheus.Collector {
	return append(m.collectors(),
		m.cacheResultsTotal,
		m.statusCodesTotal,
		m.temperatureGauge,
		m.pressureGauge,
		m.windSpeedGauge,
		m.fishingGoodGauge,
	)
}

// Describe implements the Collector interface
func (m *WeatherMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *WeatherMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordCacheResult records a response cache lookup
func (m *WeatherMetrics) RecordCacheResult(endpoint string, hit bool) {
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.cacheResultsTotal.WithLabelValues(endpoint, result).Inc()
}

// RecordStatusCode records the HTTP status returned by the weather API
func (m *WeatherMetrics) RecordStatusCode(endpoint string, statusCode int) {
	m.statusCodesTotal.WithLabelValues(endpoint, prometheusStatus(statusCode)).Inc()
}

// UpdateConditions updates the current-conditions gauges
func (m *WeatherMetrics) UpdateConditions(temperatureF, pressureHPa, windMph float64, fishingGood bool) {
	m.temperatureGauge.Set(temperatureF)
	m.pressureGauge.Set(pressureHPa)
	m.windSpeedGauge.Set(windMph)
	if fishingGood {
		m.fishingGoodGauge.Set(1)
	} else {
		m.fishingGoodGauge.Set(0)
	}
}
