// Package observability wires the Prometheus metric sets into one registry
// and serves them.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Weather      *metrics.WeatherMetrics
	Datastore    *metrics.DatastoreMetrics
	Location     *metrics.LocationMetrics
	Backup       *metrics.BackupMetrics
	CatchFeed    *metrics.CatchFeedMetrics
	Notification *metrics.NotificationMetrics
	API          *metrics.APIMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors
// on a private registry together with the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}
	var err error

	if m.Weather, err = metrics.NewWeatherMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create weather metrics: %w", err)
	}
	if m.Datastore, err = metrics.NewDatastoreMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}
	if m.Location, err = metrics.NewLocationMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create location metrics: %w", err)
	}
	if m.Backup, err = metrics.NewBackupMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create backup metrics: %w", err)
	}
	if m.CatchFeed, err = metrics.NewCatchFeedMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create catch feed metrics: %w", err)
	}
	if m.Notification, err = metrics.NewNotificationMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}
	if m.API, err = metrics.NewAPIMetrics(registry); err != nil {
		return nil, fmt.Errorf("failed to create API metrics: %w", err)
	}

	return m, nil
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
