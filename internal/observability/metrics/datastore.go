// Package metrics provides datastore metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for catch log operations
type DatastoreMetrics struct {
	operationMetrics
	registry *prometheus.Registry

	databaseSize      prometheus.Gauge
	tableRowCount     *prometheus.GaugeVec
	transactionsTotal *prometheus.CounterVec
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	// Queries: 1ms to ~1s
	m.operationMetrics = newOperationMetrics("datastore",
		prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10))

	m.databaseSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "datastore",
		Name:      "database_size_bytes",
		Help:      "Size of the catch log database file",
	})

	m.tableRowCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "table_rows",
			Help:      "Number of rows per table",
		},
		[]string{"table"},
	)

	m.transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datastore",
			Name:      "transactions_total",
			Help:      "Total number of multi-table transactions",
		},
		[]string{"operation", "status"},
	)
}

func (m *DatastoreMetrics) getCollectors() []prometheus.Collector {
	return append(m.collectors(), m.databaseSize, m.tableRowCount, m.transactionsTotal)
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// UpdateDatabaseSize sets the database size gauge
func (m *DatastoreMetrics) UpdateDatabaseSize(sizeBytes int64) {
	m.databaseSize.Set(float64(sizeBytes))
}

// UpdateTableRowCount sets the row count for a table
func (m *DatastoreMetrics) UpdateTableRowCount(table string, rowCount int64) {
	m.tableRowCount.WithLabelValues(table).Set(float64(rowCount))
}

// RecordTransaction records the outcome of a multi-table write
func (m *DatastoreMetrics) RecordTransaction(operation, status string) {
	m.transactionsTotal.WithLabelValues(operation, status).Inc()
}
