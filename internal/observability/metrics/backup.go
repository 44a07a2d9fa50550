package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BackupMetrics contains Prometheus metrics for database backups
type BackupMetrics struct {
	operationMetrics
	registry *prometheus.Registry

	backupSize    prometheus.Histogram
	lastSuccess   prometheus.Gauge
	targetUploads *prometheus.CounterVec
}

// NewBackupMetrics creates and registers new backup metrics
func NewBackupMetrics(registry *prometheus.Registry) (*BackupMetrics, error) {
	m := &BackupMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BackupMetrics) initMetrics() {
	// Backups and uploads: 100ms to ~50s
	m.operationMetrics = newOperationMetrics("backup",
		prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10))

	m.backupSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "size_bytes",
		Help:      "Size of database backup files",
		// 1KB to ~4GB
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount12),
	})
	m.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "backup",
		Name:      "last_success_timestamp_seconds",
		Help:      "Time of the last successful backup",
	})
	m.targetUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backup",
			Name:      "target_uploads_total",
			Help:      "Backup uploads per target",
		},
		[]string{"target", "status"},
	)
}

func (m *BackupMetrics) getCollectors() []prometheus.Collector {
	return append(m.collectors(), m.backupSize, m.lastSuccess, m.targetUploads)
}

// Describe implements the Collector interface
func (m *BackupMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *BackupMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordBackupSize records the size of a completed backup and marks the time
func (m *BackupMetrics) RecordBackupSize(sizeBytes int64) {
	m.backupSize.Observe(float64(sizeBytes))
	m.lastSuccess.SetToCurrentTime()
}

// RecordTargetUpload records an upload to a backup target
func (m *BackupMetrics) RecordTargetUpload(target, status string) {
	m.targetUploads.WithLabelValues(target, status).Inc()
}
