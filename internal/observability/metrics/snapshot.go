package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotMetrics contains Prometheus metrics for the snapshot cache
type SnapshotMetrics struct {
	lookupsTotal  *prometheus.CounterVec
	saveDuration  prometheus.Histogram
	snapshotBytes prometheus.Histogram
	entriesGauge  prometheus.Gauge

	collectors []prometheus.Collector
}

// NewSnapshotMetrics creates and registers new snapshot cache metrics
func NewSnapshotMetrics(registry *prometheus.Registry) (*SnapshotMetrics, error) {
	m := &SnapshotMetrics{}

	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edaschema_snapshot_lookups_total",
			Help: "Snapshot cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)
	m.saveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edaschema_snapshot_save_duration_seconds",
		Help:    "Time taken to encode and write a snapshot",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	})
	m.snapshotBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edaschema_snapshot_size_bytes",
		Help:    "Compressed size of written snapshots",
		Buckets: prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount12),
	})
	m.entriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edaschema_snapshot_memory_entries",
		Help: "Number of snapshots held in memory",
	})
	m.collectors = []prometheus.Collector{m.lookupsTotal, m.saveDuration, m.snapshotBytes, m.entriesGauge}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordLookup records a cache lookup in tier
func (m *SnapshotMetrics) RecordLookup(tier string, hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	m.lookupsTotal.WithLabelValues(tier, result).Inc()
}

// RecordSave records a written snapshot
func (m *SnapshotMetrics) RecordSave(seconds float64, bytes int64) {
	m.saveDuration.Observe(seconds)
	m.snapshotBytes.Observe(float64(bytes))
}

// SetMemoryEntries sets the in-memory entry count
func (m *SnapshotMetrics) SetMemoryEntries(n int) {
	m.entriesGauge.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *SnapshotMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *SnapshotMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
