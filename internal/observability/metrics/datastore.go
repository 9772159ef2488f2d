package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for storage backend operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	operationsTotal      *prometheus.CounterVec
	operationDuration    *prometheus.HistogramVec
	operationErrorsTotal *prometheus.CounterVec
	resultSizeHist       *prometheus.HistogramVec
	rowsWrittenTotal     *prometheus.CounterVec
	poolConnections      *prometheus.GaugeVec
	poolWaitsTotal       *prometheus.CounterVec

	collectors []prometheus.Collector
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
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edaschema_datastore_operations_total",
			Help: "Total number of storage backend operations",
		},
		[]string{"backend", "operation", "table", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edaschema_datastore_operation_duration_seconds",
			Help:    "Time taken for storage backend operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"backend", "operation", "table"},
	)

	m.operationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edaschema_datastore_operation_errors_total",
			Help: "Total number of storage backend errors by category",
		},
		[]string{"backend", "operation", "table", "category"},
	)

	m.resultSizeHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edaschema_datastore_result_size_rows",
			Help:    "Number of rows returned by table reads",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"backend", "table"},
	)

	m.rowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edaschema_datastore_rows_written_total",
			Help: "Total number of table rows written",
		},
		[]string{"backend", "table"},
	)

	m.poolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edaschema_datastore_pool_connections",
			Help: "Connections of the SQL connection pool by state",
		},
		[]string{"backend", "state"},
	)

	m.poolWaitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edaschema_datastore_pool_waits_total",
			Help: "Total number of waits for a free pooled connection",
		},
		[]string{"backend"},
	)

	m.collectors = []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.operationErrorsTotal,
		m.resultSizeHist,
		m.rowsWrittenTotal,
		m.poolConnections,
		m.poolWaitsTotal,
	}
}

// RecordOperation records an operation outcome and its duration
func (m *DatastoreMetrics) RecordOperation(backend, operation, table, status string, seconds float64) {
	m.operationsTotal.WithLabelValues(backend, operation, table, status).Inc()
	m.operationDuration.WithLabelValues(backend, operation, table).Observe(seconds)
}

// RecordError records a failed operation by error category
func (m *DatastoreMetrics) RecordError(backend, operation, table, category string) {
	m.operationErrorsTotal.WithLabelValues(backend, operation, table, category).Inc()
}

// RecordResultSize records the number of rows a read returned
func (m *DatastoreMetrics) RecordResultSize(backend, table string, rows int) {
	m.resultSizeHist.WithLabelValues(backend, table).Observe(float64(rows))
}

// RecordRowsWritten adds to the written row counter
func (m *DatastoreMetrics) RecordRowsWritten(backend, table string, rows int) {
	m.rowsWrittenTotal.WithLabelValues(backend, table).Add(float64(rows))
}

// UpdateConnectionMetrics sets the pool gauges. newWaits is the number of
// waits since the previous update.
func (m *DatastoreMetrics) UpdateConnectionMetrics(backend string, inUse, idle, maxOpen int, newWaits int64) {
	m.poolConnections.WithLabelValues(backend, PoolInUse).Set(float64(inUse))
	m.poolConnections.WithLabelValues(backend, PoolIdle).Set(float64(idle))
	m.poolConnections.WithLabelValues(backend, PoolMaxOpen).Set(float64(maxOpen))
	if newWaits > 0 {
		m.poolWaitsTotal.WithLabelValues(backend).Add(float64(newWaits))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}
