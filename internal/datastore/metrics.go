package datastore

import "github.com/edaschema/edaschema/internal/observability/metrics"

// Metrics are the collectors recorded by InstrumentedStore and MonitorPool
type Metrics = metrics.DatastoreMetrics
