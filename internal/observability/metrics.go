// Package observability exposes the Prometheus collectors of the dataset
// layer over HTTP.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edaschema/edaschema/internal/observability/metrics"
)

// Metrics bundles the collectors shared by the datastore and snapshot
// packages with the registry they live in.
type Metrics struct {
	registry  *prometheus.Registry
	Datastore *metrics.DatastoreMetrics
	Snapshot  *metrics.SnapshotMetrics
}

// NewMetrics registers every collector, plus the Go runtime and process
// collectors, with a fresh registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}

	ds, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("datastore metrics: %w", err)
	}
	snap, err := metrics.NewSnapshotMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("snapshot metrics: %w", err)
	}
	return &Metrics{registry: registry, Datastore: ds, Snapshot: snap}, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers mounts /metrics on mux
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      handlerLog{},
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}

// handlerLog forwards promhttp errors to the metrics module logger
type handlerLog struct{}

func (handlerLog) Println(v ...any) {
	log.Error(fmt.Sprint(v...))
}
