package datastore

import (
	"context"
	"time"

	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/observability/metrics"
	"github.com/edaschema/edaschema/internal/schema"
)

// InstrumentedStore records the duration, outcome and size of every call
// of the wrapped backend
type InstrumentedStore struct {
	Interface
	metrics *Metrics
	log     logger.Logger
}

// NewInstrumentedStore wraps store. A nil m disables metrics and keeps the
// debug logging. Connection pools of SQL backends are sampled into m until
// the store is closed.
func NewInstrumentedStore(store Interface, m *Metrics, log logger.Logger) *InstrumentedStore {
	if log == nil {
		log = getLogger()
	}
	if pm, ok := store.(PoolMonitor); ok && m != nil {
		pm.MonitorPool(poolSampleInterval, m)
	}
	return &InstrumentedStore{Interface: store, metrics: m, log: log}
}

// Unwrap returns the wrapped backend
func (s *InstrumentedStore) Unwrap() Interface { return s.Interface }

func statusOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.IsNotFound(err):
		return metrics.StatusNotFound
	case errors.IsValidation(err):
		return metrics.StatusInvalid
	default:
		return metrics.StatusError
	}
}

func categoryOf(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return ee.GetCategory()
	}
	return string(errors.CategoryGeneric)
}

// observe records one call
func (s *InstrumentedStore) observe(ctx context.Context, operation, table string, start time.Time, err error) {
	elapsed := time.Since(start)
	backend := s.Backend()
	status := statusOf(err)

	if s.metrics != nil {
		s.metrics.RecordOperation(backend, operation, table, status, elapsed.Seconds())
		if status == metrics.StatusError {
			s.metrics.RecordError(backend, operation, table, categoryOf(err))
		}
	}

	log := s.log.WithContext(ctx)
	if status == metrics.StatusError {
		log.Warn("datastore operation failed",
			logger.String("backend", backend),
			logger.String("operation", operation),
			logger.Table(table),
			logger.Duration("duration", elapsed),
			logger.Error(err))
		return
	}
	log.Debug("datastore operation",
		logger.String("backend", backend),
		logger.String("operation", operation),
		logger.Table(table),
		logger.String("status", status),
		logger.Duration("duration", elapsed))
}

func (s *InstrumentedStore) CreateDatasetTables(ctx context.Context, md *schema.Metadata) (err error) {
	defer func(start time.Time) { s.observe(ctx, metrics.OpCreateTables, "", start, err) }(time.Now())
	return s.Interface.CreateDatasetTables(ctx, md)
}

func (s *InstrumentedStore) AddTableRow(ctx context.Context, table string, row Row) (err error) {
	defer func(start time.Time) {
		s.observe(ctx, metrics.OpAddRow, table, start, err)
		if err == nil && s.metrics != nil {
			s.metrics.RecordRowsWritten(s.Backend(), table, 1)
		}
	}(time.Now())
	return s.Interface.AddTableRow(ctx, table, row)
}

func (s *InstrumentedStore) AddTableData(ctx context.Context, table string, rows []Row) (err error) {
	defer func(start time.Time) {
		s.observe(ctx, metrics.OpAddData, table, start, err)
		if err == nil && s.metrics != nil {
			s.metrics.RecordRowsWritten(s.Backend(), table, len(rows))
		}
	}(time.Now())
	return s.Interface.AddTableData(ctx, table, rows)
}

func (s *InstrumentedStore) GetTableRow(ctx context.Context, table string, filter Filter) (row Row, err error) {
	defer func(start time.Time) { s.observe(ctx, metrics.OpGetRow, table, start, err) }(time.Now())
	return s.Interface.GetTableRow(ctx, table, filter)
}

func (s *InstrumentedStore) GetTableData(ctx context.Context, table string, filter Filter) (rows []Row, err error) {
	defer func(start time.Time) {
		s.observe(ctx, metrics.OpGetData, table, start, err)
		if err == nil && s.metrics != nil {
			s.metrics.RecordResultSize(s.Backend(), table, len(rows))
		}
	}(time.Now())
	return s.Interface.GetTableData(ctx, table, filter)
}

func (s *InstrumentedStore) AddGraphData(ctx context.Context, table, key string, d graph.Dict) (err error) {
	defer func(start time.Time) { s.observe(ctx, metrics.OpAddGraph, table, start, err) }(time.Now())
	return s.Interface.AddGraphData(ctx, table, key, d)
}

func (s *InstrumentedStore) GetGraphData(ctx context.Context, table, key string) (d graph.Dict, err error) {
	defer func(start time.Time) { s.observe(ctx, metrics.OpGetGraph, table, start, err) }(time.Now())
	return s.Interface.GetGraphData(ctx, table, key)
}

func (s *InstrumentedStore) ListGraphKeys(ctx context.Context, table string) (keys []string, err error) {
	defer func(start time.Time) { s.observe(ctx, metrics.OpListGraphs, table, start, err) }(time.Now())
	return s.Interface.ListGraphKeys(ctx, table)
}

// NetlistLoader is implemented by backends with a native netlist loader
type NetlistLoader interface {
	LoadNetlist(ctx context.Context, key schema.NetlistKey) (*entity.Netlist, error)
}

// LoadNetlist uses the native loader of the wrapped backend when it has
// one and AssembleNetlist otherwise. Calls of the wrapped loader bypass
// the instrumentation of individual reads.
func (s *InstrumentedStore) LoadNetlist(ctx context.Context, key schema.NetlistKey) (n *entity.Netlist, err error) {
	defer func(start time.Time) { s.observe(ctx, metrics.OpLoadNetlist, schema.TableNetlists, start, err) }(time.Now())
	if loader, ok := s.Interface.(NetlistLoader); ok {
		return loader.LoadNetlist(ctx, key)
	}
	return AssembleNetlist(ctx, s, key, s.log)
}
