// Package dataset composes the schema, the entity model and one storage
// backend into load and dump operations per artifact kind: netlists,
// standard cells, timing paths, interconnects and clock trees. It also
// exposes tables as frames, filters them with expressions and keeps
// binary snapshots of the whole dataset.
package dataset

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
	"github.com/edaschema/edaschema/internal/observability"
	"github.com/edaschema/edaschema/internal/observability/metrics"
	"github.com/edaschema/edaschema/internal/schema"
	"github.com/edaschema/edaschema/internal/snapshot"
)

const (
	createInitialInterval = 200 * time.Millisecond
	createMaxElapsed      = 15 * time.Second
	createMaxRetries      = 5
)

// Options are the optional collaborators of a Dataset
type Options struct {
	Metrics   *observability.Metrics // nil disables instrumentation
	Snapshots *snapshot.Cache        // nil disables snapshots
	Logger    logger.Logger
}

// Dataset owns one open backend connection. It is not safe for concurrent
// writers.
type Dataset struct {
	store     *datastore.InstrumentedStore
	md        *schema.Metadata
	snapshots *snapshot.Cache
	log       logger.Logger

	// newBackOff builds the retry policy of CreateTables
	newBackOff func() backoff.BackOff
}

// New wraps an already opened backend
func New(store datastore.Interface, md *schema.Metadata, opts Options) *Dataset {
	log := opts.Logger
	if log == nil {
		log = logger.Global().Module("dataset")
	}
	var m *datastore.Metrics
	if opts.Metrics != nil {
		m = opts.Metrics.Datastore
	}
	instrumented, ok := store.(*datastore.InstrumentedStore)
	if !ok {
		instrumented = datastore.NewInstrumentedStore(store, m, log.Module("datastore"))
	}
	return &Dataset{
		store:      instrumented,
		md:         md,
		snapshots:  opts.Snapshots,
		log:        log,
		newBackOff: defaultBackOff,
	}
}

// Open selects the backend named in settings, opens it and, when enabled,
// the snapshot cache. Tables are not created; see CreateTables.
func Open(ctx context.Context, settings *conf.Settings, opts Options) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Global().Module("dataset")
	}
	md := schema.DatasetMetadata()

	store, err := datastore.New(settings, md, log.Module("datastore"))
	if err != nil {
		return nil, err
	}
	if err := store.Open(ctx); err != nil {
		return nil, err
	}

	if opts.Snapshots == nil && settings.Snapshot.Enabled {
		var sm *metrics.SnapshotMetrics
		if opts.Metrics != nil {
			sm = opts.Metrics.Snapshot
		}
		cache, err := snapshot.NewCache(settings.Snapshot, sm, log.Module("snapshot"))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts.Snapshots = cache
	}

	log.Info("dataset opened",
		logger.String("backend", store.Backend()),
		logger.Bool("snapshots", opts.Snapshots != nil))
	opts.Logger = log
	return New(store, md, opts), nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = createInitialInterval
	b.MaxElapsedTime = createMaxElapsed
	return backoff.WithMaxRetries(b, createMaxRetries)
}

// Close releases the backend connection and the in-memory snapshot tier
func (d *Dataset) Close() error {
	if d.snapshots != nil {
		d.snapshots.Flush()
	}
	return d.store.Close()
}

// Store returns the instrumented backend
func (d *Dataset) Store() datastore.Interface { return d.store }

// Metadata returns the table layout
func (d *Dataset) Metadata() *schema.Metadata { return d.md }

// Backend returns the backend kind
func (d *Dataset) Backend() string { return d.store.Backend() }

// trace attaches a trace id to ctx and returns a logger carrying it
func (d *Dataset) trace(ctx context.Context, operation string, fields ...logger.Field) (context.Context, logger.Logger) {
	ctx, _ = logger.NewTraceContext(ctx)
	log := d.log.WithContext(ctx).With(logger.String("operation", operation))
	if len(fields) > 0 {
		log = log.With(fields...)
	}
	return ctx, log
}

// CreateTables creates every dataset table. Creation is idempotent and is
// retried with exponential backoff on backend errors. Validation and
// not-found errors are returned at once.
func (d *Dataset) CreateTables(ctx context.Context) error {
	ctx, log := d.trace(ctx, "create_tables")
	attempt := 0
	op := func() error {
		attempt++
		err := d.store.CreateDatasetTables(ctx, d.md)
		if err == nil {
			return nil
		}
		if !errors.IsBackend(err) {
			return backoff.Permanent(err)
		}
		log.Warn("creating dataset tables failed, retrying",
			logger.Int("attempt", attempt),
			logger.Error(err))
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(d.newBackOff(), ctx)); err != nil {
		return err
	}
	log.Info("dataset tables ready",
		logger.Int("tables", len(d.md.Tables())),
		logger.Int("attempts", attempt))
	return nil
}
