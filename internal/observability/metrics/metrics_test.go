package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatastoreMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation("file", OpAddData, "gates", StatusSuccess, 0.01)
	m.RecordOperation("file", OpAddData, "gates", StatusSuccess, 0.02)
	m.RecordOperation("file", OpGetRow, "gates", StatusNotFound, 0.001)
	m.RecordError("file", OpGetRow, "gates", "not-found")
	m.RecordRowsWritten("file", "gates", 42)
	m.RecordResultSize("file", "gates", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("file", OpAddData, "gates", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationErrorsTotal.WithLabelValues("file", OpGetRow, "gates", "not-found")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.rowsWrittenTotal.WithLabelValues("file", "gates")))

	m.UpdateConnectionMetrics("sqlite", 1, 2, 4, 0)
	m.UpdateConnectionMetrics("sqlite", 3, 0, 4, 5)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.poolConnections.WithLabelValues("sqlite", PoolInUse)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.poolConnections.WithLabelValues("sqlite", PoolIdle)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.poolWaitsTotal.WithLabelValues("sqlite")))

	count, err := testutil.GatherAndCount(registry, "edaschema_datastore_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = NewDatastoreMetrics(registry)
	assert.Error(t, err, "registering twice must fail")
}

func TestSnapshotMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewSnapshotMetrics(registry)
	require.NoError(t, err)

	m.RecordLookup(TierMemory, false)
	m.RecordLookup(TierDisk, true)
	m.RecordLookup(TierDisk, true)
	m.SetMemoryEntries(3)
	m.RecordSave(0.2, 4096)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookupsTotal.WithLabelValues(TierMemory, ResultMiss)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookupsTotal.WithLabelValues(TierDisk, ResultHit)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.entriesGauge))
}
