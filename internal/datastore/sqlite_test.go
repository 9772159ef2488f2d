package datastore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/observability/metrics"
	"github.com/edaschema/edaschema/internal/schema"
)

func openSQLiteStore(t *testing.T) Interface {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "dataset.db"), nil, testLogger)
	require.NoError(t, s.Open(t.Context()))
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, openSQLiteStore)
}

func TestSQLiteStoreLoadNetlist(t *testing.T) {
	t.Parallel()
	s := openSQLiteStore(t).(*SQLStore)
	seedNetlist(t, s, testKey)

	n, err := s.LoadNetlist(t.Context(), testKey)
	require.NoError(t, err)
	assert.Len(t, n.Gates, 2)
	assert.True(t, n.Graph().HasEdge("n0", "g2"))
}

func TestSQLiteStoreMetadataTable(t *testing.T) {
	t.Parallel()
	s := openSQLiteStore(t).(*SQLStore)
	ctx := t.Context()
	require.NoError(t, s.CreateDatasetTables(ctx, nil))
	require.NoError(t, s.CreateDatasetTables(ctx, nil))

	var entries []tableEntry
	require.NoError(t, s.DB().Order("entity").Find(&entries).Error)
	assert.Len(t, entries, len(schema.DatasetMetadata().Names()))
}

func TestSQLiteStoreRequiresTables(t *testing.T) {
	t.Parallel()
	s := openSQLiteStore(t)

	_, err := s.GetTableData(t.Context(), schema.TableGates, nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestSQLiteStoreClosed(t *testing.T) {
	t.Parallel()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "dataset.db"), nil, testLogger)

	_, err := s.GetGraphData(t.Context(), schema.TableNetlists, "k")
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.NoError(t, s.Close(), "closing an unopened store is a no-op")
}

func TestFingerprintIsBackendIndependent(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	var prints []string
	for _, open := range []openStore{openFileStore, openSQLiteStore} {
		s := open(t)
		require.NoError(t, s.CreateDatasetTables(ctx, nil))
		require.NoError(t, s.AddTableData(ctx, schema.TableGates, []Row{
			gateRow(testKey, "g2", "BUFX2"),
			gateRow(testKey, "g1", "INVX1"),
		}))
		require.NoError(t, s.AddGraphData(ctx, schema.TableNetlists, testKey.String(), graph.Dict{
			Nodes: map[string]graph.Attrs{"g1": gateNode(), "g2": gateNode()},
			Edges: []graph.Edge{{Source: "g1", Target: "g2"}},
		}))
		fp, err := Fingerprint(ctx, s, nil)
		require.NoError(t, err)
		prints = append(prints, fp)
	}
	assert.Equal(t, prints[0], prints[1])
}

func TestSQLiteStorePoolMonitor(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m, err := metrics.NewDatastoreMetrics(registry)
	require.NoError(t, err)

	s := NewSQLiteStore(filepath.Join(t.TempDir(), "dataset.db"), nil, testLogger)
	assert.Zero(t, s.samplePool(m, 0), "closed store is skipped")

	require.NoError(t, s.Open(t.Context()))
	s.MonitorPool(time.Millisecond, m)
	s.MonitorPool(time.Millisecond, m)
	require.NoError(t, s.CreateDatasetTables(t.Context(), nil))

	s.samplePool(m, 0)
	n, err := testutil.GatherAndCount(registry, "edaschema_datastore_pool_connections")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Close())
	assert.Nil(t, s.stopMonitor)
}

func TestSQLiteStoreOpenUnwritableDir(t *testing.T) {
	t.Parallel()
	parent := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))

	s := NewSQLiteStore(filepath.Join(parent, "dataset.db"), nil, testLogger)
	err := s.Open(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
	assert.Nil(t, s.DB())
}
