package datastore

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/observability/metrics"
	"github.com/edaschema/edaschema/internal/schema"
)

func TestInstrumentedStoreRecordsOutcomes(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewDatastoreMetrics(registry)
	require.NoError(t, err)
	s := NewInstrumentedStore(openFileStore(t), m, testLogger)

	require.NoError(t, s.CreateDatasetTables(ctx, nil))
	require.NoError(t, s.AddTableData(ctx, schema.TableGates, []Row{
		gateRow(testKey, "g1", "INVX1"),
		gateRow(testKey, "g2", "BUFX2"),
	}))
	_, err = s.GetTableRow(ctx, schema.TableGates, Filter{"name": "g9"})
	require.True(t, errors.IsNotFound(err))
	err = s.AddTableRow(ctx, schema.TableGates, gateRow(testKey, "g1", "INVX1"))
	require.Error(t, err)

	expected := `
# HELP edaschema_datastore_rows_written_total Total number of table rows written
# TYPE edaschema_datastore_rows_written_total counter
edaschema_datastore_rows_written_total{backend="file",table="gates"} 2
# HELP edaschema_datastore_operation_errors_total Total number of storage backend errors by category
# TYPE edaschema_datastore_operation_errors_total counter
edaschema_datastore_operation_errors_total{backend="file",category="conflict",operation="add_row",table="gates"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"edaschema_datastore_rows_written_total",
		"edaschema_datastore_operation_errors_total"))

	n, err := testutil.GatherAndCount(registry, "edaschema_datastore_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n, "create, add_data, get_row not_found, add_row error")
}

func TestInstrumentedStoreLoadNetlist(t *testing.T) {
	t.Parallel()

	for name, open := range map[string]openStore{"file": openFileStore, "sqlite": openSQLiteStore} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := NewInstrumentedStore(open(t), nil, testLogger)
			seedNetlist(t, s, testKey)

			n, err := s.LoadNetlist(t.Context(), testKey)
			require.NoError(t, err)
			assert.Len(t, n.Ports, 2)
		})
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Storage.Backend = conf.BackendFile
	settings.Storage.File.Path = t.TempDir()
	s, err := New(settings, nil, testLogger)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, s.Backend())

	settings.Storage.Backend = conf.BackendSQLite
	settings.Storage.SQLite.Path = t.TempDir() + "/x.db"
	s, err = New(settings, nil, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)

	settings.Storage.Backend = conf.BackendMongoDB
	s, err = New(settings, nil, testLogger)
	require.NoError(t, err)
	assert.Equal(t, BackendMongoDB, s.Backend())

	settings.Storage.Backend = "redis"
	_, err = New(settings, nil, testLogger)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
