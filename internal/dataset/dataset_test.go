package dataset

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/datastore"
	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/schema"
)

// assertNetlistsEqual compares the stored fields, members and graphs
func assertNetlistsEqual(t *testing.T, want, got *entity.Netlist) {
	t.Helper()
	assert.Equal(t, entity.AsDict(want), entity.AsDict(got))
	if diff := cmp.Diff(want.GraphDict(), got.GraphDict(), equateGraphs); diff != "" {
		t.Errorf("netlist graph mismatch (-want +got):\n%s", diff)
	}

	require.ElementsMatch(t, slices.Collect(maps.Keys(want.Gates)), slices.Collect(maps.Keys(got.Gates)))
	for name, g := range want.Gates {
		assert.Equal(t, entity.AsDict(g), entity.AsDict(got.Gates[name]), "gate %s", name)
	}
	for name, p := range want.Ports {
		assert.Equal(t, entity.AsDict(p), entity.AsDict(got.Ports[name]), "port %s", name)
	}
	for name, net := range want.Nets {
		loaded := got.Nets[name]
		require.NotNil(t, loaded, "net %s", name)
		assert.Equal(t, entity.AsDict(net), entity.AsDict(loaded), "net %s", name)
		assert.Len(t, loaded.Segments, len(net.Segments), "net %s", name)
		if diff := cmp.Diff(net.GraphDict(), loaded.GraphDict(), equateGraphs); diff != "" {
			t.Errorf("net %s graph mismatch (-want +got):\n%s", name, diff)
		}
	}

	assert.Equal(t, entity.AsDict(want.AreaMetrics), entity.AsDict(got.AreaMetrics))
	assert.Equal(t, entity.AsDict(want.CellMetrics), entity.AsDict(got.CellMetrics))
	assert.Equal(t, entity.AsDict(want.CriticalPathMetrics), entity.AsDict(got.CriticalPathMetrics))
	assert.Nil(t, got.PowerMetrics)

	require.Len(t, got.TimingPaths, len(want.TimingPaths))
	for k, p := range want.TimingPaths {
		loaded := got.TimingPaths[k]
		require.NotNil(t, loaded, "timing path %v", k)
		assert.Equal(t, entity.AsDict(p), entity.AsDict(loaded))
		if diff := cmp.Diff(p.GraphDict(), loaded.GraphDict(), equateGraphs); diff != "" {
			t.Errorf("timing path graph mismatch (-want +got):\n%s", diff)
		}
	}

	require.Len(t, got.ClockTrees, len(want.ClockTrees))
	for source, ct := range want.ClockTrees {
		loaded := got.ClockTrees[source]
		require.NotNil(t, loaded, "clock tree %s", source)
		assert.Equal(t, entity.AsDict(ct), entity.AsDict(loaded))
		if diff := cmp.Diff(ct.GraphDict(), loaded.GraphDict(), equateGraphs); diff != "" {
			t.Errorf("clock tree graph mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestNetlistRoundTrip(t *testing.T) {
	t.Parallel()
	for name, open := range backends {
		for _, key := range []schema.NetlistKey{placeKey, routeKey} {
			t.Run(name+"/"+key.Phase, func(t *testing.T) {
				t.Parallel()
				ctx := t.Context()
				d := newDataset(t, open, Options{})
				cells := sampleCells()
				want := sampleNetlist(t, cells)

				require.NoError(t, d.DumpNetlist(ctx, key, want))
				got, err := d.LoadNetlist(ctx, key)
				require.NoError(t, err)
				assertNetlistsEqual(t, want, got)

				netKeys, err := d.Store().ListGraphKeys(ctx, schema.TableNets)
				require.NoError(t, err)
				if key.Phase == datastore.PhaseRoute {
					assert.Equal(t, []string{schema.NetGraphKey(key, "n1")}, netKeys, "only routed nets with segments")
				} else {
					assert.Empty(t, netKeys)
				}
			})
		}
	}
}

func TestDumpNetlistTwiceConflicts(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	d := newDataset(t, openFileStore, Options{})
	n := sampleNetlist(t, sampleCells())

	require.NoError(t, d.DumpNetlist(ctx, placeKey, n))
	err := d.DumpNetlist(ctx, placeKey, n)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))
	assert.True(t, errors.IsBackend(err))
}

func TestDumpNetlistValidatesBeforeWriting(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	d := newDataset(t, openFileStore, Options{})

	n := sampleNetlist(t, sampleCells())
	n.Gates["g1"].NoOfFanouts = -1
	err := d.DumpNetlist(ctx, placeKey, n)
	assert.True(t, errors.IsValidation(err))

	rows, err := d.Store().GetTableData(ctx, schema.TableNetlists, nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "nothing is written for an invalid netlist")

	err = d.DumpNetlist(ctx, schema.NetlistKey{Circuit: "aes", NetlistID: "n1", Phase: "synth"}, sampleNetlist(t, sampleCells()))
	assert.True(t, errors.IsValidation(err))
}

func TestLoadNetlistErrors(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	d := newDataset(t, openFileStore, Options{})

	_, err := d.LoadNetlist(ctx, placeKey)
	assert.True(t, errors.IsNotFound(err))

	_, err = d.LoadNetlist(ctx, schema.NetlistKey{Circuit: "aes"})
	assert.True(t, errors.IsValidation(err))
}

func TestPerKindLoads(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	d := newDataset(t, openSQLiteStore, Options{})
	cells := sampleCells()
	n := sampleNetlist(t, cells)
	require.NoError(t, d.DumpNetlist(ctx, routeKey, n))

	t.Run("TimingPath", func(t *testing.T) {
		pk := entity.TimingPathKey{Startpoint: "in", Endpoint: "ff1/D", PathType: entity.PathMax}
		p, err := d.LoadTimingPath(ctx, routeKey, pk)
		require.NoError(t, err)
		var names []string
		for _, pt := range p.OrderedPoints() {
			names = append(names, pt.Name)
		}
		assert.Equal(t, []string{"in", "g1/A", "g1/Z", "ff1/D"}, names)
		assert.True(t, p.IsCriticalPath)
		assert.Equal(t, 3, p.Graph().EdgeCount())

		_, err = d.LoadTimingPath(ctx, routeKey, entity.TimingPathKey{Startpoint: "in", Endpoint: "ff1/D", PathType: entity.PathMin})
		assert.True(t, errors.IsNotFound(err))

		paths, err := d.LoadTimingPaths(ctx, routeKey)
		require.NoError(t, err)
		assert.Len(t, paths, 1)
	})

	t.Run("Interconnect", func(t *testing.T) {
		net, err := d.LoadInterconnect(ctx, routeKey, "n1")
		require.NoError(t, err)
		assert.Len(t, net.Segments, 2)
		assert.True(t, net.Graph().HasEdge("s1", "s2"))
		require.NotNil(t, net.HWPL)
		assert.InDelta(t, 6.0, *net.HWPL, 1e-9)

		_, err = d.LoadInterconnect(ctx, routeKey, "n9")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("ClockTree", func(t *testing.T) {
		ct, err := d.LoadClockTree(ctx, routeKey, "clk")
		require.NoError(t, err)
		assert.Equal(t, int64(1), ct.NoOfBuffers)
		assert.Equal(t, int64(1), ct.NoOfClockSinks)

		seq, err := ct.Traverse("clk")
		require.NoError(t, err)
		assert.Equal(t, []string{"clk", "n0", "b1", "n1", "ff1"}, slices.Collect(seq))

		_, err = d.LoadClockTree(ctx, routeKey, "clk2")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestStandardCells(t *testing.T) {
	t.Parallel()
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := t.Context()
			d := newDataset(t, open, Options{})
			cells := sampleCells()

			require.NoError(t, d.DumpStandardCells(ctx, cells))
			got, err := d.LoadStandardCells(ctx)
			require.NoError(t, err)
			require.Len(t, got, len(cells))
			for name, c := range cells {
				assert.Equal(t, entity.AsDict(c), entity.AsDict(got[name]), "cell %s", name)
			}
			assert.Equal(t, map[string]bool{"DFFX1": true}, entity.SequentialCells(got))
		})
	}
}

func TestDumpStandardCellsRejectsMisnamedEntries(t *testing.T) {
	t.Parallel()
	d := newDataset(t, openFileStore, Options{})
	cells := sampleCells()
	cells["NANDX1"] = cells["INVX1"]

	err := d.DumpStandardCells(t.Context(), cells)
	assert.True(t, errors.IsValidation(err))
}

func TestDatasetContents(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	cells := sampleCells()
	want := &Contents{
		StandardCells: cells,
		Netlists: map[schema.NetlistKey]*entity.Netlist{
			routeKey: sampleNetlist(t, cells),
			placeKey: sampleNetlist(t, cells),
		},
	}
	assert.Equal(t, []schema.NetlistKey{placeKey, routeKey}, want.Keys())

	src := newDataset(t, openFileStore, Options{})
	require.NoError(t, src.DumpDataset(ctx, want))

	keys, err := src.ListNetlists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []schema.NetlistKey{placeKey, routeKey}, keys)

	got, err := src.LoadDataset(ctx)
	require.NoError(t, err)
	assert.Len(t, got.StandardCells, len(cells))
	for _, k := range want.Keys() {
		assertNetlistsEqual(t, want.Netlists[k], got.Netlists[k])
	}

	dst := newDataset(t, openSQLiteStore, Options{})
	require.NoError(t, dst.DumpDataset(ctx, got))

	srcFP, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	dstFP, err := dst.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcFP, dstFP, "a dataset copied between backends hashes the same")
}

// flakyStore fails CreateDatasetTables a fixed number of times
type flakyStore struct {
	datastore.Interface
	failures atomic.Int32
	err      error
	calls    atomic.Int32
}

func (s *flakyStore) CreateDatasetTables(ctx context.Context, md *schema.Metadata) error {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return s.err
	}
	return s.Interface.CreateDatasetTables(ctx, md)
}

func TestCreateTablesRetriesBackendErrors(t *testing.T) {
	t.Parallel()
	fast := func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}

	t.Run("Transient", func(t *testing.T) {
		store := &flakyStore{
			Interface: openFileStore(t),
			err:       errors.Newf("database is locked").Category(errors.CategoryDatabase).Build(),
		}
		store.failures.Store(2)
		d := New(store, schema.DatasetMetadata(), Options{Logger: testLogger})
		d.newBackOff = fast
		t.Cleanup(func() { assert.NoError(t, d.Close()) })

		require.NoError(t, d.CreateTables(t.Context()))
		assert.Equal(t, int32(3), store.calls.Load())
	})

	t.Run("Permanent", func(t *testing.T) {
		store := &flakyStore{
			Interface: openFileStore(t),
			err:       errors.ValidationError("header mismatch"),
		}
		store.failures.Store(10)
		d := New(store, schema.DatasetMetadata(), Options{Logger: testLogger})
		d.newBackOff = fast
		t.Cleanup(func() { assert.NoError(t, d.Close()) })

		err := d.CreateTables(t.Context())
		assert.True(t, errors.IsValidation(err))
		assert.Equal(t, int32(1), store.calls.Load())
	})

	t.Run("Exhausted", func(t *testing.T) {
		store := &flakyStore{
			Interface: openFileStore(t),
			err:       errors.Newf("connection refused").Category(errors.CategoryNetwork).Build(),
		}
		store.failures.Store(10)
		d := New(store, schema.DatasetMetadata(), Options{Logger: testLogger})
		d.newBackOff = fast
		t.Cleanup(func() { assert.NoError(t, d.Close()) })

		err := d.CreateTables(t.Context())
		assert.True(t, errors.IsBackend(err))
		assert.Equal(t, int32(4), store.calls.Load())
	})
}

func TestOpenFromSettings(t *testing.T) {
	t.Parallel()
	settings := &conf.Settings{
		Storage: conf.StorageSettings{
			Backend: conf.BackendFile,
			File:    conf.FileSettings{Path: t.TempDir()},
		},
		Snapshot: conf.SnapshotSettings{Enabled: true, Path: t.TempDir()},
	}
	d, err := Open(t.Context(), settings, Options{Logger: testLogger})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	assert.Equal(t, datastore.BackendFile, d.Backend())
	assert.NotNil(t, d.Snapshots())
	require.NoError(t, d.CreateTables(t.Context()))

	settings.Storage.Backend = "postgres"
	_, err = Open(t.Context(), settings, Options{Logger: testLogger})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFrameAndQuery(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	d := newDataset(t, openFileStore, Options{})
	require.NoError(t, d.DumpNetlist(ctx, placeKey, sampleNetlist(t, sampleCells())))

	f, err := d.Frame(ctx, schema.TableGates, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, schema.TableGates, f.Table())

	t.Run("Expression", func(t *testing.T) {
		f, err := d.Query(ctx, schema.TableGates, `standard_cell in ["INVX1", "BUFX2"] && x < 5`)
		require.NoError(t, err)
		names, err := f.Column("name")
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"b1", "g1"}, names)

		f, err = d.Query(ctx, schema.TableTimingPaths, `slack < 0 && path_type == "max"`)
		require.NoError(t, err)
		assert.Equal(t, 1, f.Len())

		f, err = d.Query(ctx, schema.TableTimingPoints, `node_depth >= 2`)
		require.NoError(t, err)
		assert.Equal(t, 2, f.Len())

		f, err = d.Query(ctx, schema.TablePorts, `capacitance != nil && capacitance > 0.001`)
		require.NoError(t, err)
		names, err = f.Column("name")
		require.NoError(t, err)
		assert.Equal(t, []any{"out"}, names)
	})

	t.Run("NullCellsDoNotMatch", func(t *testing.T) {
		f, err := d.Query(ctx, schema.TablePorts, `capacitance > 0.001`)
		require.NoError(t, err)
		names, err := f.Column("name")
		require.NoError(t, err)
		assert.Equal(t, []any{"out"}, names)

		f, err = d.Query(ctx, schema.TablePorts, `capacitance < 1`)
		require.NoError(t, err)
		assert.Equal(t, 1, f.Len())

		f, err = d.Query(ctx, schema.TablePorts, `capacitance == nil`)
		require.NoError(t, err)
		names, err = f.Column("name")
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"clk", "in"}, names)
	})

	t.Run("EmptyWhereSelectsAll", func(t *testing.T) {
		f, err := d.Query(ctx, schema.TableNets, "")
		require.NoError(t, err)
		assert.Equal(t, 5, f.Len())
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, where := range []string{
			`no_such_column == 1`,
			`name > 1`,
			`x <`,
			`name`,
		} {
			_, err := d.Query(ctx, schema.TableGates, where)
			assert.True(t, errors.IsValidation(err), "where %q", where)
		}

		_, err := d.Query(ctx, "no_such_table", "true")
		assert.True(t, errors.IsNotFound(err))

		_, err = f.Column("no_such_column")
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("WriteCSV", func(t *testing.T) {
		f, err := d.Query(ctx, schema.TableGates, `name == "g1"`)
		require.NoError(t, err)
		var sb strings.Builder
		require.NoError(t, f.WriteCSV(&sb))
		assert.Equal(t,
			"circuit,netlist_id,phase,name,standard_cell,no_of_fanins,no_of_fanouts,x,y\n"+
				"aes,n1,place,g1,INVX1,1,1,4,1\n",
			sb.String())
	})
}

func TestSnapshots(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	d := newDataset(t, openFileStore, Options{Snapshots: newSnapshotCache(t)})
	cells := sampleCells()
	require.NoError(t, d.DumpNetlist(ctx, placeKey, sampleNetlist(t, cells)))

	first, err := d.LoadSnapshot(ctx)
	require.NoError(t, err)
	fp, err := d.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, fp, first.Fingerprint)

	again, err := d.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again, "unchanged content is served from memory")

	require.NoError(t, d.DumpStandardCells(ctx, cells))
	second, err := d.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)

	removed, err := d.PruneSnapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	restored := newDataset(t, openSQLiteStore, Options{Snapshots: d.Snapshots()})
	_, err = restored.RestoreSnapshot(ctx, second.Fingerprint)
	require.NoError(t, err)
	restoredFP, err := restored.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Fingerprint, restoredFP)

	n, err := restored.LoadNetlist(ctx, placeKey)
	require.NoError(t, err)
	assertNetlistsEqual(t, sampleNetlist(t, cells), n)

	_, err = restored.RestoreSnapshot(ctx, first.Fingerprint)
	assert.True(t, errors.IsNotFound(err), "pruned snapshot")
}

func TestSnapshotsDisabled(t *testing.T) {
	t.Parallel()
	d := newDataset(t, openFileStore, Options{})

	_, err := d.LoadSnapshot(t.Context())
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	_, err = d.PruneSnapshots(t.Context())
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
