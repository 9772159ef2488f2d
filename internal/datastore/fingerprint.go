package datastore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/graph"
	"github.com/edaschema/edaschema/internal/schema"
)

// Record and field separators of the fingerprint input
const (
	fpFieldSep  = "\x1f"
	fpRecordSep = "\x1e"
	fpGroupSep  = "\x1d"
)

// Fingerprint hashes the full content of store: every row of every table
// of md and every graph. Row and edge order do not contribute, so equal
// datasets hash equally on every backend. Any write changes the result.
func Fingerprint(ctx context.Context, store Interface, md *schema.Metadata) (string, error) {
	if md == nil {
		md = schema.DatasetMetadata()
	}
	h := xxhash.New()

	for _, t := range md.Tables() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		_, _ = h.WriteString(t.Name + fpGroupSep)

		rows, err := store.GetTableData(ctx, t.Name, nil)
		switch {
		case errors.IsNotFound(err):
			_, _ = h.WriteString("absent" + fpGroupSep)
			continue
		case err != nil:
			return "", err
		}

		columns := t.Columns()
		lines := make([]string, len(rows))
		var b strings.Builder
		for i, row := range rows {
			b.Reset()
			for _, c := range columns {
				b.WriteString(c.FormatText(row[c.Name]))
				b.WriteString(fpFieldSep)
			}
			lines[i] = b.String()
		}
		slices.Sort(lines)
		for _, line := range lines {
			_, _ = h.WriteString(line + fpRecordSep)
		}

		if !t.Graph {
			continue
		}
		keys, err := store.ListGraphKeys(ctx, t.Name)
		switch {
		case errors.IsNotFound(err):
			continue
		case err != nil:
			return "", err
		}
		for _, key := range keys {
			d, err := store.GetGraphData(ctx, t.Name, key)
			if err != nil {
				return "", err
			}
			canonical, err := canonicalGraph(d)
			if err != nil {
				return "", serializationError(err, store.Backend(), "fingerprint", t.Name)
			}
			_, _ = h.WriteString(key + fpFieldSep)
			_, _ = h.Write(canonical)
			_, _ = h.WriteString(fpRecordSep)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// canonicalGraph encodes d with sorted nodes and edges. encoding/json
// sorts map keys, which makes attribute maps canonical.
func canonicalGraph(d graph.Dict) ([]byte, error) {
	type node struct {
		ID    string      `json:"id"`
		Attrs graph.Attrs `json:"attrs"`
	}
	nodes := make([]node, 0, len(d.Nodes))
	for _, id := range slices.Sorted(maps.Keys(d.Nodes)) {
		attrs := d.Nodes[id]
		if attrs == nil {
			attrs = graph.Attrs{}
		}
		nodes = append(nodes, node{ID: id, Attrs: attrs})
	}
	edges := slices.Clone(d.Edges)
	slices.SortFunc(edges, func(a, b graph.Edge) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Target, b.Target))
	})
	return json.Marshal(struct {
		Nodes []node       `json:"nodes"`
		Edges []graph.Edge `json:"edges"`
	}{nodes, edges})
}
