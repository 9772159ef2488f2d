package entity

import (
	"iter"
	"slices"

	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/schema"
)

// ClockTree is the part of a netlist reachable from a clock source up to
// and including the sequential cells it clocks.
type ClockTree struct {
	GraphView `mapstructure:"-"`

	Source         string `mapstructure:"-"`
	NoOfBuffers    int64  `mapstructure:"no_of_buffers"`
	NoOfClockSinks int64  `mapstructure:"no_of_clock_sinks"`
}

func (*ClockTree) Kind() string { return schema.KindClockTree }

// Traverse walks the tree breadth-first from start. The sequence can be
// ranged over repeatedly and always terminates.
func (c *ClockTree) Traverse(start string) (iter.Seq[string], error) {
	return c.Graph().BFS(start)
}

// ExtractClockTree follows the netlist from source through nets and
// buffers. Gates whose standard cell is sequential are clock sinks: they
// are included and counted but not expanded. Gates mapped to buffer cells
// are counted as buffers.
func ExtractClockTree(n *Netlist, source string, cells map[string]*StandardCell) (*ClockTree, error) {
	cellOf := func(id string) *StandardCell {
		if n.NodeType(id) != NodeGate {
			return nil
		}
		g, ok := n.Gates[id]
		if !ok {
			return nil
		}
		return cells[g.StandardCell]
	}
	isSink := func(id string) bool {
		c := cellOf(id)
		return c != nil && c.IsSequential
	}

	ct := &ClockTree{Source: source}
	seq, err := n.Graph().Walk(source, func(id string) bool {
		return id == source || !isSink(id)
	})
	if err != nil {
		return nil, errors.New(err).
			Component("entity").
			Context("clock_source", source).
			Build()
	}

	visited := slices.Collect(seq)
	for _, id := range visited[1:] {
		if isSink(id) {
			ct.NoOfClockSinks++
		} else if c := cellOf(id); c != nil && c.IsBuffer {
			ct.NoOfBuffers++
		}
	}
	ct.SetGraph(n.Graph().Subgraph(visited))
	return ct, nil
}
