package graph

import (
	"iter"

	"github.com/edaschema/edaschema/internal/errors"
)

// BFS returns the nodes reachable from start in breadth-first order,
// start first. The sequence is lazy and can be ranged over more than once.
// It fails with a not-found error when start is not a node.
func (g *Graph) BFS(start string) (iter.Seq[string], error) {
	return g.Walk(start, nil)
}

// Walk is BFS that only expands the successors of nodes for which descend
// returns true. Nodes that are not expanded are still yielded. A nil
// descend expands every node.
func (g *Graph) Walk(start string, descend func(id string) bool) (iter.Seq[string], error) {
	if !g.HasNode(start) {
		return nil, errors.Newf("node not found: %s", start).
			Component("graph").
			Category(errors.CategoryNotFound).
			Context("node", start).
			Build()
	}

	return func(yield func(string) bool) {
		visited := map[string]struct{}{start: {}}
		queue := []string{start}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if !yield(id) {
				return
			}
			if descend != nil && !descend(id) {
				continue
			}
			for _, next := range g.succ[id] {
				if _, seen := visited[next]; seen {
					continue
				}
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}, nil
}
