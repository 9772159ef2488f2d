// Package traverse provides the traverse command
package traverse

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edaschema/edaschema/internal/app"
	"github.com/edaschema/edaschema/internal/dataset"
	"github.com/edaschema/edaschema/internal/entity"
	"github.com/edaschema/edaschema/internal/graph"
)

// Command walks a clock tree or a whole netlist graph breadth-first
func Command(a *app.Context) *cobra.Command {
	var clock string

	cmd := &cobra.Command{
		Use:   "traverse <circuit> <netlist_id> <phase> <start>",
		Short: "Print the nodes reachable from start in breadth-first order",
		Long: `Walk the netlist graph breadth-first from a start node and print every
reached node with its node type. With --clock the walk is limited to the
stored clock tree of that clock source.

Examples:
  # Everything driven by port in
  edaschema traverse aes n1 route in

  # Clock tree of clk from its root
  edaschema traverse aes n1 cts clk --clock clk`,
		Args: cobra.ExactArgs(app.NetlistKeyArgs + 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := app.NetlistKeyFromArgs(args)
			if err != nil {
				return err
			}
			start := args[app.NetlistKeyArgs]

			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				var g *graph.Graph
				if clock != "" {
					ct, err := d.LoadClockTree(cmd.Context(), key, clock)
					if err != nil {
						return err
					}
					g = ct.Graph()
				} else {
					n, err := d.LoadNetlist(cmd.Context(), key)
					if err != nil {
						return err
					}
					g = n.Graph()
				}

				nodes, err := g.BFS(start)
				if err != nil {
					return err
				}
				for id := range nodes {
					attrs, _ := g.Node(id)
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", id, attrs[entity.NodeTypeAttr])
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&clock, "clock", "", "Walk the stored clock tree of this clock source")
	return cmd
}
