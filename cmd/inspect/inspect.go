// Package inspect provides the inspect command
package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edaschema/edaschema/internal/app"
	"github.com/edaschema/edaschema/internal/dataset"
)

// Command prints the rows of one table, optionally filtered by an expression
func Command(a *app.Context) *cobra.Command {
	var (
		where     string
		countOnly bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <table>",
		Short: "Print the rows of a table as CSV",
		Long: `Print the rows of a dataset table as CSV on standard output.

Examples:
  # Every gate of the dataset
  edaschema inspect gates

  # Violating timing paths of routed netlists
  edaschema inspect timing_paths --where 'phase == "route" && slack < 0'

  # Nets with a known half-perimeter wire length above 100
  edaschema inspect nets --where 'hwpl != nil && hwpl > 100' --count`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				frame, err := d.Query(cmd.Context(), args[0], where)
				if err != nil {
					return err
				}
				if countOnly {
					fmt.Fprintln(cmd.OutOrStdout(), frame.Len())
					return nil
				}
				return frame.WriteCSV(cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "Boolean expression over the table columns")
	cmd.Flags().BoolVar(&countOnly, "count", false, "Print only the number of matching rows")
	return cmd
}
