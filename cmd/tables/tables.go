// Package tables provides the tables command
package tables

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edaschema/edaschema/internal/app"
	"github.com/edaschema/edaschema/internal/dataset"
)

// Command lists the dataset tables with their row counts
func Command(a *app.Context) *cobra.Command {
	var showColumns bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List dataset tables and their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				out := cmd.OutOrStdout()
				for _, t := range d.Metadata().Tables() {
					frame, err := d.Frame(cmd.Context(), t.Name, nil)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-24s %8d rows\n", t.Name, frame.Len())
					if showColumns {
						fmt.Fprintf(out, "    %s\n", strings.Join(t.ColumnNames(), ", "))
					}
				}
				return nil
			})
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create missing tables in the configured backend",
		Long:  `Create the storage for every dataset table. Existing tables and rows are kept.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				if err := d.CreateTables(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d tables in %s backend\n", len(d.Metadata().Names()), d.Backend())
				return nil
			})
		},
	}

	netlistsCmd := &cobra.Command{
		Use:   "netlists",
		Short: "List the netlists stored in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				keys, err := d.ListNetlists(cmd.Context())
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", k.Circuit, k.NetlistID, k.Phase)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showColumns, "columns", false, "Print the column names of every table")
	cmd.AddCommand(createCmd, netlistsCmd)
	return cmd
}
