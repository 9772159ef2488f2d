// Package snapshot provides the snapshot command
package snapshot

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/edaschema/edaschema/internal/app"
	"github.com/edaschema/edaschema/internal/dataset"
)

// Command creates the snapshot command and its subcommands
func Command(a *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage binary snapshots of the dataset",
		Long: `Snapshots are compressed images of the whole dataset keyed by the content
fingerprint of the backend. They require snapshot.enabled in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("please specify a subcommand: save, load, list, restore or prune")
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Capture the backend into a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				img, err := d.SaveSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rows\n", img.Fingerprint, img.RowCount())
				return nil
			})
		},
	}

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Print the snapshot matching the backend, capturing it when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				img, err := d.LoadSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "fingerprint %s (captured from %s at %s)\n",
					img.Fingerprint, img.Backend, img.CreatedAt.Format("2006-01-02 15:04:05"))
				for _, t := range img.Tables {
					fmt.Fprintf(out, "%-24s %8d rows %6d graphs\n", t.Name, len(t.Rows), len(t.Graphs))
				}
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the cached snapshots, marking the one matching the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				if d.Snapshots() == nil {
					return fmt.Errorf("snapshots are not enabled, set snapshot.enabled in the configuration")
				}
				fingerprints, err := d.Snapshots().Fingerprints()
				if err != nil {
					return err
				}
				current, err := d.Fingerprint(cmd.Context())
				if err != nil {
					return err
				}
				slices.Sort(fingerprints)
				for _, fp := range fingerprints {
					marker := " "
					if fp == current {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, fp)
				}
				return nil
			})
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <fingerprint>",
		Short: "Write a cached snapshot into the configured backend",
		Long: `Create the dataset tables in the configured backend and write every row and
graph of the snapshot into it. The backend must not hold any of those rows yet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				if err := d.CreateTables(cmd.Context()); err != nil {
					return err
				}
				img, err := d.RestoreSnapshot(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d rows from %s snapshot into %s backend\n",
					img.RowCount(), img.Backend, d.Backend())
				return nil
			})
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove every snapshot except the one matching the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.WithDataset(cmd.Context(), func(d *dataset.Dataset) error {
				removed, err := d.PruneSnapshots(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d snapshots\n", removed)
				return nil
			})
		},
	}

	cmd.AddCommand(saveCmd, loadCmd, listCmd, restoreCmd, pruneCmd)
	return cmd
}
