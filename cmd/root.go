package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edaschema/edaschema/cmd/inspect"
	"github.com/edaschema/edaschema/cmd/snapshot"
	"github.com/edaschema/edaschema/cmd/tables"
	"github.com/edaschema/edaschema/cmd/traverse"
	"github.com/edaschema/edaschema/internal/app"
)

// RootCommand creates and returns the root command
func RootCommand(a *app.Context) (*cobra.Command, error) {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "edaschema",
		Short:        "Inspect and maintain EDA datasets",
		Version:      a.Build.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.Setup(cmd.Context(), configPath)
		},
	}

	if err := setupFlags(rootCmd, &configPath); err != nil {
		return nil, err
	}

	rootCmd.AddCommand(
		tables.Command(a),
		inspect.Command(a),
		traverse.Command(a),
		snapshot.Command(a),
	)
	return rootCmd, nil
}

// setupFlags defines the global flags and binds them to their config keys
func setupFlags(rootCmd *cobra.Command, configPath *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configPath, "config", "c", "", "Path to the configuration file (default ./edaschema.yaml)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("backend", "", "Storage backend: file, mongodb, sqlite or mysql")
	flags.String("path", "", "Dataset directory (file backend) or database file (sqlite backend)")

	bindings := map[string]string{
		"debug":               "debug",
		"storage.backend":     "backend",
		"storage.file.path":   "path",
		"storage.sqlite.path": "path",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
