// Package cli provides the geodash command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geodash/internal/config"
)

// Version is set at build time.
var Version = "dev"

type configKey struct{}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "geodash",
		Short: "Geographic dashboard for address and connection records",
		Long: `geodash serves the address tables over a small REST API, aggregates them
into dashboard views and map overlays, and moves records between the
database and spreadsheets.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./geodash.yaml)")
	pf.String("log-level", "", "Log level (trace|debug|info|warn|error)")
	pf.Int("port", 0, "HTTP port for serve")
	pf.String("store", "", "Store driver (postgres|sqlite)")
	pf.String("sqlite-path", "", "Path to the SQLite database")
	pf.String("database-url", "", "Postgres connection URL; overrides the PG* settings")
	pf.String("api-url", "", "Load tables from a remote geodash API instead of the store")
	pf.StringSlice("tables", nil, "Allow-listed tables, in load order")
	pf.String("heat-weight", "", "Heatmap weight policy (count|kw)")
	pf.Bool("geocode", false, "Run the background geocoder while serving")

	_ = rootCmd.RegisterFlagCompletionFunc("store", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.DriverPostgres, config.DriverSQLite}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newLoadCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newInspectTableCommand())
	rootCmd.AddCommand(newGeocodeCommand())

	return rootCmd
}

// Execute runs the root command. ctx is cancelled on shutdown signals.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// configFrom returns the config loaded by the root command. Commands run
// without the root (tests) fall back to defaults plus environment.
func configFrom(ctx context.Context) (*config.Config, error) {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return config.Load("", nil)
}
