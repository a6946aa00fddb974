// Package cli implements the glowup command line: the API server, schema
// migrations and offline lookups against the scoring tables.
package cli

import (
	"github.com/spf13/cobra"
)

// Options are the persistent flags shared by every subcommand.
type Options struct {
	LogLevel   string
	TablesFile string
}

// NewRootCommand builds the glowup command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "glowup",
		Short: "GlowUp scoring service",
		Long: `GlowUp awards points and XP for user actions, keeps levels, ranks and
daily streaks in sync and serves them over a JSON API.

Configuration is read from the environment (DATABASE_URL, REDIS_URL,
STORAGE_DRIVER, HTTP_ADDR, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&opts.TablesFile, "tables", "", "Scoring tables TOML file; overrides SCORING_TABLES_FILE")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newLevelCommand(opts),
		newRankCommand(opts),
		newTablesCommand(opts),
	)
	return root
}
