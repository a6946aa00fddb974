package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/glowup/glowup-core/internal/domain/scoring"
	"github.com/glowup/glowup-core/pkg/logger"
)

// offlineTables loads tables for the lookup commands. Violations are logged
// to stderr and never panic.
func offlineTables(cmd *cobra.Command, path string) (*scoring.Tables, error) {
	log := logger.New(logger.Options{Output: cmd.ErrOrStderr(), Level: logger.LevelWarn})
	return loadTables(path, false, log)
}

func nonNegativeArg(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLevelCommand(opts *Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "level XP",
		Short: "Show the level for an XP total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xp, err := nonNegativeArg("XP", args[0])
			if err != nil {
				return err
			}
			tables, err := offlineTables(cmd, opts.TablesFile)
			if err != nil {
				return err
			}

			info := tables.CalculateLevel(xp)
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, info)
			}

			fmt.Fprintf(out, "%s Level %d: %s\n", info.Emoji, info.Level, info.Title)
			if info.IsMaxLevel {
				fmt.Fprintln(out, "max level reached")
				return nil
			}
			fmt.Fprintf(out, "%d/%d XP (%.1f%%), %d XP to level %d\n",
				info.CurrentXP, info.NextLevelXP, info.ProgressPercent, info.XPToNext, info.Level+1)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newRankCommand(opts *Options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rank POINTS",
		Short: "Show the rank tier for a points total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := nonNegativeArg("POINTS", args[0])
			if err != nil {
				return err
			}
			tables, err := offlineTables(cmd, opts.TablesFile)
			if err != nil {
				return err
			}

			info := tables.DescribeRank(points)
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, info)
			}

			fmt.Fprintf(out, "%s %s\n", info.Current.Emoji, info.Current.Name)
			if info.Next == nil {
				fmt.Fprintln(out, "top rank reached")
				return nil
			}
			fmt.Fprintf(out, "%.1f%% to %s %s, %d points to go\n",
				info.ProgressPercent, info.Next.Emoji, info.Next.Name, info.PointsToNext)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newTablesCommand(opts *Options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Validate and print the active scoring tables as TOML",
		Long: `Validate and print the active scoring tables.

Without --file the compiled-in tables are printed; the output is a valid
tables file that can be edited and passed back with --file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = opts.TablesFile
			}
			tables, err := offlineTables(cmd, path)
			if err != nil {
				return err
			}
			if err := tables.Validate(); err != nil {
				return err
			}
			return tables.EncodeTOML(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Tables TOML file to validate")
	return cmd
}
