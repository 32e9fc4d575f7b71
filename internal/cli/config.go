package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"backtestEngine/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate run files",
		Long: `Manage run files.

Subcommands:
  init     - Generate a default run file
  validate - Validate an existing run file`,
	}

	var output string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a default run file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DefaultRunFile().SaveToFile(output); err != nil {
				return fmt.Errorf("save run file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created default run file: %s\n", output)
			fmt.Fprintf(cmd.OutOrStdout(), "Run it with:\n  backtest run -f %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "run.yaml", "output run file path")

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a run file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := config.LoadRunFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run file valid: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "  Strategy: %s %s\n", rf.Strategy, formatParams(rf.Params))
			fmt.Fprintf(cmd.OutOrStdout(), "  Symbols: %s\n", strings.Join(rf.Symbols, ","))
			fmt.Fprintf(cmd.OutOrStdout(), "  Period: %s .. %s (%s)\n", rf.Start, rf.End, rf.TimeframeOrDefault())
			if len(rf.Sweep) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  Sweep parameters: %d\n", len(rf.Sweep))
			}
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to run file (required)")
	validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
