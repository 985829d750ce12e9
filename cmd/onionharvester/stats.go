package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"OnionHarvester/internal/app"
	"OnionHarvester/internal/report"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of the stored dataset",
		Long: `Stats loads the stored dataset and prints pastes, links, unique links,
onion versions and the category breakdown as Markdown (default) or JSON.

Examples:
  onionharvester stats
  onionharvester stats --json
  onionharvester stats -o report.md`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Print JSON instead of Markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cmd, cfg)

	store, dataset, err := app.OpenDataset(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath) //nolint:gosec // output path is chosen by the operator
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	summary := report.Summarize(dataset.Snapshot(), time.Now())
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return report.NewMarkdownWriter(out).Write(summary)
}
