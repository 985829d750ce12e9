package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"OnionHarvester/internal/app"
)

// NewHarvestCmd creates the harvest command.
func NewHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest <paste-key>...",
		Short: "Harvest specific pastes by key",
		Long: `Harvest fetches the given pastes one after another, pausing for the
configured delay between them, merges their onion addresses into the
dataset and saves it. Useful to backfill a paste that scrolled off the listing.

Example:
  onionharvester harvest AbCd1234 EfGh5678`,
		Args: cobra.MinimumNArgs(1),
		RunE: runHarvestCmd,
	}
	cmd.Flags().Bool("no-llm", false, "Disable LLM enhancement")
	return cmd
}

func runHarvestCmd(cmd *cobra.Command, keys []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	noLLM, err := cmd.Flags().GetBool("no-llm")
	if err != nil {
		return err
	}
	if noLLM {
		cfg.LLM.Disabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	results, err := application.HarvestKeys(ctx, keys)
	var failed int
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Key, res.Err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new address(es)\n", res.Key, res.Added)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pastes failed", failed, len(keys))
	}
	return nil
}
