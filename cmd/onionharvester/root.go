package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"OnionHarvester/internal/config"
	"OnionHarvester/internal/logging"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionharvester",
		Short: "Harvest Tor onion addresses from public paste sites",
		Long: `onionharvester polls a paste site listing, extracts .onion addresses from
new pastes, optionally refines and classifies them with an LLM, and stores
one record per paste in a JSON document, SQLite or PostgreSQL.

Configuration is read from --config, $ONION_HARVESTER_CONFIG,
./.onionharvester.yaml or $XDG_CONFIG_HOME/onionharvester/config.yaml.
Run "onionharvester init" to write a commented template.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHarvestCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration file and applies the persistent flags.
// Validation is left to the caller so command flags can be applied first.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	logger := logging.NewWithFormat(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Path != "" {
		logger.Debug("configuration loaded", "path", cfg.Path)
	}
	return logger
}
