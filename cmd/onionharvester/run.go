package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"OnionHarvester/internal/app"
	"OnionHarvester/internal/config"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest onion addresses continuously",
		Long: `Run starts a harvest cycle immediately and repeats it on every interval
until interrupted. Each cycle lists recent pastes, extracts onion addresses,
merges them into the dataset and saves it. Ctrl-C stops after the paste in
progress and saves what was collected.

Examples:
  # Continuous harvesting with the configured interval
  onionharvester run

  # One cycle through a local Tor daemon, without the LLM
  onionharvester run --once --tor --no-llm

  # Rotate through a proxy list and serve the status API
  onionharvester run --proxy-file proxies.txt --listen 127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().Bool("once", false, "Run a single cycle and exit")
	cmd.Flags().Duration("interval", config.DefaultInterval, "Time between cycle starts")
	cmd.Flags().Duration("delay", config.DefaultDelay, "Pause between two pastes")
	cmd.Flags().Int("max-keys", 0, "Upper bound of paste keys per cycle (0 = unlimited)")
	cmd.Flags().String("llm-key", "", "API key for the LLM endpoint")
	cmd.Flags().Bool("no-llm", false, "Disable LLM enhancement")
	cmd.Flags().StringSlice("proxy", nil, "Proxy to rotate through (repeatable)")
	cmd.Flags().String("proxy-file", "", "File with one proxy per line")
	cmd.Flags().Bool("tor", false, "Route paste site traffic through Tor")
	cmd.Flags().Bool("tor-embedded", false, "Launch a private tor daemon instead of using --tor-addr")
	cmd.Flags().String("tor-addr", config.DefaultTorAddress, "SOCKS5 address of an external tor daemon")
	cmd.Flags().String("listen", "", "Serve the read-only status API on this address")

	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, &cfg); err != nil {
		return err
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
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}()

	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}
	if once {
		report, err := application.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d of %d pastes, %d new addresses in %d new records\n",
			report.Processed, report.Keys, report.NewAddrs, report.NewRecords)
		return nil
	}

	if err := application.RunForever(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// applyRunFlags overrides cfg with every flag set on the command line.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("interval") {
		if cfg.Harvest.Interval, err = flags.GetDuration("interval"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.Harvest.Delay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("max-keys") {
		if cfg.Harvest.MaxKeysPerCycle, err = flags.GetInt("max-keys"); err != nil {
			return err
		}
	}
	if flags.Changed("llm-key") {
		if cfg.LLM.APIKey, err = flags.GetString("llm-key"); err != nil {
			return err
		}
	}
	if flags.Changed("no-llm") {
		if cfg.LLM.Disabled, err = flags.GetBool("no-llm"); err != nil {
			return err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy.Proxies, err = flags.GetStringSlice("proxy"); err != nil {
			return err
		}
		cfg.Proxy.Enabled = true
	}
	if flags.Changed("proxy-file") {
		if cfg.Proxy.File, err = flags.GetString("proxy-file"); err != nil {
			return err
		}
		cfg.Proxy.Enabled = true
	}
	if flags.Changed("tor") {
		if cfg.Tor.Enabled, err = flags.GetBool("tor"); err != nil {
			return err
		}
	}
	if flags.Changed("tor-embedded") {
		if cfg.Tor.Embedded, err = flags.GetBool("tor-embedded"); err != nil {
			return err
		}
		if cfg.Tor.Embedded {
			cfg.Tor.Enabled = true
		}
	}
	if flags.Changed("tor-addr") {
		if cfg.Tor.SocksAddr, err = flags.GetString("tor-addr"); err != nil {
			return err
		}
	}
	if flags.Changed("listen") {
		if cfg.API.Listen, err = flags.GetString("listen"); err != nil {
			return err
		}
	}
	return nil
}
