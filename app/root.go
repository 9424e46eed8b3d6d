package app

import (
	"context"
	"marketplace-watcher/config"
	"marketplace-watcher/utils"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// RootCmd is the root command for marketwatch
	RootCmd = &cobra.Command{
		Use:   "marketwatch",
		Short: "Watch marketplace search pages for new listings and price drops",
		Long: `marketwatch scrapes marketplace search result pages on a schedule, compares
what it finds with the listings saved last time, and posts new listings and
price changes to a Discord webhook.

Examples:
  # Scrape forever, restarting the process between cycles
  marketwatch run --config config.yaml

  # Scrape once and exit
  marketwatch once

  # Serve the saved listings and the purge endpoint
  marketwatch serve

  # Dump the saved listings to CSV
  marketwatch export --out listings.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults and MW_* env vars apply)")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(onceCmd)
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(exportCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}

// loadRuntime reads the config and builds the process logger.
func loadRuntime() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := utils.NewLogger(cfg.Log)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
