// Package cmd defines and implements the CLI commands for the adstxt-crawler
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adsight/adstxt-crawler/internal/config"
	"github.com/adsight/adstxt-crawler/internal/logging"
)

var cfgFile string

// runtimeConfig is populated by the root PersistentPreRunE and consumed by
// the subcommands.
var runtimeConfig config.Config

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adstxt-crawler",
		Short: "Discovers and stores ads.txt files for large domain batches.",
		Long: `adstxt-crawler fetches the ads.txt declaration file for every domain in a
newline-delimited list, tolerating the unreliability of the open web: slow
hosts, redirects, wrong content types and connection resets never stall the
batch.`,

		SilenceUsage: true,

		// Load config and swap in the configured logger before any
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			runtimeConfig = cfg
			return nil
		},

		PersistentPostRun: func(*cobra.Command, []string) {
			_ = zap.L().Sync() //nolint:errcheck // best-effort flush
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; optional)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newParseCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
