package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Astrix-nita-01/anchor-notes/internal/config"
	"github.com/Astrix-nita-01/anchor-notes/internal/logging"
)

// cli carries the global flags and the values built from them before any
// subcommand runs.
type cli struct {
	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "anchor-notes",
		Short: "Anchor Notes - share and discover study notes",
		Long: `Anchor Notes serves the note catalog API.

Run without a subcommand to start the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if c.verbose {
				cfg.LogLevel = "debug"
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a YAML config file (default $ANCHOR_CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.serveCmd(),
		c.migrateCmd(),
		c.seedCmd(),
		c.reindexCmd(),
		c.reconcileCmd(),
	)
	return root
}
