package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ContentPublisher/internal/app"
	"ContentPublisher/internal/config"
	"ContentPublisher/internal/logging"
)

type cli struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	var (
		cfgFile  string
		logLevel string
	)

	root := &cobra.Command{
		Use:   "publisher",
		Short: "Content publisher - rewrite uploaded articles into posts and publish them after approval",
		Long: `Content publisher extracts text from uploaded HTML, text and Markdown files,
rewrites it into a social post, waits for a human approval and publishes it
through browser automation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				if err := os.Setenv("CONTENT_PUBLISHER_CONFIG", cfgFile); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}
			c.cfg = config.Load()
			if logLevel != "" {
				c.cfg.Logging.Level = logLevel
			}
			c.logger = logging.New(c.cfg.Logging.Level, c.cfg.Logging.Format)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (overrides $CONTENT_PUBLISHER_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		c.serveCmd(),
		c.ingestCmd(),
		c.listCmd(),
		c.showCmd(),
		c.statsCmd(),
		c.authCheckCmd(),
		c.recoverCmd(),
	)
	return root
}

func (c *cli) application(opts ...app.Option) (*app.Application, error) {
	a, err := app.New(c.cfg, c.logger, opts...)
	if err != nil {
		c.logger.Error("failed to build application", "error", err)
		return nil, err
	}
	return a, nil
}
