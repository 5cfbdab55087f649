// Command masteryd runs the mastery tracking API and its maintenance tasks.
//
// Usage:
//
//	masteryd serve            start the HTTP API
//	masteryd migrate up       apply pending postgres migrations
//	masteryd migrate down     roll back the latest migration
//	masteryd migrate status   list migrations
//	masteryd version          print the build version
//
// Configuration comes from the environment (optionally a .env file) with
// an optional TOML file named by MASTERY_CONFIG_FILE for model tuning.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/mastery-tracker/config"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "masteryd",
		Short:         "Skill mastery tracking service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "masteryd %s\n", version)
			return err
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadConfig loads configuration. A release build's version wins over
// APP_VERSION.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if version != "dev" {
		cfg.App.Version = version
	}
	return cfg, nil
}

// setupLogger builds the process logger from observability settings.
func setupLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	return logger.New(logger.Options{
		Output:    out,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: true,
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}
