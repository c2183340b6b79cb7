package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utafrali/marketplace/internal/app"
	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/pkg/logger"
)

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "marketplacectl",
		Short:         "Operator tooling for the marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file applied before the environment")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override")

	cmd.AddCommand(newMigrateCmd(opts), newCreateAdminCmd(opts), newSeedCmd(opts))
	return cmd
}

// load reads the configuration and builds the logger shared by subcommands.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.envFile)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return cfg, logger.New("marketplacectl", level), nil
}

// openStore connects to the configured store.
func (o *rootOptions) openStore(ctx context.Context) (*app.Store, *config.Config, *slog.Logger, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, cfg, log, nil
}
