package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"mikobot/pkg/bus"
	"mikobot/pkg/channels"
	"mikobot/pkg/commands"
	"mikobot/pkg/config"
	"mikobot/pkg/engine"
	"mikobot/pkg/logger"
	"mikobot/pkg/scheduler"
	"mikobot/pkg/state"
	"mikobot/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot on all enabled channels",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// The config loader reads this env var; the flag is a convenience.
	if configPath != "" {
		os.Setenv(config.ConfigPathEnv, configPath)
	}

	app := fx.New(
		config.Module,
		logger.Module,
		state.Module,
		bus.Module,
		engine.Module,
		commands.Module,
		scheduler.Module,
		channels.Module,

		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("mikobot started",
						zap.String("version", version.GetVersion()))
					return nil
				},
				OnStop: func(ctx context.Context) error {
					log.Info("mikobot stopped")
					return nil
				},
			})
		}),

		fx.NopLogger,
	)

	// Blocks until SIGINT/SIGTERM, then runs the OnStop hooks.
	app.Run()
}
