package channels

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"mikobot/pkg/bus"
	"mikobot/pkg/channels/discord"
	"mikobot/pkg/channels/slack"
	"mikobot/pkg/channels/telegram"
	"mikobot/pkg/commands"
	"mikobot/pkg/config"
	"mikobot/pkg/engine"
	"mikobot/pkg/logger"
)

// Module is the fx module for channels.
var Module = fx.Module("channels",
	fx.Provide(NewChannelManager),
	fx.Provide(func(m *Manager) commands.ChannelLister { return m }),
	fx.Invoke(RegisterChannels),
)

// NewChannelManager creates a new channel manager for fx.
func NewChannelManager(
	lc fx.Lifecycle,
	log *logger.Logger,
	messageBus bus.Bus,
) *Manager {
	manager := NewManager(log, messageBus)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return manager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop()
		},
	})

	return manager
}

// RegisterChannels registers all enabled channels with the manager.
func RegisterChannels(
	manager *Manager,
	log *logger.Logger,
	messageBus bus.Bus,
	eng *engine.Engine,
	profiles *commands.Profiles,
	cfg *config.Config,
) error {
	if cfg.Channels.Telegram.Enabled {
		tgChannel, err := telegram.New(log, messageBus, eng, profiles, &cfg.Channels.Telegram)
		if err != nil {
			log.Warn("Failed to create Telegram channel, skipping", zap.Error(err))
		} else if err := manager.Register(tgChannel); err != nil {
			return err
		}
	}

	if cfg.Channels.Discord.Enabled {
		discordChannel, err := discord.NewChannel(log, cfg.Channels.Discord, messageBus, eng, profiles)
		if err != nil {
			log.Warn("Failed to create Discord channel, skipping", zap.Error(err))
		} else if err := manager.Register(discordChannel); err != nil {
			return err
		}
	}

	if cfg.Channels.Slack.Enabled {
		slackChannel, err := slack.NewChannel(log, cfg.Channels.Slack, messageBus, eng, profiles)
		if err != nil {
			log.Warn("Failed to create Slack channel, skipping", zap.Error(err))
		} else if err := manager.Register(slackChannel); err != nil {
			return err
		}
	}

	return nil
}
