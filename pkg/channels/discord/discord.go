// Package discord provides the Discord platform adapter.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"mikobot/pkg/bus"
	"mikobot/pkg/commands"
	"mikobot/pkg/config"
	"mikobot/pkg/engine"
	"mikobot/pkg/logger"
)

// Channel implements the Discord adapter.
type Channel struct {
	log      *logger.Logger
	config   config.DiscordConfig
	bus      bus.Bus
	engine   *engine.Engine
	profiles *commands.Profiles
	session  *discordgo.Session
	running  bool
}

// NewChannel creates a new Discord channel.
func NewChannel(
	log *logger.Logger,
	cfg config.DiscordConfig,
	b bus.Bus,
	eng *engine.Engine,
	profiles *commands.Profiles,
) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}

	return &Channel{
		log:      log,
		config:   cfg,
		bus:      b,
		engine:   eng,
		profiles: profiles,
		session:  session,
	}, nil
}

// ID returns the channel identifier.
func (c *Channel) ID() string {
	return string(commands.PlatformDiscord)
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "Discord"
}

// IsEnabled returns whether the channel is enabled.
func (c *Channel) IsEnabled() bool {
	return c.config.Enabled
}

// Start starts the Discord bot.
func (c *Channel) Start(ctx context.Context) error {
	c.log.Info("Starting Discord channel")

	c.session.AddHandler(c.handleMessage)

	c.session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}

	c.running = true

	botUser, err := c.session.User("@me")
	if err != nil {
		c.log.Warn("Failed to get bot user", zap.Error(err))
	} else {
		c.log.Info("Discord bot connected",
			zap.String("username", botUser.Username),
			zap.String("user_id", botUser.ID))
	}

	return nil
}

// Stop stops the Discord bot.
func (c *Channel) Stop(ctx context.Context) error {
	c.log.Info("Stopping Discord channel")
	c.running = false

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			return fmt.Errorf("closing discord session: %w", err)
		}
	}

	return nil
}

// SendMessage sends an outbound bus message through Discord.
func (c *Channel) SendMessage(ctx context.Context, msg *bus.Message) error {
	if !c.running {
		return fmt.Errorf("discord channel not running")
	}

	text := msg.Content
	if msg.Type == bus.MessageTypeReminder && msg.UserID != "" {
		text = fmt.Sprintf("<@%s> Reminder: %s", msg.UserID, msg.Content)
	}

	if _, err := c.session.ChannelMessageSend(msg.ChatID, text); err != nil {
		return fmt.Errorf("sending discord message: %w", err)
	}

	return nil
}

// handleMessage runs one incoming message through the command engine
// and renders the result.
func (c *Channel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore the bot's own messages
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}

	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	role := commands.ResolveRole(c.config.Roles, m.Author.ID)
	if m.Author.Bot {
		role = commands.RoleBot
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	in := engine.Inbound{
		Text:     text,
		Platform: commands.PlatformDiscord,
		User: commands.User{
			ID:       m.Author.ID,
			Name:     m.Author.Username,
			Role:     role,
			Language: c.profiles.Language(ctx, commands.PlatformDiscord, m.Author.ID),
		},
		Channel: commands.Channel{
			ID: m.ChannelID,
		},
		Extra: m,
	}

	res, err := c.engine.HandleMessage(ctx, in)
	if err != nil {
		c.log.Error("Engine rejected message", zap.Error(err))
		return
	}
	if res == nil {
		return
	}

	if err := c.sendResult(m, res); err != nil {
		c.log.Error("Failed to send reply", zap.Error(err))
	}
}

// sendResult renders a command result: embeds go out as native Discord
// embeds, everything else as a plain reply.
func (c *Channel) sendResult(m *discordgo.MessageCreate, res *commands.Result) error {
	if res.Embed != nil {
		embed := &discordgo.MessageEmbed{
			Title:       res.Embed.Title,
			Description: res.Embed.Description,
			Color:       res.Embed.Color,
		}
		if res.Embed.ImageURL != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: res.Embed.ImageURL}
		}
		if res.Embed.ThumbnailURL != "" {
			embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: res.Embed.ThumbnailURL}
		}
		if res.Embed.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: res.Embed.Footer}
		}

		_, err := c.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
			Content: res.Text,
			Embed:   embed,
			Reference: &discordgo.MessageReference{
				MessageID: m.ID,
				ChannelID: m.ChannelID,
				GuildID:   m.GuildID,
			},
		})
		return err
	}

	if res.Text == "" {
		return nil
	}

	_, err := c.session.ChannelMessageSendReply(m.ChannelID, res.Text, &discordgo.MessageReference{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
	})
	return err
}
