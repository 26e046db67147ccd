// Package slack provides the Slack platform adapter using Socket Mode.
package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"mikobot/pkg/bus"
	"mikobot/pkg/commands"
	"mikobot/pkg/config"
	"mikobot/pkg/engine"
	"mikobot/pkg/logger"
)

// Channel implements the Slack adapter.
type Channel struct {
	log      *logger.Logger
	config   config.SlackConfig
	bus      bus.Bus
	engine   *engine.Engine
	profiles *commands.Profiles

	api          *slack.Client
	socketClient *socketmode.Client
	botUserID    string
	running      bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewChannel creates a new Slack channel.
func NewChannel(
	log *logger.Logger,
	cfg config.SlackConfig,
	b bus.Bus,
	eng *engine.Engine,
	profiles *commands.Profiles,
) (*Channel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack bot_token and app_token are required")
	}

	api := slack.New(
		cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
	)

	return &Channel{
		log:          log,
		config:       cfg,
		bus:          b,
		engine:       eng,
		profiles:     profiles,
		api:          api,
		socketClient: socketmode.New(api),
	}, nil
}

// ID returns the channel identifier.
func (c *Channel) ID() string {
	return string(commands.PlatformSlack)
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "Slack"
}

// IsEnabled returns whether the channel is enabled.
func (c *Channel) IsEnabled() bool {
	return c.config.Enabled
}

// Start starts the Slack bot.
func (c *Channel) Start(ctx context.Context) error {
	c.log.Info("Starting Slack channel (Socket Mode)")

	c.ctx, c.cancel = context.WithCancel(ctx)

	authResp, err := c.api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	c.botUserID = authResp.UserID

	c.log.Info("Slack bot connected",
		zap.String("bot_user_id", c.botUserID),
		zap.String("team", authResp.Team))

	go c.eventLoop()

	go func() {
		if err := c.socketClient.RunContext(c.ctx); err != nil {
			if c.ctx.Err() == nil {
				c.log.Error("Socket Mode connection error", zap.Error(err))
			}
		}
	}()

	c.running = true
	c.log.Info("Slack channel started")

	return nil
}

// Stop stops the Slack bot.
func (c *Channel) Stop(ctx context.Context) error {
	c.log.Info("Stopping Slack channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.log.Info("Slack channel stopped")
	return nil
}

// SendMessage sends an outbound bus message through Slack.
func (c *Channel) SendMessage(ctx context.Context, msg *bus.Message) error {
	if !c.running {
		return fmt.Errorf("slack channel not running")
	}

	text := msg.Content
	if msg.Type == bus.MessageTypeReminder && msg.UserID != "" {
		text = fmt.Sprintf("<@%s> Reminder: %s", msg.UserID, msg.Content)
	}

	channelID, threadTS := splitChatID(msg.ChatID)

	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		return fmt.Errorf("sending slack message: %w", err)
	}

	return nil
}

// eventLoop processes Socket Mode events.
func (c *Channel) eventLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case evt := <-c.socketClient.Events:
			if evt.Type == socketmode.EventTypeEventsAPI {
				c.handleEventsAPI(evt)
			}
		}
	}
}

// handleEventsAPI handles Events API events.
func (c *Channel) handleEventsAPI(evt socketmode.Event) {
	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		c.log.Warn("Failed to parse Events API event")
		c.socketClient.Ack(*evt.Request)
		return
	}

	c.socketClient.Ack(*evt.Request)

	switch ev := eventsAPIEvent.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		c.handleMessageEvent(ev)
	case *slackevents.AppMentionEvent:
		c.handleText(ev.User, ev.User, ev.Channel, ev.ThreadTimeStamp, stripMention(ev.Text, c.botUserID), false)
	}
}

// handleMessageEvent handles plain message events.
func (c *Channel) handleMessageEvent(ev *slackevents.MessageEvent) {
	isBot := ev.BotID != ""
	if ev.User == c.botUserID {
		return
	}

	c.handleText(ev.User, ev.User, ev.Channel, ev.ThreadTimeStamp, ev.Text, isBot)
}

// handleText runs one incoming message through the command engine and
// renders the result.
func (c *Channel) handleText(userID, username, channelID, threadTS, text string, isBot bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	role := commands.ResolveRole(c.config.Roles, userID)
	if isBot {
		role = commands.RoleBot
	}

	// Threads reply in-thread; the chat id carries the thread anchor.
	chatID := channelID
	if threadTS != "" {
		chatID = fmt.Sprintf("%s:%s", channelID, threadTS)
	}

	ctx, cancel := context.WithTimeout(c.ctx, 60*time.Second)
	defer cancel()

	in := engine.Inbound{
		Text:     text,
		Platform: commands.PlatformSlack,
		User: commands.User{
			ID:       userID,
			Name:     username,
			Role:     role,
			Language: c.profiles.Language(ctx, commands.PlatformSlack, userID),
		},
		Channel: commands.Channel{
			ID: chatID,
		},
	}

	res, err := c.engine.HandleMessage(ctx, in)
	if err != nil {
		c.log.Error("Engine rejected message", zap.Error(err))
		return
	}
	if res == nil || res.Text == "" {
		return
	}

	opts := []slack.MsgOption{slack.MsgOptionText(renderText(res), false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	if res.Ephemeral {
		if _, err := c.api.PostEphemeralContext(ctx, channelID, userID, opts...); err != nil {
			c.log.Error("Failed to send ephemeral reply", zap.Error(err))
		}
		return
	}

	if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
		c.log.Error("Failed to send reply", zap.Error(err))
	}
}

// renderText flattens an embed into plain text; Slack replies stay
// text-only here.
func renderText(res *commands.Result) string {
	if res.Embed == nil {
		return res.Text
	}

	var b strings.Builder
	b.WriteString(res.Text)
	if res.Embed.Title != "" {
		fmt.Fprintf(&b, "\n*%s*", res.Embed.Title)
	}
	if res.Embed.Description != "" {
		b.WriteString("\n" + res.Embed.Description)
	}
	if res.Embed.Footer != "" {
		b.WriteString("\n" + res.Embed.Footer)
	}
	return strings.TrimSpace(b.String())
}

func stripMention(text, botUserID string) string {
	return strings.TrimSpace(strings.Replace(text, fmt.Sprintf("<@%s>", botUserID), "", 1))
}

// splitChatID splits a "channel:thread_ts" chat id.
func splitChatID(chatID string) (string, string) {
	if i := strings.IndexByte(chatID, ':'); i > 0 {
		return chatID[:i], chatID[i+1:]
	}
	return chatID, ""
}
