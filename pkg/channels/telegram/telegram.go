// Package telegram provides the Telegram platform adapter.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mikobot/pkg/bus"
	"mikobot/pkg/commands"
	"mikobot/pkg/config"
	"mikobot/pkg/engine"
	"mikobot/pkg/logger"
)

// Channel implements the Telegram adapter.
type Channel struct {
	log      *logger.Logger
	bus      bus.Bus
	engine   *engine.Engine
	profiles *commands.Profiles
	config   *config.TelegramConfig

	bot      *tgbotapi.BotAPI
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Telegram channel.
func New(
	log *logger.Logger,
	messageBus bus.Bus,
	eng *engine.Engine,
	profiles *commands.Profiles,
	cfg *config.TelegramConfig,
) (*Channel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Channel{
		log:      log,
		bus:      messageBus,
		engine:   eng,
		profiles: profiles,
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ID returns the channel identifier.
func (c *Channel) ID() string {
	return string(commands.PlatformTelegram)
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "Telegram"
}

// IsEnabled returns whether the channel is enabled.
func (c *Channel) IsEnabled() bool {
	return c.config.Enabled
}

// Start starts the Telegram bot and begins listening for messages.
func (c *Channel) Start(ctx context.Context) error {
	c.log.Info("Starting Telegram channel")

	// Keep HTTP timeout longer than long-poll timeout to avoid periodic forced reconnects.
	httpClient := &http.Client{Timeout: 75 * time.Second}
	if c.config.Proxy != "" {
		proxyURL, err := url.Parse(c.config.Proxy)
		if err != nil {
			return fmt.Errorf("parsing telegram proxy: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
		c.log.Info("Telegram proxy enabled", zap.String("proxy", proxyURL.String()))
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.config.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return fmt.Errorf("creating telegram bot: %w", err)
	}

	c.bot = bot
	c.stopOnce = sync.Once{}
	c.bot.Debug = false

	c.log.Info("Telegram bot connected",
		zap.String("username", bot.Self.UserName))
	c.syncSlashCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 50

	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			c.handleUpdate(update)

		case <-ctx.Done():
			c.log.Info("Telegram channel stopping")
			c.stopReceivingUpdates()
			return nil

		case <-c.ctx.Done():
			c.log.Info("Telegram channel stopping")
			c.stopReceivingUpdates()
			return nil
		}
	}
}

// Stop stops the Telegram channel.
func (c *Channel) Stop(ctx context.Context) error {
	c.log.Info("Stopping Telegram channel")
	c.cancel()
	c.stopReceivingUpdates()

	return nil
}

func (c *Channel) stopReceivingUpdates() {
	if c.bot == nil {
		return
	}
	c.stopOnce.Do(func() {
		c.bot.StopReceivingUpdates()
	})
}

// SendMessage sends an outbound bus message (reminders and other
// follow-ups) through Telegram.
func (c *Channel) SendMessage(ctx context.Context, msg *bus.Message) error {
	if c.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}

	text := msg.Content
	if msg.Type == bus.MessageTypeReminder && msg.Username != "" {
		text = fmt.Sprintf("@%s Reminder: %s", msg.Username, msg.Content)
	}

	reply := tgbotapi.NewMessage(chatID, text)
	if msg.ReplyTo != "" {
		if msgID, err := strconv.Atoi(msg.ReplyTo); err == nil {
			reply.ReplyToMessageID = msgID
		}
	}

	if _, err := c.bot.Send(reply); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}

	return nil
}

// handleUpdate processes a Telegram update.
func (c *Channel) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		msg := *update.Message
		go c.handleMessage(&msg)
	}
}

// handleMessage runs one incoming message through the command engine
// and renders the result.
func (c *Channel) handleMessage(message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	// Telegram clients send "/cmd"; normalize to the configured prefix.
	prefix := c.engine.Registry().Prefix()
	if strings.HasPrefix(text, "/") && prefix != "/" {
		text = prefix + strings.TrimPrefix(text, "/")
	}

	// Group chats append "@botname" to the command token.
	head, rest, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at > 0 {
		text = head[:at]
		if rest != "" {
			text += " " + rest
		}
	}

	userID := strconv.FormatInt(message.From.ID, 10)

	role := commands.ResolveRole(c.config.Roles, userID)
	if message.From.IsBot {
		role = commands.RoleBot
	}

	ctx, cancel := context.WithTimeout(c.ctx, 60*time.Second)
	defer cancel()

	lang := c.profiles.Language(ctx, commands.PlatformTelegram, userID)
	if lang == "" {
		lang = message.From.LanguageCode
	}

	in := engine.Inbound{
		Text:     text,
		Platform: commands.PlatformTelegram,
		User: commands.User{
			ID:       userID,
			Name:     displayName(message.From),
			Role:     role,
			Language: lang,
		},
		Channel: commands.Channel{
			ID:   strconv.FormatInt(message.Chat.ID, 10),
			Name: message.Chat.Title,
		},
		Extra: message,
	}

	res, err := c.engine.HandleMessage(ctx, in)
	if err != nil {
		c.log.Error("Engine rejected message", zap.Error(err))
		return
	}
	if res == nil || res.Text == "" {
		return
	}

	reply := tgbotapi.NewMessage(message.Chat.ID, renderText(res))
	reply.ReplyToMessageID = message.MessageID

	if _, err := c.bot.Send(reply); err != nil {
		c.log.Error("Failed to send reply", zap.Error(err))
	}
}

// renderText flattens an embed into plain text; Telegram has no native
// embed rendering.
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

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	return strconv.FormatInt(user.ID, 10)
}

// syncSlashCommands publishes the command catalog as Telegram slash
// commands so clients offer completion.
func (c *Channel) syncSlashCommands() {
	if c.bot == nil {
		return
	}

	cmds := c.engine.Registry().List()
	telegramCmds := make([]tgbotapi.BotCommand, 0, len(cmds))

	for _, cmd := range cmds {
		name := sanitizeCommandName(cmd.Name)
		if name == "" {
			continue
		}

		desc := strings.TrimSpace(cmd.Description)
		if desc == "" {
			desc = strings.TrimSpace(cmd.Usage)
		}
		if desc == "" {
			desc = "Command"
		}
		if len(desc) > 256 {
			desc = desc[:256]
		}

		telegramCmds = append(telegramCmds, tgbotapi.BotCommand{
			Command:     name,
			Description: desc,
		})
	}

	if len(telegramCmds) == 0 {
		return
	}

	// Telegram supports at most 100 commands.
	sort.Slice(telegramCmds, func(i, j int) bool {
		return telegramCmds[i].Command < telegramCmds[j].Command
	})
	if len(telegramCmds) > 100 {
		telegramCmds = telegramCmds[:100]
	}

	if _, err := c.bot.Request(tgbotapi.NewSetMyCommands(telegramCmds...)); err != nil {
		c.log.Warn("Failed to sync Telegram slash commands", zap.Error(err))
		return
	}

	c.log.Info("Synced Telegram slash commands", zap.Int("count", len(telegramCmds)))
}

func sanitizeCommandName(name string) string {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if normalized == "" {
		return ""
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range normalized {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '-' || r == '_':
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}

		if b.Len() >= 32 {
			break
		}
	}

	return strings.Trim(b.String(), "_")
}
