// Package commands provides the command catalog shared by all channels:
// definitions, alias resolution and the built-in command set.
package commands

import (
	"context"
	"time"
)

// Platform identifies a chat platform a message originated from.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
	PlatformSlack    Platform = "slack"
)

// Role is the ordered bot-level permission of a user.
// Higher values may run everything lower values may.
type Role int

const (
	RoleBlocked Role = iota
	RoleBot
	RolePublic
	RoleChannelModerator
	RoleBotModerator
	RoleBotOwner
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleBlocked:
		return "blocked"
	case RoleBot:
		return "bot"
	case RolePublic:
		return "public"
	case RoleChannelModerator:
		return "channel_moderator"
	case RoleBotModerator:
		return "bot_moderator"
	case RoleBotOwner:
		return "bot_owner"
	default:
		return "unknown"
	}
}

// ExecMode tags how a command body runs.
type ExecMode int

const (
	// ExecSync runs the handler on the invoking goroutine.
	ExecSync ExecMode = iota
	// ExecAsync runs the handler on its own goroutine; the dispatcher
	// waits for completion without holding up other invocations.
	ExecAsync
)

// Handler is the command body. It receives the invocation and returns
// the normalized result. Errors are captured at the dispatcher boundary
// and never reach chat output directly.
type Handler func(ctx context.Context, inv *Invocation) (*Result, error)

// Definition is the immutable descriptor of one command.
// Definitions are registered once at startup and never mutated after.
type Definition struct {
	// Name is the canonical command name.
	Name string
	// Aliases are additional tokens resolving to this command.
	// They must be unique across the whole registry.
	Aliases []string
	// Description is a short description of what the command does.
	Description string
	// Usage shows how to use the command.
	Usage string
	// UserCooldown is the minimum time between invocations per user.
	UserCooldown time.Duration
	// ChannelCooldown is the minimum time between invocations per channel.
	ChannelCooldown time.Duration
	// Role is the minimum role required to run the command.
	Role Role
	// Platforms limits where the command may run. Empty means all platforms.
	Platforms []Platform
	// Mode selects the sync or async execution contract.
	Mode ExecMode
	// Trusted marks commands whose results may set the Safe flag,
	// bypassing downstream content filtering.
	Trusted bool
	// Handler executes the command body.
	Handler Handler
}

// SupportsPlatform reports whether the command may run on the platform.
func (d *Definition) SupportsPlatform(p Platform) bool {
	if len(d.Platforms) == 0 {
		return true
	}
	for _, dp := range d.Platforms {
		if dp == p {
			return true
		}
	}
	return false
}

// User identifies the invoking user within one platform.
type User struct {
	// ID is the platform-scoped user identifier.
	ID string
	// Name is the display name.
	Name string
	// Role is the resolved bot-level role.
	Role Role
	// Language is the user's preferred language code (e.g. "en").
	Language string
}

// Channel identifies the conversation within one platform.
type Channel struct {
	// ID is the platform-scoped channel identifier.
	ID string
	// Name is the display name, if the platform provides one.
	Name string
}

// Invocation is the per-message value object handed to a command body.
// It is owned by the call that created it and never shared.
type Invocation struct {
	// ID is the generated invocation id.
	ID string
	// Command is the resolved canonical command name.
	Command string
	// Args are the whitespace-split arguments.
	Args []string
	// RawArgs is the raw argument string after the command token.
	RawArgs string
	// User is the invoking user.
	User User
	// Channel is the conversation the message arrived in.
	Channel Channel
	// Platform is the source platform.
	Platform Platform
	// Extra carries an opaque platform-specific payload. Only
	// platform-specific commands should downcast it.
	Extra any
}

// Embed holds optional rich-presentation fields for platforms
// that support them (rendered as an embed on Discord, ignored or
// flattened to text elsewhere).
type Embed struct {
	Title        string
	Description  string
	ImageURL     string
	ThumbnailURL string
	Footer       string
	Color        int
}

// Result is the normalized command response, immutable once returned.
type Result struct {
	// Text is the response message.
	Text string
	// Safe bypasses downstream content filtering. Only trusted
	// commands may set it; the dispatcher strips it otherwise.
	Safe bool
	// Ephemeral indicates the response should only be visible to the
	// invoking user on platforms that support it.
	Ephemeral bool
	// Embed holds optional rich-presentation fields.
	Embed *Embed
	// Err is the captured failure, set by the dispatcher when the
	// command body returned an error or panicked. It is logged, never
	// sent to chat.
	Err error
}

// Failed reports whether the invocation faulted.
func (r *Result) Failed() bool {
	return r != nil && r.Err != nil
}
