// Package channels provides the platform adapter interface and the
// manager wiring adapters to the bus and the command engine.
package channels

import (
	"context"

	"mikobot/pkg/bus"
)

// Channel represents one platform adapter (Telegram, Discord, Slack).
type Channel interface {
	// ID returns the unique channel identifier.
	ID() string

	// Name returns the human-readable channel name.
	Name() string

	// Start starts the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop stops the channel gracefully.
	Stop(ctx context.Context) error

	// IsEnabled returns whether the channel is enabled in configuration.
	IsEnabled() bool

	// SendMessage sends an outbound bus message through this channel.
	SendMessage(ctx context.Context, msg *bus.Message) error
}
