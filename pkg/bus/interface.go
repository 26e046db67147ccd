// Package bus delivers outbound messages to the channel adapter that
// owns the target chat. Command replies are rendered inline by the
// adapters; the bus carries the asynchronous traffic, such as reminders
// coming due, from producers like the scheduler back to the platforms.
package bus

import (
	"context"
	"time"
)

// MessageType tags the payload of an outbound message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeReminder MessageType = "reminder"
)

// Message is one outbound delivery.
type Message struct {
	ID        string      `json:"id"`
	ChannelID string      `json:"channel_id"` // Platform adapter name (telegram, discord, slack)
	ChatID    string      `json:"chat_id"`    // Target chat/conversation on the platform
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	ReplyTo   string      `json:"reply_to"` // Platform message ID to reply to, if any
}

// Handler delivers a message to its platform.
type Handler func(ctx context.Context, msg *Message) error

// Bus routes outbound messages to per-channel delivery handlers.
type Bus interface {
	// Start starts the message bus.
	Start() error

	// Stop stops the message bus.
	Stop() error

	// RegisterHandler registers a delivery handler for a channel.
	// Multiple handlers can be registered for the same channel.
	RegisterHandler(channelID string, handler Handler)

	// UnregisterHandlers removes all handlers for a channel.
	UnregisterHandlers(channelID string)

	// Send queues a message for delivery to its channel's handlers.
	Send(msg *Message) error

	// Metrics reports sent, delivered and error counts.
	Metrics() map[string]uint64
}
