// Package bus decouples channels from the agent loop with buffered in-memory
// queues. Channels publish inbound messages; the agent publishes outbound
// replies that the channel manager dispatches back to their origin.
package bus

import (
	"context"
	"time"
)

// Channel name constants used on bus messages.
const (
	ChannelCLI      = "cli"
	ChannelTelegram = "telegram"
	ChannelSlack    = "slack"
	ChannelWhatsApp = "whatsapp"
	ChannelSystem   = "system"
)

// InboundMessage is one user message arriving from a channel.
type InboundMessage struct {
	Channel    string
	SenderID   string
	SenderName string
	ChatID     string
	Content    string
	Timestamp  time.Time
	Metadata   map[string]string
}

// Preview returns the first n characters of the content for logging.
func (m InboundMessage) Preview(n int) string {
	if len(m.Content) <= n {
		return m.Content
	}
	return m.Content[:n] + "..."
}

// OutboundMessage is one reply to deliver through a channel.
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	Metadata map[string]string
}

// MessageBus carries traffic between channels and the agent loop.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage
}

// New returns a bus with the given queue depth per direction.
func New(size int) *MessageBus {
	if size <= 0 {
		size = 128
	}
	return &MessageBus{
		Inbound:  make(chan InboundMessage, size),
		Outbound: make(chan OutboundMessage, size),
	}
}

// PublishInbound enqueues an inbound message, honoring ctx cancellation when
// the queue is full.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	select {
	case b.Inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishOutbound enqueues an outbound reply.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	select {
	case b.Outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
