// Package channels provides chat-platform channel implementations.
package channels

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pelicandev/pelican/internal/bus"
)

// Base holds common state and helper methods shared by all channels.
type Base struct {
	channelName string
	b           *bus.MessageBus
	allowFrom   []string // empty = allow all
}

// NewBase creates a Base with the given channel name, bus, and allowlist.
func NewBase(name string, b *bus.MessageBus, allowFrom []string) Base {
	return Base{channelName: name, b: b, allowFrom: allowFrom}
}

// IsAllowed checks whether senderID is on the allowlist.
// senderID may be "id|username" (Telegram) or a plain string.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	for _, allowed := range b.allowFrom {
		if allowed == senderID {
			return true
		}
	}
	if strings.Contains(senderID, "|") {
		for _, part := range strings.Split(senderID, "|") {
			if part == "" {
				continue
			}
			for _, allowed := range b.allowFrom {
				if allowed == part {
					return true
				}
			}
		}
	}
	return false
}

// HandleMessage verifies the sender is allowed, then pushes an
// InboundMessage to the bus.
func (b *Base) HandleMessage(ctx context.Context, senderID, senderName, chatID, content string, metadata map[string]string) {
	if !b.IsAllowed(senderID) {
		slog.Warn("access denied", "channel", b.channelName, "sender", senderID)
		return
	}
	err := b.b.PublishInbound(ctx, bus.InboundMessage{
		Channel:    b.channelName,
		SenderID:   senderID,
		SenderName: senderName,
		ChatID:     chatID,
		Content:    content,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	})
	if err != nil {
		slog.Warn("failed to publish inbound message", "channel", b.channelName, "error", err)
	}
}

// splitMessage splits content into chunks that fit within maxLen,
// preferring newline breaks, then space breaks, then hard cut.
func splitMessage(content string, maxLen int) []string {
	if len(content) <= maxLen {
		return []string{content}
	}
	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := content[:maxLen]
		pos := strings.LastIndex(cut, "\n")
		if pos <= 0 {
			pos = strings.LastIndex(cut, " ")
		}
		if pos <= 0 {
			pos = maxLen
		}
		chunks = append(chunks, content[:pos])
		content = strings.TrimLeft(content[pos:], " \t")
	}
	return chunks
}
