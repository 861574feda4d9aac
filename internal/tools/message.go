package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pelicandev/pelican/internal/bus"
)

// MessageTool sends a message to the user on a chat channel.
// Routing (channel, chat_id, message_id) is read from the TurnContext stored
// in the context passed to Execute.
type MessageTool struct {
	bus *bus.MessageBus
}

// NewMessageTool creates a MessageTool backed by a MessageBus.
func NewMessageTool(b *bus.MessageBus) *MessageTool {
	return &MessageTool{bus: b}
}

func (t *MessageTool) Name() string { return "message" }
func (t *MessageTool) Description() string {
	return "Send a message to the user. Use this when you want to communicate something."
}

func (t *MessageTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {
				"type": "string",
				"description": "The message content to send"
			},
			"channel": {
				"type": "string",
				"description": "Optional: target channel (telegram, slack, whatsapp)"
			},
			"chat_id": {
				"type": "string",
				"description": "Optional: target chat/user ID"
			}
		},
		"required": ["content"]
	}`)
}

func (t *MessageTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	content, _ := params["content"].(string)
	if content == "" {
		return "Error: content is required", nil
	}

	tc := TurnCtx(ctx)

	channel := tc.Channel
	if ch, ok := params["channel"].(string); ok && ch != "" {
		channel = ch
	}
	chatID := tc.ChatID
	if id, ok := params["chat_id"].(string); ok && id != "" {
		chatID = id
	}
	if channel == "" || chatID == "" {
		return "Error: no delivery target (channel/chat_id)", nil
	}

	metadata := map[string]string{}
	if tc.MsgID != "" {
		metadata["message_id"] = tc.MsgID
	}

	if err := t.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel:  channel,
		ChatID:   chatID,
		Content:  content,
		Metadata: metadata,
	}); err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}

	if tc.MessageSent != nil {
		select {
		case <-tc.MessageSent:
			// already closed by an earlier call this turn
		default:
			close(tc.MessageSent)
		}
	}
	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}
