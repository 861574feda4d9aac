package schema

import "context"

// Channel is a messaging surface (Telegram, Slack, CLI, ...). Implementations
// publish inbound traffic on the message bus and deliver outbound replies.
type Channel interface {
	Name() string
	// Start blocks until ctx is cancelled or the channel fails fatally.
	Start(ctx context.Context) error
	// Send delivers one reply to the given chat.
	Send(ctx context.Context, chatID, text string, metadata map[string]string) error
}
