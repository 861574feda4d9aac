package channels

import (
	"context"
	"log/slog"

	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
)

// Manager owns all enabled channels and routes outbound messages.
type Manager struct {
	channels map[string]schema.Channel
	b        *bus.MessageBus
}

// NewManager creates a Manager and initialises all enabled channels.
// The CLI channel is registered when interactive is true.
func NewManager(cfg *config.Config, b *bus.MessageBus, interactive bool) *Manager {
	m := &Manager{
		channels: make(map[string]schema.Channel),
		b:        b,
	}

	if interactive {
		cli := NewCLIChannel(b)
		m.channels[cli.Name()] = cli
		slog.Info("channel enabled", "name", cli.Name())
	}
	if cfg.Channels.Telegram.Enabled {
		ch := NewTelegramChannel(cfg.Channels.Telegram, b)
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}
	if cfg.Channels.Slack.Enabled {
		ch := NewSlackChannel(cfg.Channels.Slack, b)
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}
	if cfg.Channels.WhatsApp.Enabled {
		ch := NewWhatsAppChannel(cfg.Channels.WhatsApp, b)
		m.channels[ch.Name()] = ch
		slog.Info("channel enabled", "name", ch.Name())
	}

	return m
}

// EnabledChannels returns the names of all enabled channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, n)
	}
	return names
}

// StartAll starts all channels concurrently and dispatches outbound messages.
// Blocks until ctx is cancelled.
func (m *Manager) StartAll(ctx context.Context) error {
	go m.dispatchOutbound(ctx)

	for name, ch := range m.channels {
		go func(n string, c schema.Channel) {
			slog.Info("starting channel", "name", n)
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", n, "error", err)
			}
		}(name, ch)
	}

	<-ctx.Done()
	return ctx.Err()
}

// dispatchOutbound reads from the outbound queue and routes each message to
// its channel's Send method.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.b.Outbound:
			ch, ok := m.channels[msg.Channel]
			if !ok {
				slog.Debug("unknown channel for outbound message", "channel", msg.Channel)
				continue
			}
			if err := ch.Send(ctx, msg.ChatID, msg.Content, msg.Metadata); err != nil {
				slog.Error("send error", "channel", msg.Channel, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
