package channels

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/config"
)

// SlackChannel implements Slack via Socket Mode. DMs always reach the agent
// (subject to the allowlist); channel messages only on mention.
type SlackChannel struct {
	Base
	cfg       config.SlackConfig
	webClient *slackgo.Client
	smClient  *socketmode.Client
	botUserID string
}

func NewSlackChannel(cfg config.SlackConfig, b *bus.MessageBus) *SlackChannel {
	return &SlackChannel{
		Base: NewBase(bus.ChannelSlack, b, cfg.AllowFrom),
		cfg:  cfg,
	}
}

func (s *SlackChannel) Name() string { return bus.ChannelSlack }

func (s *SlackChannel) Start(ctx context.Context) error {
	if s.cfg.BotToken == "" || s.cfg.AppToken == "" {
		slog.Warn("slack: bot/app token not configured")
		<-ctx.Done()
		return ctx.Err()
	}

	s.webClient = slackgo.New(s.cfg.BotToken,
		slackgo.OptionAppLevelToken(s.cfg.AppToken))

	if resp, err := s.webClient.AuthTestContext(ctx); err == nil {
		s.botUserID = resp.UserID
		slog.Info("slack: connected", "bot_user_id", s.botUserID)
	}

	s.smClient = socketmode.New(s.webClient)

	go s.smClient.RunContext(ctx) //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.smClient.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, evt)
		}
	}
}

func (s *SlackChannel) handleEvent(ctx context.Context, evt socketmode.Event) {
	if evt.Type != socketmode.EventTypeEventsAPI {
		return
	}
	s.smClient.Ack(*evt.Request)
	cb, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}

	switch ev := cb.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		// A mention arrives as both a message and an app_mention event; the
		// app_mention handler keeps it.
		if s.botUserID != "" && strings.Contains(ev.Text, "<@"+s.botUserID+">") {
			return
		}
		if ev.SubType != "" || ev.BotID != "" {
			return
		}
		if ev.ChannelType != "im" {
			return
		}
		s.deliver(ctx, ev.User, ev.Channel, ev.Text, ev.ChannelType, ev.TimeStamp, ev.ThreadTimeStamp)
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" || ev.User == s.botUserID {
			return
		}
		s.deliver(ctx, ev.User, ev.Channel, ev.Text, "channel", ev.TimeStamp, ev.ThreadTimeStamp)
	}
}

func (s *SlackChannel) deliver(ctx context.Context, userID, channelID, text, channelType, ts, threadTS string) {
	if userID == "" || channelID == "" || userID == s.botUserID {
		return
	}
	text = s.stripMention(text)
	if threadTS == "" {
		threadTS = ts
	}
	s.HandleMessage(ctx, userID, "", channelID, text, map[string]string{
		"thread_ts":    threadTS,
		"channel_type": channelType,
	})
}

func (s *SlackChannel) stripMention(text string) string {
	if s.botUserID == "" {
		return text
	}
	re := regexp.MustCompile(`<@` + regexp.QuoteMeta(s.botUserID) + `>\s*`)
	return strings.TrimSpace(re.ReplaceAllString(text, ""))
}

func (s *SlackChannel) Send(ctx context.Context, chatID, text string, metadata map[string]string) error {
	if s.webClient == nil || metadata["_progress"] != "" {
		return nil
	}

	options := []slackgo.MsgOption{slackgo.MsgOptionText(text, false)}
	if threadTS := metadata["thread_ts"]; threadTS != "" && metadata["channel_type"] != "im" {
		options = append(options, slackgo.MsgOptionTS(threadTS))
	}

	_, _, err := s.webClient.PostMessageContext(ctx, chatID, options...)
	return err
}
