package channels

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/config"
)

// TelegramChannel implements the Telegram bot via long polling.
type TelegramChannel struct {
	Base
	cfg config.TelegramConfig
	bot *tgbotapi.BotAPI
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) *TelegramChannel {
	return &TelegramChannel{
		Base: NewBase(bus.ChannelTelegram, b, cfg.AllowFrom),
		cfg:  cfg,
	}
}

func (t *TelegramChannel) Name() string { return bus.ChannelTelegram }

func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.cfg.Token == "" {
		return fmt.Errorf("telegram: bot token not configured")
	}
	bot, err := tgbotapi.NewBotAPI(t.cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	t.bot = bot
	slog.Info("telegram: connected", "username", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go t.handleUpdate(ctx, update)
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (t *TelegramChannel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	senderID := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	content := msg.Text
	if msg.Caption != "" {
		content = msg.Caption
	}
	if content == "" {
		content = "[empty message]"
	}

	// Typing indicator while the agent works on the message.
	typingCtx, cancelTyping := context.WithCancel(ctx)
	defer cancelTyping()
	go t.sendTypingLoop(typingCtx, msg.Chat.ID)

	metadata := map[string]string{
		"message_id": strconv.Itoa(msg.MessageID),
	}
	t.HandleMessage(ctx, senderID, msg.From.UserName, chatID, content, metadata)
}

func (t *TelegramChannel) sendTypingLoop(ctx context.Context, chatID int64) {
	for {
		if t.bot != nil {
			action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
			_, _ = t.bot.Send(action)
		}
		select {
		case <-time.After(4 * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

func (t *TelegramChannel) Send(_ context.Context, chatID, text string, metadata map[string]string) error {
	if t.bot == nil {
		return fmt.Errorf("telegram: bot not running")
	}
	if metadata["_progress"] != "" {
		// Typing indicator already covers progress on Telegram.
		return nil
	}
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}
	if text == "" || text == "[empty message]" {
		return nil
	}

	for _, chunk := range splitMessage(text, 4000) {
		html := markdownToTelegramHTML(chunk)
		m := tgbotapi.NewMessage(id, html)
		m.ParseMode = "HTML"
		if _, err := t.bot.Send(m); err != nil {
			// Fallback to plain text.
			m2 := tgbotapi.NewMessage(id, chunk)
			_, _ = t.bot.Send(m2)
		}
	}
	return nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat_id: %s", s)
	}
	return id, nil
}

var (
	reTGCodeBlock  = regexp.MustCompile("(?s)```[\\w]*\\n?([\\s\\S]*?)```")
	reTGInlineCode = regexp.MustCompile("`([^`]+)`")
	reTGHeader     = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	reTGBlockquote = regexp.MustCompile(`(?m)^>\s*(.*)$`)
	reTGLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reTGBold1      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reTGBold2      = regexp.MustCompile(`__(.+?)__`)
	reTGItalic     = regexp.MustCompile(`(?:^|[^a-zA-Z0-9])_([^_]+)_(?:[^a-zA-Z0-9]|$)`)
	reTGStrike     = regexp.MustCompile(`~~(.+?)~~`)
	reTGBullet     = regexp.MustCompile(`(?m)^[-*]\s+`)
)

// markdownToTelegramHTML converts the markdown subset models emit into the
// HTML subset Telegram accepts.
func markdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var codeBlocks []string
	text = reTGCodeBlock.ReplaceAllStringFunc(text, func(m string) string {
		groups := reTGCodeBlock.FindStringSubmatch(m)
		codeBlocks = append(codeBlocks, groups[1])
		return fmt.Sprintf("\x00CB%d\x00", len(codeBlocks)-1)
	})

	var inlineCodes []string
	text = reTGInlineCode.ReplaceAllStringFunc(text, func(m string) string {
		groups := reTGInlineCode.FindStringSubmatch(m)
		inlineCodes = append(inlineCodes, groups[1])
		return fmt.Sprintf("\x00IC%d\x00", len(inlineCodes)-1)
	})

	text = reTGHeader.ReplaceAllString(text, "$1")
	text = reTGBlockquote.ReplaceAllString(text, "$1")

	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")

	text = reTGLink.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = reTGBold1.ReplaceAllString(text, "<b>$1</b>")
	text = reTGBold2.ReplaceAllString(text, "<b>$1</b>")
	text = reTGItalic.ReplaceAllString(text, "<i>$1</i>")
	text = reTGStrike.ReplaceAllString(text, "<s>$1</s>")
	text = reTGBullet.ReplaceAllString(text, "• ")

	for i, code := range inlineCodes {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00IC%d\x00", i),
			"<code>"+htmlEscape(code)+"</code>")
	}
	for i, code := range codeBlocks {
		text = strings.ReplaceAll(text, fmt.Sprintf("\x00CB%d\x00", i),
			"<pre><code>"+htmlEscape(code)+"</code></pre>")
	}
	return text
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
