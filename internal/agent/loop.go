package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/shared/llmutils"
	"github.com/pelicandev/pelican/internal/store"
	"github.com/pelicandev/pelican/internal/tools"
)

const defaultIdentity = `You are pelican, a personal assistant. You are helpful, concise, and direct.
You remember durable facts about the user via the save_memory tool and can message them proactively.`

const helpText = `Commands:
/new   - consolidate the conversation and start a fresh window
/help  - show this help`

// AgentLoop consumes inbound messages from the bus, runs the LLM/tool loop
// for each, and publishes replies.
type AgentLoop struct {
	bus        *bus.MessageBus
	provider   schema.LLMProvider
	assembler  *Assembler
	cons       *Consolidator
	store      *store.Store
	tools      *tools.ToolList
	cfg        *config.Config
	basePrompt string
}

// NewAgentLoop wires the loop. The base identity prompt is loaded from
// IDENTITY.md in the workspace when present.
func NewAgentLoop(
	b *bus.MessageBus,
	provider schema.LLMProvider,
	assembler *Assembler,
	cons *Consolidator,
	st *store.Store,
	tls *tools.ToolList,
	cfg *config.Config,
) *AgentLoop {
	return &AgentLoop{
		bus:        b,
		provider:   provider,
		assembler:  assembler,
		cons:       cons,
		store:      st,
		tools:      tls,
		cfg:        cfg,
		basePrompt: loadBasePrompt(cfg.WorkspacePath()),
	}
}

// Run consumes inbound messages until ctx is cancelled.
func (l *AgentLoop) Run(ctx context.Context) error {
	slog.Info("agent loop started", "tools", l.tools.Names())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-l.bus.Inbound:
			go l.handle(ctx, in)
		}
	}
}

func (l *AgentLoop) handle(ctx context.Context, in bus.InboundMessage) {
	slog.Info("inbound message",
		"channel", in.Channel,
		"sender", in.SenderID,
		"preview", in.Preview(80))

	reply := l.processMessage(ctx, in)
	if reply == "" {
		return
	}
	if err := l.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel:  in.Channel,
		ChatID:   in.ChatID,
		Content:  reply,
		Metadata: in.Metadata,
	}); err != nil {
		slog.Warn("failed to publish reply", "channel", in.Channel, "error", err)
	}
}

// ProcessDirect runs one turn outside a channel (cron jobs, CLI REPL) and
// returns the reply text.
func (l *AgentLoop) ProcessDirect(ctx context.Context, content, channel, chatID string) (string, error) {
	in := bus.InboundMessage{Channel: channel, ChatID: chatID, SenderID: chatID, Content: content}
	reply := l.processMessage(ctx, in)
	if reply == "" {
		return "", fmt.Errorf("no reply produced")
	}
	return reply, nil
}

func (l *AgentLoop) processMessage(ctx context.Context, in bus.InboundMessage) string {
	if cmd := strings.TrimSpace(in.Content); strings.HasPrefix(cmd, "/") {
		if reply, handled := l.handleCommand(ctx, cmd); handled {
			return reply
		}
	}

	senderID := in.SenderID
	if in.SenderName != "" {
		senderID = in.SenderID + "|" + in.SenderName
	}
	userMsg := schema.NewUserMessage(in.Channel, senderID, in.Content)

	tc := tools.TurnContext{
		Channel:     in.Channel,
		ChatID:      in.ChatID,
		MsgID:       in.Metadata["message_id"],
		MessageSent: make(chan struct{}),
	}
	turnCtx := tools.WithTurn(ctx, tc)

	conv := l.assembler.Assemble(turnCtx, userMsg, l.basePrompt)

	onProgress := func(hint string) {
		if hint == "" {
			return
		}
		_ = l.bus.PublishOutbound(ctx, bus.OutboundMessage{
			Channel:  in.Channel,
			ChatID:   in.ChatID,
			Content:  hint,
			Metadata: map[string]string{"_progress": "1"},
		})
	}

	res, err := runTurn(turnCtx, l.provider, conv, l.tools, l.cfg.LLM.MaxToolIterations, onProgress)
	if err != nil {
		slog.Error("turn failed", "channel", in.Channel, "error", err)
		l.assembler.Persist(userMsg, schema.NewAssistantMessage(in.Channel, "(turn failed: "+llmutils.Truncate(err.Error(), 200)+")"))
		return "Sorry, something went wrong processing that."
	}

	l.assembler.Persist(userMsg, schema.NewAssistantMessage(in.Channel, res.Content))
	for _, ev := range res.Events {
		l.assembler.PersistToolEvent(in.Channel, ev.Call, ev.Result)
	}

	// If the model already delivered its answer via the message tool, the
	// automatic end-of-turn reply would duplicate it.
	select {
	case <-tc.MessageSent:
		return ""
	default:
	}
	return res.Content
}

func (l *AgentLoop) handleCommand(ctx context.Context, cmd string) (string, bool) {
	switch strings.Fields(cmd)[0] {
	case "/new":
		history, err := l.store.LoadHistory(0)
		if err != nil {
			slog.Error("failed to load history for /new", "error", err)
			return "Could not reset the conversation.", true
		}
		filtered := filterConversational(history)
		l.cons.RunAll(ctx, filtered, l.store.Cursor())
		return "Started a fresh conversation window. Older turns live in the summary.", true
	case "/help":
		return helpText, true
	default:
		return "", false
	}
}

func loadBasePrompt(workspace string) string {
	data, err := os.ReadFile(filepath.Join(workspace, "IDENTITY.md"))
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return defaultIdentity
	}
	return strings.TrimSpace(string(data))
}
