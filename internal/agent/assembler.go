// Package agent contains pelican's conversational core: context assembly,
// memory consolidation, and the LLM/tool loop.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/shared/budget"
	"github.com/pelicandev/pelican/internal/store"
)

// Assembler builds the LLM context for each turn from the message log, the
// curated memory document, and the rolling auto-summary, triggering
// consolidation when the unconsolidated span crosses the threshold.
//
// Its entry points never fail the turn: store and LLM errors are logged and
// the context degrades conservatively instead.
type Assembler struct {
	store  *store.Store
	cons   *Consolidator
	cfg    config.ContextConfig
	owners []config.OwnerAlias
}

// NewAssembler builds an Assembler.
func NewAssembler(st *store.Store, cons *Consolidator, cfg config.ContextConfig, owners []config.OwnerAlias) *Assembler {
	return &Assembler{store: st, cons: cons, cfg: cfg, owners: owners}
}

// Assemble builds the full conversation for one turn: system prompt (base +
// memory + summary + optional pre-consolidation notice), the budgeted history
// window, and the incoming user message last.
func (a *Assembler) Assemble(ctx context.Context, userMsg schema.Message, basePrompt string) *schema.Messages {
	history, err := a.store.LoadHistory(0)
	if err != nil {
		slog.Error("failed to load history, assembling without it", "error", err)
		history = nil
	}
	filtered := filterConversational(history)
	cursor := a.store.Cursor()

	var window []schema.Message
	if a.cons.ShouldRun(len(filtered), cursor) {
		window = a.cons.Run(ctx, filtered, cursor)
		cursor = a.store.Cursor()
	} else {
		if cursor > len(filtered) {
			cursor = len(filtered)
		}
		window = filtered[cursor:]
	}

	notice := ""
	if a.cons.NearThreshold(len(filtered), cursor) {
		notice = preConsolidationNotice
	}

	// Label history before budgeting so word costs reflect what the model
	// will actually see.
	labeled := make([]schema.Message, len(window))
	for i, m := range window {
		labeled[i] = a.labeled(m)
	}

	// Budgets. History is selected newest first under its own cap, then the
	// three sections share the total cap, trimming history, summary, memory
	// in that order. The min-recency floor survives every cut.
	window = budget.SelectRecent(labeled, a.cfg.HistoryMaxWords, a.cfg.HistoryMinRecent, messageWords)

	summary := a.store.AutoSummary()
	memory := a.store.CuratedMemory()
	if a.cfg.DedupeSummary {
		summary = budget.DedupeLines(summary, memory)
	}
	summary = budget.TruncateWords(summary, a.cfg.SummaryMaxWords)
	memory = budget.TruncateWords(memory, a.cfg.MemoryMaxWords)

	if a.cfg.TotalMaxWords > 0 {
		histWords := 0
		for _, m := range window {
			histWords += budget.WordCount(messageWords(m))
		}
		histAllow, sumAllow, memAllow := budget.FitTotal(
			histWords, budget.WordCount(summary), budget.WordCount(memory), a.cfg.TotalMaxWords)
		if histAllow < histWords {
			window = budget.SelectRecent(window, histAllow, a.cfg.HistoryMinRecent, messageWords)
		}
		summary = budget.TruncateWords(summary, sumAllow)
		memory = budget.TruncateWords(memory, memAllow)
	}

	conv := schema.NewMessages().AddSystem(buildSystemPrompt(basePrompt, memory, summary, notice))
	for _, m := range window {
		conv.Append(m)
	}
	conv.Append(a.labeled(userMsg))
	return conv
}

// Persist appends the user and assistant halves of a completed exchange to
// the message log. Failures are logged; a lost log line must not fail a turn
// that already happened.
func (a *Assembler) Persist(userMsg, assistantMsg schema.Message) {
	if err := a.store.AppendAll(userMsg, assistantMsg); err != nil {
		slog.Error("failed to persist exchange", "error", err)
	}
}

// PersistToolEvent appends an audit pair for one executed tool call. Audit
// entries are greppable history; they never re-enter the LLM context.
func (a *Assembler) PersistToolEvent(channel, callText, resultText string) {
	call := schema.Message{Role: schema.RoleToolCall, Content: callText, Channel: channel}
	result := schema.Message{Role: schema.RoleToolResult, Content: resultText, Channel: channel}
	if err := a.store.AppendAll(call, result); err != nil {
		slog.Error("failed to persist tool event", "error", err)
	}
}

// filterConversational keeps the user/assistant messages that participate in
// context assembly and consolidation arithmetic.
func filterConversational(msgs []schema.Message) []schema.Message {
	out := make([]schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case schema.RoleUser, schema.RoleAssistant:
			out = append(out, m)
		}
	}
	return out
}

func messageWords(m schema.Message) string { return m.Content }

// labeled prefixes user messages with "[channel/label]" so the model can tell
// who is speaking on which surface. Owners get their configured alias; anyone
// else is labeled with their raw sender id.
func (a *Assembler) labeled(m schema.Message) schema.Message {
	if m.Role != schema.RoleUser || m.Channel == "" || m.SenderID == "" {
		return m
	}
	label, ok := resolveOwnerLabel(a.owners, m.Channel, m.SenderID)
	if !ok {
		label = m.SenderID
	}
	m.Content = fmt.Sprintf("[%s/%s] %s", m.Channel, label, m.Content)
	return m
}

// resolveOwnerLabel matches senderID against the owner aliases. Compound
// sender ids ("id|username") match on either part. Channel-scoped aliases
// win over channel-less ones.
func resolveOwnerLabel(owners []config.OwnerAlias, channel, senderID string) (string, bool) {
	parts := strings.Split(senderID, "|")

	match := func(scoped bool) (string, bool) {
		for _, o := range owners {
			if scoped != (o.Channel != "") {
				continue
			}
			if o.Channel != "" && !strings.EqualFold(o.Channel, channel) {
				continue
			}
			for _, p := range parts {
				if strings.EqualFold(strings.TrimSpace(p), o.Name) {
					if o.Label != "" {
						return o.Label, true
					}
					return "owner", true
				}
			}
		}
		return "", false
	}

	if label, ok := match(true); ok {
		return label, true
	}
	return match(false)
}
