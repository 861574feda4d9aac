package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/shared/budget"
	"github.com/pelicandev/pelican/internal/shared/llmutils"
	"github.com/pelicandev/pelican/internal/store"
)

const minSummarySentences = 5

const consolidationInstruction = `You summarize part of a long-running conversation between a user and their assistant.
Keep concrete facts, decisions, names, dates, and open tasks. Drop pleasantries and redundancy.
Write plain prose or short bullet lines. Produce only the summary text, no preamble.`

// Consolidator folds older conversation turns into the rolling auto-summary.
// The store cursor marks how many conversational messages are already covered
// by the summary; it only advances together with a successfully saved summary.
type Consolidator struct {
	store    *store.Store
	provider schema.LLMProvider
	cfg      config.ContextConfig
}

// NewConsolidator builds a Consolidator.
func NewConsolidator(st *store.Store, provider schema.LLMProvider, cfg config.ContextConfig) *Consolidator {
	return &Consolidator{store: st, provider: provider, cfg: cfg}
}

// KeepRecent returns how many of the newest conversational messages stay out
// of consolidation, derived from the threshold and the keep-recent ratio.
// Always at least 1 so the current exchange is never summarized mid-turn.
func (c *Consolidator) KeepRecent() int {
	n := int(math.Round(float64(c.cfg.ConsolidationThreshold) * c.cfg.KeepRecentRatio))
	if n < 1 {
		n = 1
	}
	return n
}

// ShouldRun reports whether the unconsolidated span has grown past the
// threshold.
func (c *Consolidator) ShouldRun(filteredLen, cursor int) bool {
	return filteredLen-cursor > c.cfg.ConsolidationThreshold
}

// NearThreshold reports whether the unconsolidated span is within two messages
// of the threshold, which is when the pre-consolidation notice fires.
func (c *Consolidator) NearThreshold(filteredLen, cursor int) bool {
	return filteredLen-cursor >= c.cfg.ConsolidationThreshold-2
}

// Run consolidates everything older than the keep-recent tail of filtered and
// returns the post-consolidation window (the unconsolidated suffix).
//
// Any failure, from the LLM call to the summary save, leaves the cursor and
// summary untouched and returns the pre-consolidation window; the
// conversation degrades to a longer context instead of losing messages.
func (c *Consolidator) Run(ctx context.Context, filtered []schema.Message, cursor int) []schema.Message {
	return c.run(ctx, filtered, cursor, c.KeepRecent())
}

// RunAll consolidates the entire unconsolidated span, keeping nothing back.
// Used by the /new command to reset the active window.
func (c *Consolidator) RunAll(ctx context.Context, filtered []schema.Message, cursor int) []schema.Message {
	return c.run(ctx, filtered, cursor, 0)
}

func (c *Consolidator) run(ctx context.Context, filtered []schema.Message, cursor int, keepRecent int) []schema.Message {
	if cursor > len(filtered) {
		// A truncated or replaced log can leave a stale cursor. Clamp rather
		// than fail; nothing below the clamp can be summarized anyway.
		slog.Warn("consolidation cursor beyond history, clamping", "cursor", cursor, "messages", len(filtered))
		cursor = len(filtered)
	}
	window := filtered[cursor:]

	end := len(filtered) - keepRecent
	if end <= cursor {
		// Nothing new to fold in. No LLM call, no state change.
		return window
	}
	toSummarize := filtered[cursor:end]

	chunk, err := c.summarize(ctx, toSummarize)
	if err != nil {
		slog.Warn("consolidation failed, keeping window", "error", err, "messages", len(toSummarize))
		return window
	}
	summary := chunk
	if previous := c.store.AutoSummary(); previous != "" {
		summary = previous + "\n\n" + chunk
	}
	summary = c.maybeCompress(ctx, summary)

	if err := c.store.SaveConsolidated(summary, end); err != nil {
		slog.Warn("consolidation save failed, keeping window", "error", err)
		return window
	}

	slog.Info("consolidated conversation",
		"summarized", len(toSummarize),
		"cursor", end,
		"summary_words", budget.WordCount(summary))
	return filtered[end:]
}

// summarize runs one LLM call over msgs and returns the chunk summary text.
func (c *Consolidator) summarize(ctx context.Context, msgs []schema.Message) (string, error) {
	sentences := len(msgs) / 10
	if sentences < minSummarySentences {
		sentences = minSummarySentences
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Messages (%d), target about %d sentences:\n\n", len(msgs), sentences))
	sb.WriteString(renderTranscript(msgs))

	conv := schema.NewMessages().
		AddSystem(consolidationInstruction).
		AddUser(sb.String())

	text, err := c.provider.Stream(ctx, conv, schema.ChatOptions{}, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	text = llmutils.StripThink(text)
	if text == "" {
		return "", errors.New("summarize: empty response")
	}
	return text, nil
}

// renderTranscript formats messages as one transcript line each.
func renderTranscript(msgs []schema.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Format("2006-01-02 15:04") + " "
		}
		sb.WriteString(fmt.Sprintf("[%s%s]: %s\n", ts, strings.ToUpper(string(m.Role)), m.Content))
	}
	return sb.String()
}
