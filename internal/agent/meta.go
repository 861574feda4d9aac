package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/shared/budget"
	"github.com/pelicandev/pelican/internal/shared/llmutils"
)

const metaCompressInstruction = `The following conversation summary has grown too long.
Re-compress it to at most %d sentences, keeping the most durable facts, decisions, and open tasks.
Return only the compressed summary text.`

// maybeCompress re-compresses an oversized summary with a single LLM call.
// When the summary is within the limit, or the call fails, or the limit is
// disabled, the input is returned unchanged.
func (c *Consolidator) maybeCompress(ctx context.Context, summary string) string {
	limit := c.cfg.MetaWordLimit
	if limit <= 0 {
		return summary
	}
	words := budget.WordCount(summary)
	if words <= limit {
		return summary
	}

	conv := schema.NewMessages().
		AddSystem(fmt.Sprintf(metaCompressInstruction, c.cfg.MetaTargetSentences)).
		AddUser(summary)

	compressed, err := c.provider.Stream(ctx, conv, schema.ChatOptions{}, nil)
	if err != nil {
		slog.Warn("summary compression failed, keeping original", "error", err, "words", words)
		return summary
	}
	compressed = llmutils.StripThink(compressed)
	if compressed == "" {
		slog.Warn("summary compression returned nothing, keeping original", "words", words)
		return summary
	}

	slog.Info("compressed summary", "from_words", words, "to_words", budget.WordCount(compressed))
	return compressed
}
