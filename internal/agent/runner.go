package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/shared/llmutils"
	"github.com/pelicandev/pelican/internal/tools"
)

// ToolEvent is the audit record of one executed tool call.
type ToolEvent struct {
	Call   string
	Result string
}

// TurnResult is the outcome of one LLM/tool loop.
type TurnResult struct {
	Content   string
	ToolsUsed []string
	Events    []ToolEvent
}

// runTurn drives the LLM/tool loop for one turn: call the model, execute any
// requested tools, feed results back, and repeat until the model answers in
// plain text or the iteration cap is hit.
func runTurn(
	ctx context.Context,
	provider schema.LLMProvider,
	conv *schema.Messages,
	tls *tools.ToolList,
	maxIter int,
	onProgress func(string),
) (TurnResult, error) {
	var result TurnResult

	for i := 0; i < maxIter; i++ {
		resp, err := provider.Chat(ctx, conv, tls.Definitions(), schema.ChatOptions{})
		if err != nil {
			return result, fmt.Errorf("llm call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			result.Content = llmutils.StripThink(resp.Content)
			return result, nil
		}

		conv.AddAssistant(resp.Content, resp.ToolCalls)
		if onProgress != nil {
			onProgress(llmutils.ToolHint(resp.ToolCalls))
		}

		for _, tc := range resp.ToolCalls {
			out := executeTool(ctx, tls, tc)
			conv.AddToolResult(tc.ID, tc.Name, out)

			result.ToolsUsed = append(result.ToolsUsed, tc.Name)
			args, _ := json.Marshal(tc.Arguments)
			result.Events = append(result.Events, ToolEvent{
				Call:   fmt.Sprintf("%s(%s)", tc.Name, args),
				Result: llmutils.Truncate(out, 2000),
			})
		}
	}

	slog.Warn("turn hit tool iteration cap", "max", maxIter)
	result.Content = "I hit the tool iteration limit before finishing. Partial progress is saved."
	return result, nil
}

func executeTool(ctx context.Context, tls *tools.ToolList, tc schema.ToolCall) string {
	t := tls.Get(tc.Name)
	if t == nil {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}
	out, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		slog.Warn("tool execution failed", "tool", tc.Name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}
