// Package llmutils holds small helpers for working with LLM inputs and outputs.
package llmutils

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pelicandev/pelican/internal/schema"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens a string to at most n characters, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ToolHint generates a short hint string for a list of tool calls,
// e.g. `web_fetch("https://example.com")`. The argument shown is picked by
// sorted key order so the hint is stable across calls.
func ToolHint(tcs []schema.ToolCall) string {
	parts := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		keys := make([]string, 0, len(tc.Arguments))
		for k := range tc.Arguments {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var firstVal string
		for _, k := range keys {
			if s, ok := tc.Arguments[k].(string); ok && s != "" {
				firstVal = s
				break
			}
		}
		if firstVal == "" {
			parts = append(parts, tc.Name)
			continue
		}
		if len(firstVal) > 40 {
			firstVal = firstVal[:40] + "…"
		}
		parts = append(parts, fmt.Sprintf("%s(%q)", tc.Name, firstVal))
	}
	return strings.Join(parts, ", ")
}
