package llmutils

import (
	"strings"
	"testing"

	"github.com/pelicandev/pelican/internal/schema"
)

func TestToolHint(t *testing.T) {
	tcs := []schema.ToolCall{
		{Name: "web_fetch", Arguments: map[string]any{"url": "https://example.com"}},
		{Name: "save_memory", Arguments: map[string]any{}},
	}
	got := ToolHint(tcs)
	if got != `web_fetch("https://example.com"), save_memory` {
		t.Errorf("got %q", got)
	}
}

func TestToolHint_PicksSortedFirstKey(t *testing.T) {
	tc := []schema.ToolCall{{
		Name: "schedule",
		Arguments: map[string]any{
			"message":  "standup reminder",
			"cron":     "0 9 * * 1-5",
			"deliver":  true,
			"timezone": "Europe/Lisbon",
		},
	}}
	want := `schedule("0 9 * * 1-5")`
	for i := 0; i < 20; i++ {
		if got := ToolHint(tc); got != want {
			t.Fatalf("iteration %d: got %q, want %q", i, got, want)
		}
	}
}

func TestToolHint_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", 60)
	got := ToolHint([]schema.ToolCall{{Name: "web_fetch", Arguments: map[string]any{"url": long}}})
	if !strings.Contains(got, strings.Repeat("x", 40)+"…") {
		t.Errorf("long value should be shortened, got %q", got)
	}
	if strings.Contains(got, strings.Repeat("x", 41)) {
		t.Errorf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("got %q", got)
	}
}

func TestStripThink(t *testing.T) {
	in := "<think>internal reasoning\nmore</think>  the answer"
	if got := StripThink(in); got != "the answer" {
		t.Errorf("got %q", got)
	}
	if got := StripThink("plain text"); got != "plain text" {
		t.Errorf("got %q", got)
	}
}
