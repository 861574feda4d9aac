package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/store"
)

func testContextConfig() config.ContextConfig {
	cfg := config.DefaultConfig().Context
	cfg.ConsolidationThreshold = 5
	cfg.KeepRecentRatio = 0.4 // keepRecent = 2
	return cfg
}

func newTestConsolidator(t *testing.T, fake *fakeProvider, cfg config.ContextConfig) (*Consolidator, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return NewConsolidator(st, fake, cfg), st
}

func conversation(n int) []schema.Message {
	msgs := make([]schema.Message, 0, n)
	for i := 0; i < n; i++ {
		role := schema.RoleUser
		if i%2 == 1 {
			role = schema.RoleAssistant
		}
		msgs = append(msgs, schema.Message{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return msgs
}

func TestKeepRecent(t *testing.T) {
	cases := []struct {
		threshold int
		ratio     float64
		want      int
	}{
		{24, 0.25, 6},
		{5, 0.4, 2},
		{5, 0.1, 1},  // rounds to 1
		{4, 0.05, 1}, // floors at 1
	}
	for _, tc := range cases {
		cfg := testContextConfig()
		cfg.ConsolidationThreshold = tc.threshold
		cfg.KeepRecentRatio = tc.ratio
		c, _ := newTestConsolidator(t, &fakeProvider{}, cfg)
		if got := c.KeepRecent(); got != tc.want {
			t.Errorf("KeepRecent(threshold=%d, ratio=%g) = %d, want %d", tc.threshold, tc.ratio, got, tc.want)
		}
	}
}

func TestRun_NothingToFold_NoLLMCall(t *testing.T) {
	fake := &fakeProvider{}
	c, st := newTestConsolidator(t, fake, testContextConfig())

	// 2 messages, keepRecent 2: the span to summarize is empty.
	window := c.Run(context.Background(), conversation(2), 0)
	if fake.streamCalls != 0 {
		t.Errorf("expected no LLM calls, got %d", fake.streamCalls)
	}
	if len(window) != 2 {
		t.Errorf("window = %d messages, want 2", len(window))
	}
	if st.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", st.Cursor())
	}
}

func TestRun_AdvancesCursorWithSummary(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{text: "- user discussed turns 0 to 3"}}}
	c, st := newTestConsolidator(t, fake, testContextConfig())

	filtered := conversation(6)
	window := c.Run(context.Background(), filtered, 0)

	if fake.streamCalls != 1 {
		t.Fatalf("expected 1 LLM call, got %d", fake.streamCalls)
	}
	if st.Cursor() != 4 {
		t.Errorf("cursor = %d, want 4 (6 messages - keepRecent 2)", st.Cursor())
	}
	if got := st.AutoSummary(); got != "- user discussed turns 0 to 3" {
		t.Errorf("summary = %q", got)
	}
	if len(window) != 2 || window[0].Content != "turn 4" {
		t.Errorf("window should be the kept tail, got %+v", window)
	}
}

func TestRun_LLMFailureLeavesStateUntouched(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{err: errors.New("model down")}}}
	c, st := newTestConsolidator(t, fake, testContextConfig())

	filtered := conversation(6)
	window := c.Run(context.Background(), filtered, 0)

	if st.Cursor() != 0 {
		t.Errorf("cursor moved to %d after failed consolidation", st.Cursor())
	}
	if st.AutoSummary() != "" {
		t.Errorf("summary written despite failure: %q", st.AutoSummary())
	}
	// Degrades to the full unconsolidated window, losing nothing.
	if len(window) != 6 {
		t.Errorf("window = %d messages, want all 6", len(window))
	}
}

func TestRun_Idempotent(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{text: "summary"}}}
	c, st := newTestConsolidator(t, fake, testContextConfig())

	filtered := conversation(6)
	c.Run(context.Background(), filtered, 0)
	first := st.Cursor()

	// Re-running with no new messages must not call the LLM again.
	window := c.Run(context.Background(), filtered, first)
	if fake.streamCalls != 1 {
		t.Errorf("expected 1 total LLM call, got %d", fake.streamCalls)
	}
	if st.Cursor() != first {
		t.Errorf("cursor changed from %d to %d on idempotent re-run", first, st.Cursor())
	}
	if len(window) != len(filtered)-first {
		t.Errorf("window = %d messages, want %d", len(window), len(filtered)-first)
	}
}

func TestRun_AppendsToPreviousSummary(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{text: "new facts"}}}
	c, st := newTestConsolidator(t, fake, testContextConfig())

	if err := st.SaveConsolidated("earlier facts about the user", 0); err != nil {
		t.Fatal(err)
	}
	c.Run(context.Background(), conversation(6), 0)

	if len(fake.streamPrompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(fake.streamPrompts))
	}
	if !strings.Contains(fake.streamPrompts[0], "turn 0") {
		t.Error("prompt should carry the transcript of folded messages")
	}
	if got := st.AutoSummary(); got != "earlier facts about the user\n\nnew facts" {
		t.Errorf("summary = %q, want blank-line appended text", got)
	}
}

func TestRun_ClampsStaleCursor(t *testing.T) {
	fake := &fakeProvider{}
	c, _ := newTestConsolidator(t, fake, testContextConfig())

	window := c.Run(context.Background(), conversation(3), 10)
	if len(window) != 0 {
		t.Errorf("window = %d messages, want 0 for clamped cursor", len(window))
	}
	if fake.streamCalls != 0 {
		t.Errorf("expected no LLM calls, got %d", fake.streamCalls)
	}
}

func TestRunAll_ConsolidatesEverything(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{text: "full summary"}}}
	c, st := newTestConsolidator(t, fake, testContextConfig())

	filtered := conversation(4)
	window := c.RunAll(context.Background(), filtered, 0)

	if len(window) != 0 {
		t.Errorf("window = %d messages, want 0", len(window))
	}
	if st.Cursor() != 4 {
		t.Errorf("cursor = %d, want 4", st.Cursor())
	}
	if st.AutoSummary() != "full summary" {
		t.Errorf("summary = %q", st.AutoSummary())
	}
}

func TestMaybeCompress_OverLimit(t *testing.T) {
	cfg := testContextConfig()
	cfg.MetaWordLimit = 5
	cfg.MetaTargetSentences = 2
	fake := &fakeProvider{streamScript: []streamStep{{text: "short version"}}}
	c, _ := newTestConsolidator(t, fake, cfg)

	got := c.maybeCompress(context.Background(), "one two three four five six seven eight")
	if got != "short version" {
		t.Errorf("got %q, want compressed text", got)
	}
	if fake.streamCalls != 1 {
		t.Errorf("expected exactly 1 LLM call, got %d", fake.streamCalls)
	}
}

func TestMaybeCompress_UnderLimit_NoCall(t *testing.T) {
	cfg := testContextConfig()
	cfg.MetaWordLimit = 100
	fake := &fakeProvider{}
	c, _ := newTestConsolidator(t, fake, cfg)

	in := "a compact summary"
	if got := c.maybeCompress(context.Background(), in); got != in {
		t.Errorf("got %q, want input unchanged", got)
	}
	if fake.streamCalls != 0 {
		t.Errorf("expected no LLM calls, got %d", fake.streamCalls)
	}
}

func TestMaybeCompress_FailureReturnsOriginal(t *testing.T) {
	cfg := testContextConfig()
	cfg.MetaWordLimit = 3
	fake := &fakeProvider{streamScript: []streamStep{{err: errors.New("model down")}}}
	c, _ := newTestConsolidator(t, fake, cfg)

	in := "one two three four five"
	if got := c.maybeCompress(context.Background(), in); got != in {
		t.Errorf("failed compression must return the original byte for byte, got %q", got)
	}
}
