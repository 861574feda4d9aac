package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/store"
)

func newTestAssembler(t *testing.T, fake *fakeProvider, cfg config.ContextConfig, owners []config.OwnerAlias) (*Assembler, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	cons := NewConsolidator(st, fake, cfg)
	return NewAssembler(st, cons, cfg, owners), st
}

func seedConversation(t *testing.T, st *store.Store, n int) {
	t.Helper()
	for _, m := range conversation(n) {
		m.Channel = "cli"
		m.SenderID = "user"
		if err := st.Append(m); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAssemble_StructureAndOrder(t *testing.T) {
	a, st := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	seedConversation(t, st, 2)
	if err := st.WriteCuratedMemory("- likes tea"); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveConsolidated("earlier the user set up the project", 0); err != nil {
		t.Fatal(err)
	}

	userMsg := schema.NewUserMessage("cli", "user", "what next?")
	conv := a.Assemble(context.Background(), userMsg, "You are a test assistant.")

	if conv.Items[0].Role != schema.RoleSystem {
		t.Fatalf("first message role = %q, want system", conv.Items[0].Role)
	}
	sys := conv.Items[0].Content
	if !strings.HasPrefix(sys, "You are a test assistant.") {
		t.Error("system prompt should start with the base prompt")
	}
	if !strings.Contains(sys, "## Your Memory\n\n- likes tea") {
		t.Error("system prompt missing memory section")
	}
	if !strings.Contains(sys, "## Conversation Summary\n\nearlier the user set up the project") {
		t.Error("system prompt missing summary section")
	}

	last := conv.Items[conv.Len()-1]
	if last.Role != schema.RoleUser || last.Content != "[cli/user] what next?" {
		t.Errorf("last message should be the labeled incoming user message, got %+v", last)
	}
	// system + 2 history + incoming
	if conv.Len() != 4 {
		t.Errorf("conversation length = %d, want 4", conv.Len())
	}
}

func TestAssemble_FreshState(t *testing.T) {
	a, _ := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hello"), "base")
	if conv.Len() != 2 {
		t.Fatalf("conversation length = %d, want system + incoming only", conv.Len())
	}
	sys := conv.Items[0].Content
	if strings.Contains(sys, "## Your Memory") || strings.Contains(sys, "## Conversation Summary") {
		t.Errorf("empty memory and summary should produce no sections, got %q", sys)
	}
	if conv.Items[1].Role != schema.RoleUser {
		t.Errorf("second message role = %q, want user", conv.Items[1].Role)
	}
}

func TestAssemble_ServesFullWindowWhenConsolidationFails(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{err: errors.New("model offline")}}}
	a, st := newTestAssembler(t, fake, testContextConfig(), nil)
	seedConversation(t, st, 6)

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")

	if fake.streamCalls != 1 {
		t.Fatalf("expected one consolidation attempt, got %d", fake.streamCalls)
	}
	if st.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0 after failed consolidation", st.Cursor())
	}
	if st.AutoSummary() != "" {
		t.Errorf("summary should stay empty, got %q", st.AutoSummary())
	}
	// system + all 6 unconsolidated messages + incoming
	if conv.Len() != 8 {
		t.Errorf("conversation length = %d, want 8", conv.Len())
	}
}

func TestAssemble_TriggersConsolidationAtThreshold(t *testing.T) {
	fake := &fakeProvider{streamScript: []streamStep{{text: "rolling summary"}}}
	a, st := newTestAssembler(t, fake, testContextConfig(), nil)
	seedConversation(t, st, 6) // threshold 5, keepRecent 2: 6 > 5 triggers

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")

	if fake.streamCalls != 1 {
		t.Fatalf("expected consolidation LLM call, got %d", fake.streamCalls)
	}
	if st.Cursor() != 4 {
		t.Errorf("cursor = %d, want 4 (6 - keepRecent 2)", st.Cursor())
	}
	if !strings.Contains(conv.Items[0].Content, "rolling summary") {
		t.Error("fresh summary should appear in the system prompt")
	}
	// system + 2 kept history + incoming
	if conv.Len() != 4 {
		t.Errorf("conversation length = %d, want 4", conv.Len())
	}
}

func TestAssemble_NoConsolidationBelowThreshold(t *testing.T) {
	fake := &fakeProvider{}
	a, st := newTestAssembler(t, fake, testContextConfig(), nil)
	seedConversation(t, st, 2)

	a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	if fake.streamCalls != 0 {
		t.Errorf("expected no LLM calls below threshold, got %d", fake.streamCalls)
	}
	if st.Cursor() != 0 {
		t.Errorf("cursor = %d, want 0", st.Cursor())
	}
}

func TestAssemble_PreConsolidationNotice(t *testing.T) {
	a, st := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	seedConversation(t, st, 3) // threshold 5: 3 >= 5-2 fires the notice

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	if !strings.Contains(conv.Items[0].Content, "save_memory") {
		t.Error("system prompt should carry the pre-consolidation notice")
	}

	// Far below the notice point nothing fires.
	a2, st2 := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	seedConversation(t, st2, 1)
	conv2 := a2.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	if strings.Contains(conv2.Items[0].Content, "save_memory") {
		t.Error("notice should not fire far below the threshold")
	}
}

func TestAssemble_ExcludesAuditEntries(t *testing.T) {
	a, st := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	seedConversation(t, st, 2)
	a.PersistToolEvent("cli", `web_fetch({"url":"https://example.com"})`, "fetched")

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	for _, m := range conv.Items {
		if strings.Contains(m.Content, "web_fetch({") || m.Role.IsAudit() {
			t.Errorf("audit entry leaked into context: %+v", m)
		}
	}
	// Audit entries also stay out of consolidation arithmetic: 2 messages,
	// not 4, count against the threshold.
	if conv.Len() != 4 {
		t.Errorf("conversation length = %d, want 4", conv.Len())
	}
}

func TestAssemble_OwnerLabeling(t *testing.T) {
	owners := []config.OwnerAlias{
		{Name: "42", Label: "boss", Channel: "telegram"},
		{Name: "42", Label: "generic"},
	}
	a, _ := newTestAssembler(t, &fakeProvider{}, testContextConfig(), owners)

	conv := a.Assemble(context.Background(), schema.NewUserMessage("telegram", "42|alice", "ship it"), "base")
	last := conv.Items[conv.Len()-1]
	if last.Content != "[telegram/boss] ship it" {
		t.Errorf("channel-scoped alias should win, got %q", last.Content)
	}

	conv = a.Assemble(context.Background(), schema.NewUserMessage("slack", "alice|42", "ship it"), "base")
	last = conv.Items[conv.Len()-1]
	if last.Content != "[slack/generic] ship it" {
		t.Errorf("compound sender id should match either part, got %q", last.Content)
	}

	conv = a.Assemble(context.Background(), schema.NewUserMessage("slack", "stranger", "hello"), "base")
	last = conv.Items[conv.Len()-1]
	if last.Content != "[slack/stranger] hello" {
		t.Errorf("unknown senders fall back to their raw id, got %q", last.Content)
	}
}

func TestAssemble_LabelsHistoryFromUnconfiguredSenders(t *testing.T) {
	a, st := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	if err := st.Append(schema.NewUserMessage("slack", "alice", "hello there")); err != nil {
		t.Fatal(err)
	}

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	if conv.Items[1].Content != "[slack/alice] hello there" {
		t.Errorf("history message should carry its origin label, got %q", conv.Items[1].Content)
	}
}

func TestAssemble_HistoryBudgetKeepsFloor(t *testing.T) {
	cfg := testContextConfig()
	cfg.HistoryMaxWords = 2
	cfg.HistoryMinRecent = 1
	a, st := newTestAssembler(t, &fakeProvider{}, cfg, nil)
	seedConversation(t, st, 3)

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	// system + 1 floored history message + incoming
	if conv.Len() != 3 {
		t.Errorf("conversation length = %d, want 3 after budget trim", conv.Len())
	}
	if !strings.HasSuffix(conv.Items[1].Content, "turn 2") {
		t.Errorf("floor should keep the newest history message, got %q", conv.Items[1].Content)
	}
}

func TestAssemble_TotalBudgetTrimsHistoryFirst(t *testing.T) {
	cfg := testContextConfig()
	cfg.TotalMaxWords = 6
	cfg.SummaryMaxWords = 100
	cfg.MemoryMaxWords = 100
	a, st := newTestAssembler(t, &fakeProvider{}, cfg, nil)
	seedConversation(t, st, 4) // 8 history words
	if err := st.SaveConsolidated("summary words here", 0); err != nil {
		t.Fatal(err)
	}
	if err := st.WriteCuratedMemory("memory words"); err != nil {
		t.Fatal(err)
	}

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	sys := conv.Items[0].Content
	// History absorbs the overflow first; memory, trimmed last, survives.
	if !strings.Contains(sys, "memory words") {
		t.Error("memory should be trimmed last")
	}
	if conv.Len() != 3 {
		t.Errorf("history should shrink to the floor, conversation length = %d", conv.Len())
	}
}

func TestAssemble_DedupeSummaryAgainstMemory(t *testing.T) {
	cfg := testContextConfig()
	cfg.DedupeSummary = true
	a, st := newTestAssembler(t, &fakeProvider{}, cfg, nil)
	if err := st.WriteCuratedMemory("- user likes tea\n- user lives in Lisbon"); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveConsolidated("- User Likes Tea\n- project is due friday", 0); err != nil {
		t.Fatal(err)
	}

	conv := a.Assemble(context.Background(), schema.NewUserMessage("cli", "user", "hi"), "base")
	sys := conv.Items[0].Content
	if strings.Contains(sys, "User Likes Tea") {
		t.Error("summary line duplicating memory should be dropped")
	}
	if !strings.Contains(sys, "project is due friday") {
		t.Error("unique summary line should survive dedupe")
	}
}

func TestPersist_AppendsExchange(t *testing.T) {
	a, st := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	a.Persist(
		schema.NewUserMessage("cli", "user", "question"),
		schema.NewAssistantMessage("cli", "answer"),
	)

	history, err := st.LoadHistory(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Role != schema.RoleUser || history[1].Role != schema.RoleAssistant {
		t.Errorf("exchange order wrong: %+v", history)
	}
}

func TestPersistToolEvent_AppendsAuditPair(t *testing.T) {
	a, st := newTestAssembler(t, &fakeProvider{}, testContextConfig(), nil)
	a.PersistToolEvent("telegram", "schedule({...})", "Scheduled job abc")

	history, err := st.LoadHistory(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Role != schema.RoleToolCall || history[1].Role != schema.RoleToolResult {
		t.Errorf("audit roles wrong: %q, %q", history[0].Role, history[1].Role)
	}
}
