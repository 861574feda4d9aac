package heartbeat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHasActionableWork(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty file", "", false},
		{"only heading", "# HEARTBEAT\n", false},
		{"only comment", "<!-- fill in tasks -->\n", false},
		{"only unchecked boxes", "# HEARTBEAT\n- [ ] someday task\n", false},
		{"checked box", "# HEARTBEAT\n- [x] review PR\n", true},
		{"plain text task", "check the calendar every morning\n", true},
		{"mixed", "# HEARTBEAT\n<!-- note -->\n- [ ] later\nremind me about standup\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasActionableWork(tc.content); got != tc.want {
				t.Errorf("hasActionableWork(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func writeHeartbeat(t *testing.T, workspace, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(workspace, "HEARTBEAT.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTick_RunsAgentWithShapedPrompt(t *testing.T) {
	ws := t.TempDir()
	writeHeartbeat(t, ws, "# HEARTBEAT\ncheck the calendar\n")

	var prompts []string
	svc := NewService(ws, func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "done", nil
	}, 0)

	svc.tick(context.Background())
	if len(prompts) != 1 {
		t.Fatalf("agent ran %d times, want 1", len(prompts))
	}
	if !strings.Contains(prompts[0], "scheduled background check") {
		t.Errorf("prompt missing instructions: %q", prompts[0])
	}
	if !strings.Contains(prompts[0], "check the calendar") {
		t.Errorf("prompt missing task content: %q", prompts[0])
	}
}

func TestTick_SkipsWithoutActionableWork(t *testing.T) {
	ws := t.TempDir()
	calls := 0
	svc := NewService(ws, func(context.Context, string) (string, error) {
		calls++
		return "", nil
	}, 0)

	// No file at all.
	svc.tick(context.Background())

	// Only dormant content.
	writeHeartbeat(t, ws, "# HEARTBEAT\n- [ ] someday\n")
	svc.tick(context.Background())

	if calls != 0 {
		t.Errorf("agent ran %d times, want 0", calls)
	}
}

func TestTick_SurvivesAgentFailure(t *testing.T) {
	ws := t.TempDir()
	writeHeartbeat(t, ws, "ping me\n")
	svc := NewService(ws, func(context.Context, string) (string, error) {
		return "", errors.New("model offline")
	}, 0)

	svc.tick(context.Background())
	// A failed turn is logged and the next tick tries again.
	if svc.interval != defaultInterval {
		t.Errorf("interval = %v, want default", svc.interval)
	}
}
