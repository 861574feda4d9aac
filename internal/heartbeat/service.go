// Package heartbeat drives unattended agent turns from a standing task list
// (HEARTBEAT.md) in the workspace.
package heartbeat

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunFunc executes one unattended agent turn and returns the reply text.
type RunFunc func(ctx context.Context, prompt string) (string, error)

const defaultInterval = 30 * time.Minute

const promptHeader = "This is a scheduled background check, not a user message. " +
	"Review your standing tasks below and act on anything that is due. " +
	"Use the message tool if someone needs to be notified; otherwise reply briefly."

// Service wakes on a fixed interval, reads HEARTBEAT.md, and hands actionable
// content to the agent as a shaped prompt. A missing file, or one holding only
// headings, comments, and unchecked boxes, is skipped without an LLM call.
type Service struct {
	workspace string
	run       RunFunc
	interval  time.Duration
}

// NewService builds a heartbeat Service. interval defaults to 30 minutes
// when zero.
func NewService(workspace string, run RunFunc, interval time.Duration) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{workspace: workspace, run: run, interval: interval}
}

// Start runs the heartbeat loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("heartbeat: started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			slog.Info("heartbeat: stopped")
			return ctx.Err()
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	data, err := os.ReadFile(filepath.Join(s.workspace, "HEARTBEAT.md"))
	if err != nil {
		// No file means no standing tasks.
		return
	}
	tasks := string(data)
	if !hasActionableWork(tasks) {
		return
	}

	slog.Info("heartbeat: running agent over standing tasks")
	reply, err := s.run(ctx, buildPrompt(tasks))
	if err != nil {
		slog.Error("heartbeat: agent turn failed", "error", err)
		return
	}
	slog.Debug("heartbeat: agent turn finished", "reply_words", len(strings.Fields(reply)))
}

// buildPrompt wraps the task list in instructions for an unattended turn.
func buildPrompt(tasks string) string {
	return promptHeader + "\n\n" + strings.TrimSpace(tasks)
}

// hasActionableWork reports whether the task list holds at least one line
// beyond blanks, comments, headings, and unchecked boxes. Unchecked boxes are
// dormant by convention; a task is armed by checking it or writing plain text.
func hasActionableWork(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "<!--"):
		case strings.HasPrefix(trimmed, "- [ ]"):
		case strings.HasPrefix(trimmed, "#"):
		default:
			return true
		}
	}
	return false
}
