package tools

import (
	"context"
	"encoding/json"
	"log/slog"
)

// MemoryWriter is the slice of the store the save_memory tool needs.
type MemoryWriter interface {
	CuratedMemory() string
	WriteCuratedMemory(text string) error
}

// SaveMemoryTool lets the agent persist durable facts to the curated memory
// document before older conversation turns get summarized away.
type SaveMemoryTool struct {
	store MemoryWriter
}

// NewSaveMemoryTool creates a SaveMemoryTool backed by the given store.
func NewSaveMemoryTool(store MemoryWriter) *SaveMemoryTool {
	return &SaveMemoryTool{store: store}
}

func (t *SaveMemoryTool) Name() string { return "save_memory" }
func (t *SaveMemoryTool) Description() string {
	return "Update long-term memory. Pass the full updated memory document; facts not included are forgotten."
}

func (t *SaveMemoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"memory_update": {
				"type": "string",
				"description": "Full updated long-term memory as markdown. Include all existing facts plus new ones. Return unchanged if nothing new."
			}
		},
		"required": ["memory_update"]
	}`)
}

// Execute writes the updated memory document. A write identical to the
// current document is skipped. Errors are logged but reported as a tool
// result rather than propagated; a failed memory write must not abort a turn.
func (t *SaveMemoryTool) Execute(_ context.Context, args map[string]any) (string, error) {
	update, _ := args["memory_update"].(string)
	if update == "" {
		return "Error: memory_update is required", nil
	}
	if update == t.store.CuratedMemory() {
		return "memory unchanged", nil
	}
	if err := t.store.WriteCuratedMemory(update); err != nil {
		slog.Warn("failed to write curated memory", "error", err)
		return "Error: memory write failed", nil
	}
	return "memory saved", nil
}
