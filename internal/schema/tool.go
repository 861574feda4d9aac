package schema

import (
	"context"
	"encoding/json"
)

// Tool is one callable capability exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema for the tool's arguments.
	Parameters() json.RawMessage
	// Execute runs the tool and returns a result string for the LLM.
	Execute(ctx context.Context, args map[string]any) (string, error)
}
