// Package tools implements the built-in capabilities exposed to the LLM and
// the registry that serves them to the agent loop.
package tools

import (
	"github.com/pelicandev/pelican/internal/schema"
)

// ToolList holds a named set of tools and exposes them for LLM calls.
type ToolList struct {
	tools map[string]schema.Tool
	order []string
}

// NewToolList builds a list from the given tools, keeping registration order.
func NewToolList(ts ...schema.Tool) *ToolList {
	list := &ToolList{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		list.Add(t)
	}
	return list
}

// Get returns the tool with the given name, or nil if not found.
func (l *ToolList) Get(name string) schema.Tool {
	return l.tools[name]
}

// Add registers a new tool, replacing any existing tool with the same name.
func (l *ToolList) Add(t schema.Tool) schema.Tool {
	if _, exists := l.tools[t.Name()]; !exists {
		l.order = append(l.order, t.Name())
	}
	l.tools[t.Name()] = t
	return t
}

// Names returns the registered tool names in registration order.
func (l *ToolList) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Definitions returns provider-neutral definitions for every tool, in
// registration order so prompts stay stable across runs.
func (l *ToolList) Definitions() []schema.ToolDefinition {
	defs := make([]schema.ToolDefinition, 0, len(l.order))
	for _, name := range l.order {
		t := l.tools[name]
		defs = append(defs, schema.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
