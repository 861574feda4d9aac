// Package schema contains the core types and contracts shared across pelican
// packages. Concrete implementations live in their respective packages; this
// package is the single canonical source of truth for the data model.
package schema

import "time"

// Role identifies the author kind of a message. It is a closed set: every
// consumer that filters or renders messages switches over these constants.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleTool       Role = "tool"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// IsAudit reports whether the role exists only for search and audit.
// Audit entries are persisted in the message log but never enter the LLM
// context and never count toward consolidation arithmetic.
func (r Role) IsAudit() bool {
	return r == RoleToolCall || r == RoleToolResult
}

// ToolCall represents one function call requested by an assistant message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one conversational unit.
//
// Channel and SenderID identify the origin of user-facing messages and are
// empty for purely internal entries (system prompts, tool results).
// ToolCalls / ToolCallID / ToolName exist only on in-flight LLM conversation
// messages and are never persisted.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Channel   string
	SenderID  string

	ToolCalls  []ToolCall // assistant messages that invoke tools
	ToolCallID string     // tool-result messages only
	ToolName   string     // tool-result messages only
}

// NewSystemMessage returns a system message with no origin metadata.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// NewUserMessage returns a user message tagged with its origin.
func NewUserMessage(channel, senderID, content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Channel:   channel,
		SenderID:  senderID,
	}
}

// NewAssistantMessage returns an assistant message tagged with its origin.
func NewAssistantMessage(channel, content string) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Channel:   channel,
	}
}
