package schema

// Messages is an ordered LLM conversation under construction.
type Messages struct {
	Items []Message
}

// NewMessages returns an empty conversation.
func NewMessages() *Messages {
	return &Messages{Items: make([]Message, 0, 16)}
}

// AddSystem appends a system message and returns the conversation.
func (m *Messages) AddSystem(content string) *Messages {
	m.Items = append(m.Items, NewSystemMessage(content))
	return m
}

// AddUser appends a user message.
func (m *Messages) AddUser(content string) *Messages {
	m.Items = append(m.Items, Message{Role: RoleUser, Content: content})
	return m
}

// AddAssistant appends an assistant turn, including any tool calls it made.
func (m *Messages) AddAssistant(content string, toolCalls []ToolCall) *Messages {
	m.Items = append(m.Items, Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls})
	return m
}

// AddToolResult appends the result of one executed tool call.
func (m *Messages) AddToolResult(callID, name, result string) *Messages {
	m.Items = append(m.Items, Message{
		Role:       RoleTool,
		Content:    result,
		ToolCallID: callID,
		ToolName:   name,
	})
	return m
}

// Append appends an already-built message.
func (m *Messages) Append(msg Message) *Messages {
	m.Items = append(m.Items, msg)
	return m
}

// Len returns the number of messages.
func (m *Messages) Len() int { return len(m.Items) }

// Clone returns a shallow copy with an independent backing slice.
func (m *Messages) Clone() *Messages {
	out := make([]Message, len(m.Items))
	copy(out, m.Items)
	return &Messages{Items: out}
}
