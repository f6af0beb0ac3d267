package ai

import (
	"context"
	"encoding/json"
)

// Message roles accepted in a turn request.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in the conversation history sent to the
// model. An assistant message that requested tools carries them in
// ToolCalls; each tool result follows as a RoleTool message whose
// ToolCallID matches the request.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolSchema describes a callable tool exposed to the model. Parameters
// is a JSON Schema document.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a tool invocation requested by the model. Arguments is
// the raw JSON argument object exactly as the model produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Usage reports token consumption for a single completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// TurnRequest carries everything the model needs to produce the next
// assistant turn.
type TurnRequest struct {
	Messages    []Message
	Tools       []ToolSchema
	MaxTokens   int
	Temperature float64
}

// TurnResult is the model's response to a turn. Text and ToolCalls may
// both be set; ToolCalls is empty when the model answered directly.
type TurnResult struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Responder produces assistant turns, optionally requesting tool
// invocations along the way.
type Responder interface {
	Complete(ctx context.Context, req *TurnRequest) (*TurnResult, error)
}
