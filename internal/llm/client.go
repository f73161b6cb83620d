// Package llm provides the completion client for OpenAI-compatible
// chat APIs.
package llm

import (
	"context"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is one chat message in the completion API's wire format.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-role messages
}

// ToolCall is one tool invocation requested by the model. Arguments is
// a JSON-encoded string, not an object; decoding it is the caller's
// problem because the model may emit malformed JSON.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its raw argument string.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Completion is the provider-neutral result of one completion call.
type Completion struct {
	Message      Message
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// Completer is the interface the orchestrator depends on. The HTTP
// client implements it; tests substitute scripted fakes.
type Completer interface {
	Complete(ctx context.Context, messages []Message, tools []map[string]any) (*Completion, error)
}
