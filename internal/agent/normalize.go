package agent

import (
	"encoding/json"
	"log/slog"

	"tasktalk/internal/conversation"
	"tasktalk/internal/llm"
)

// Turn history is persisted in a provider-neutral shape (decoded
// argument maps) but the completion API wants its native wire shape
// (argument JSON strings). The conversions here are total: a malformed
// entry is dropped with a warning, never an error, so one bad row can
// never make a conversation unreadable.

// WireInvocations converts stored invocations to wire-shape tool
// calls. Entries missing an invocation id or tool name are dropped.
// Argument maps serialize to canonical JSON (sorted keys); a nil map
// becomes "{}".
func WireInvocations(invs []conversation.ToolInvocation, logger *slog.Logger) []llm.ToolCall {
	var calls []llm.ToolCall
	for _, inv := range invs {
		if inv.ToolCallID == "" || inv.ToolName == "" {
			logger.Warn("dropping malformed stored invocation",
				"tool_call_id", inv.ToolCallID, "tool_name", inv.ToolName)
			continue
		}
		args := "{}"
		if inv.Arguments != nil {
			b, err := json.Marshal(inv.Arguments)
			if err != nil {
				logger.Warn("dropping invocation with unserializable arguments",
					"tool_call_id", inv.ToolCallID, "tool_name", inv.ToolName, "error", err)
				continue
			}
			args = string(b)
		}
		calls = append(calls, llm.ToolCall{
			ID:       inv.ToolCallID,
			Type:     "function",
			Function: llm.FunctionCall{Name: inv.ToolName, Arguments: args},
		})
	}
	return calls
}

// StorageInvocations converts wire-shape tool calls to the stored
// shape, decoding each argument string. A call whose arguments are not
// valid JSON is kept with an empty argument map so the record of the
// attempt survives; its execution will have failed validation anyway.
func StorageInvocations(calls []llm.ToolCall, logger *slog.Logger) []conversation.ToolInvocation {
	var invs []conversation.ToolInvocation
	for _, tc := range calls {
		if tc.ID == "" || tc.Function.Name == "" {
			logger.Warn("dropping malformed wire tool call", "id", tc.ID, "name", tc.Function.Name)
			continue
		}
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				logger.Warn("tool call arguments are not valid JSON",
					"tool_call_id", tc.ID, "tool_name", tc.Function.Name, "error", err)
				args = map[string]any{}
			}
		}
		invs = append(invs, conversation.ToolInvocation{
			ToolCallID: tc.ID,
			ToolName:   tc.Function.Name,
			Arguments:  args,
		})
	}
	return invs
}

// wireHistory converts persisted turns into the outbound message list,
// skipping turns that cannot be expressed on the wire.
func wireHistory(turns []conversation.Turn, logger *slog.Logger) []llm.Message {
	var messages []llm.Message
	for _, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			messages = append(messages, llm.Message{Role: "user", Content: turn.Content})
		case conversation.RoleAssistant:
			messages = append(messages, llm.Message{
				Role:      "assistant",
				Content:   turn.Content,
				ToolCalls: WireInvocations(turn.ToolCalls, logger),
			})
		case conversation.RoleTool:
			if turn.ToolCallID == "" {
				logger.Warn("dropping tool turn without invocation id", "turn_id", turn.ID)
				continue
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    turn.Content,
				ToolCallID: turn.ToolCallID,
			})
		default:
			logger.Warn("dropping turn with unknown role", "turn_id", turn.ID, "role", turn.Role)
		}
	}
	return messages
}
