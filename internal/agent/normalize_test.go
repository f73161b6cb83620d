package agent

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"tasktalk/internal/conversation"
	"tasktalk/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireInvocations(t *testing.T) {
	invs := []conversation.ToolInvocation{
		{
			ToolCallID: "call_1",
			ToolName:   "add_task",
			Arguments:  map[string]any{"title": "buy milk", "description": "2%"},
		},
		{
			ToolCallID: "call_2",
			ToolName:   "list_tasks",
			Arguments:  nil,
		},
	}

	calls := WireInvocations(invs, discardLogger())
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Type != "function" || calls[0].Function.Name != "add_task" {
		t.Errorf("unexpected first call: %+v", calls[0])
	}
	// json.Marshal sorts map keys, so the encoding is deterministic.
	if got, want := calls[0].Function.Arguments, `{"description":"2%","title":"buy milk"}`; got != want {
		t.Errorf("arguments = %q, want %q", got, want)
	}
	if got, want := calls[1].Function.Arguments, "{}"; got != want {
		t.Errorf("nil arguments encoded as %q, want %q", got, want)
	}
}

func TestWireInvocationsSkipsIncomplete(t *testing.T) {
	invs := []conversation.ToolInvocation{
		{ToolCallID: "", ToolName: "add_task", Arguments: map[string]any{}},
		{ToolCallID: "call_2", ToolName: "", Arguments: map[string]any{}},
		{ToolCallID: "call_3", ToolName: "delete_task", Arguments: map[string]any{"task_id": float64(4)}},
	}

	calls := WireInvocations(invs, discardLogger())
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].ID != "call_3" {
		t.Errorf("kept call %q, want call_3", calls[0].ID)
	}
}

func TestStorageInvocations(t *testing.T) {
	calls := []llm.ToolCall{
		{
			ID:   "call_1",
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "update_task",
				Arguments: `{"task_id": 7, "title": "new title"}`,
			},
		},
	}

	invs := StorageInvocations(calls, discardLogger())
	if len(invs) != 1 {
		t.Fatalf("got %d invocations, want 1", len(invs))
	}
	inv := invs[0]
	if inv.ToolCallID != "call_1" || inv.ToolName != "update_task" {
		t.Errorf("unexpected invocation: %+v", inv)
	}
	want := map[string]any{"task_id": float64(7), "title": "new title"}
	if !reflect.DeepEqual(inv.Arguments, want) {
		t.Errorf("arguments = %v, want %v", inv.Arguments, want)
	}
}

func TestStorageInvocationsMalformedArguments(t *testing.T) {
	calls := []llm.ToolCall{
		{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "add_task", Arguments: `{"title": `},
		},
	}

	// A call with an id and a name is kept even when its argument
	// payload is garbage; dropping it would orphan the tool turn that
	// answers it.
	invs := StorageInvocations(calls, discardLogger())
	if len(invs) != 1 {
		t.Fatalf("got %d invocations, want 1", len(invs))
	}
	if len(invs[0].Arguments) != 0 {
		t.Errorf("arguments = %v, want empty", invs[0].Arguments)
	}
}

func TestInvocationRoundTrip(t *testing.T) {
	original := []conversation.ToolInvocation{
		{
			ToolCallID: "call_9",
			ToolName:   "complete_task",
			Arguments:  map[string]any{"task_id": float64(3), "completed": true},
		},
	}

	back := StorageInvocations(WireInvocations(original, discardLogger()), discardLogger())
	if !reflect.DeepEqual(back, original) {
		t.Errorf("round trip changed invocations:\n got %+v\nwant %+v", back, original)
	}
}

func TestWireHistory(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "add a task to buy milk"},
		{
			Role:    conversation.RoleAssistant,
			Content: "",
			ToolCalls: []conversation.ToolInvocation{
				{ToolCallID: "call_1", ToolName: "add_task", Arguments: map[string]any{"title": "buy milk"}},
			},
		},
		{
			Role:       conversation.RoleTool,
			Content:    `{"success":true,"message":"Task 'buy milk' created successfully"}`,
			ToolCallID: "call_1",
			ToolName:   "add_task",
		},
		{Role: conversation.RoleAssistant, Content: "Added \"buy milk\" to your list!"},
	}

	msgs := wireHistory(turns, discardLogger())
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "add a task to buy milk" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || len(msgs[1].ToolCalls) != 1 {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
	if msgs[1].ToolCalls[0].ID != "call_1" || msgs[1].ToolCalls[0].Function.Name != "add_task" {
		t.Errorf("unexpected tool call: %+v", msgs[1].ToolCalls[0])
	}
	if msgs[2].Role != "tool" || msgs[2].ToolCallID != "call_1" {
		t.Errorf("unexpected tool message: %+v", msgs[2])
	}
	if msgs[3].Role != "assistant" || msgs[3].Content != "Added \"buy milk\" to your list!" {
		t.Errorf("unexpected final message: %+v", msgs[3])
	}
}

func TestWireHistorySkipsUnusable(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleTool, Content: `{"success":true}`, ToolCallID: ""},
		{Role: "narrator", Content: "once upon a time"},
		{Role: conversation.RoleUser, Content: "hello"},
	}

	msgs := wireHistory(turns, discardLogger())
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
}
