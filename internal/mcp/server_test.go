package mcp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"tasktalk/internal/storage"
	"tasktalk/internal/tasks"
	"tasktalk/internal/tools"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := tools.NewRegistry(tasks.NewStore(db, nil), logger)
	return New(registry, "user-1", "secret-token", logger)
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHandlerRejectsWrongToken(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestInvokeAddAndList(t *testing.T) {
	s := newTestServer(t)
	ctx := t.Context()

	add := s.invoke(tools.OpAddTask)
	res, err := add(ctx, callRequest("add_task", map[string]any{"title": "buy milk"}))
	if err != nil {
		t.Fatalf("add_task: %v", err)
	}
	if res.IsError {
		t.Fatalf("add_task returned error result: %+v", res)
	}

	list := s.invoke(tools.OpListTasks)
	res, err = list(ctx, callRequest("list_tasks", nil))
	if err != nil {
		t.Fatalf("list_tasks: %v", err)
	}
	text := resultText(t, res)
	var decoded struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Total   int    `json:"total"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("decode result: %v (%s)", err, text)
	}
	if !decoded.Success || decoded.Total != 1 {
		t.Errorf("result = %+v", decoded)
	}
}

func TestInvokeValidationError(t *testing.T) {
	s := newTestServer(t)

	add := s.invoke(tools.OpAddTask)
	res, err := add(t.Context(), callRequest("add_task", map[string]any{}))
	if err != nil {
		t.Fatalf("add_task: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for a missing title")
	}
	if text := resultText(t, res); !strings.Contains(text, "VALIDATION_ERROR") {
		t.Errorf("result = %q, want a validation error", text)
	}
}

func TestInvokeNotFound(t *testing.T) {
	s := newTestServer(t)

	del := s.invoke(tools.OpDeleteTask)
	res, err := del(t.Context(), callRequest("delete_task", map[string]any{"task_id": float64(42)}))
	if err != nil {
		t.Fatalf("delete_task: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for a missing task")
	}
	if text := resultText(t, res); !strings.Contains(text, "TASK_NOT_FOUND") {
		t.Errorf("result = %q, want TASK_NOT_FOUND", text)
	}
}

func TestServerToolsCoverRegistry(t *testing.T) {
	s := newTestServer(t)

	defined := map[string]bool{}
	for _, st := range s.serverTools() {
		defined[st.Tool.Name] = true
	}
	for _, name := range tools.Names() {
		if !defined[name] {
			t.Errorf("tool %s is not exposed over MCP", name)
		}
	}
	if len(defined) != len(tools.Names()) {
		t.Errorf("exposed %d tools, registry has %d", len(defined), len(tools.Names()))
	}
}

func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}
