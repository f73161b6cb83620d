package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"tasktalk/internal/storage"
	"tasktalk/internal/tasks"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(tasks.NewStore(db, nil), logger)
}

func TestAddThenListContainsTask(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	res := r.Invoke(ctx, "u1", "add_task", map[string]any{
		"title":       "buy milk",
		"description": "oat, not dairy",
	})
	added, ok := res.(*AddTaskResult)
	if !ok || !added.OK() {
		t.Fatalf("add_task = %+v", res)
	}
	if added.Task == nil || added.Task.Title != "buy milk" {
		t.Fatalf("task = %+v", added.Task)
	}
	if added.Message != "Task 'buy milk' created successfully" {
		t.Errorf("message = %q", added.Message)
	}

	res = r.Invoke(ctx, "u1", "list_tasks", map[string]any{})
	listed, ok := res.(*ListTasksResult)
	if !ok || !listed.OK() {
		t.Fatalf("list_tasks = %+v", res)
	}
	found := false
	for _, task := range listed.Tasks {
		if task.ID == added.Task.ID {
			found = true
		}
	}
	if !found {
		t.Error("added task missing from list")
	}
	if listed.Total != 1 {
		t.Errorf("total = %d, want 1", listed.Total)
	}
}

func TestAddTaskValidation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing title", map[string]any{}},
		{"blank title", map[string]any{"title": "   "}},
		{"title too long", map[string]any{"title": strings.Repeat("a", 256)}},
		{"title wrong type", map[string]any{"title": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Invoke(ctx, "u1", "add_task", tt.args)
			if res.OK() {
				t.Fatalf("expected failure, got %+v", res)
			}
			if !strings.HasPrefix(res.ErrCode(), CodeValidation) {
				t.Errorf("error = %q, want %s prefix", res.ErrCode(), CodeValidation)
			}
		})
	}
}

func TestListTasksFilters(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, title := range []string{"buy milk", "buy bread", "file taxes"} {
		if res := r.Invoke(ctx, "u1", "add_task", map[string]any{"title": title}); !res.OK() {
			t.Fatalf("add: %+v", res)
		}
	}
	if res := r.Invoke(ctx, "u1", "complete_task", map[string]any{"task_id": 1}); !res.OK() {
		t.Fatalf("complete: %+v", res)
	}

	res := r.Invoke(ctx, "u1", "list_tasks", map[string]any{"completed": true})
	listed := res.(*ListTasksResult)
	if listed.Total != 1 || listed.Message != "Found 1 completed tasks" {
		t.Errorf("completed filter: total=%d message=%q", listed.Total, listed.Message)
	}

	res = r.Invoke(ctx, "u1", "list_tasks", map[string]any{"search": "buy"})
	listed = res.(*ListTasksResult)
	if listed.Total != 2 {
		t.Errorf("search: total = %d, want 2", listed.Total)
	}
	if listed.Message != "Found 2 total tasks matching 'buy'" {
		t.Errorf("search message = %q", listed.Message)
	}

	// JSON numbers arrive as float64 once decoded.
	res = r.Invoke(ctx, "u1", "list_tasks", map[string]any{"limit": float64(1)})
	listed = res.(*ListTasksResult)
	if len(listed.Tasks) != 1 || listed.Total != 3 {
		t.Errorf("pagination: len=%d total=%d", len(listed.Tasks), listed.Total)
	}
}

func TestListTasksLimitOutOfRange(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Invoke(context.Background(), "u1", "list_tasks", map[string]any{"limit": float64(101)})
	if res.OK() || !strings.HasPrefix(res.ErrCode(), CodeValidation) {
		t.Errorf("got %+v, want validation error", res)
	}
}

func TestUpdateTaskNoFields(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	added := r.Invoke(ctx, "u1", "add_task", map[string]any{"title": "stable"}).(*AddTaskResult)
	before := r.Invoke(ctx, "u1", "list_tasks", map[string]any{}).(*ListTasksResult)

	res := r.Invoke(ctx, "u1", "update_task", map[string]any{"task_id": float64(added.Task.ID)})
	updated, ok := res.(*UpdateTaskResult)
	if !ok || updated.OK() {
		t.Fatalf("expected failure, got %+v", res)
	}
	if updated.Error != CodeValidation+": At least one of 'title' or 'description' must be provided" {
		t.Errorf("error = %q", updated.Error)
	}

	// The row itself must be untouched, updated_at included.
	after := r.Invoke(ctx, "u1", "list_tasks", map[string]any{}).(*ListTasksResult)
	if !after.Tasks[0].UpdatedAt.Equal(before.Tasks[0].UpdatedAt) {
		t.Errorf("updated_at changed: %v -> %v", before.Tasks[0].UpdatedAt, after.Tasks[0].UpdatedAt)
	}
}

func TestUpdateTaskTitle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	added := r.Invoke(ctx, "u1", "add_task", map[string]any{"title": "old"}).(*AddTaskResult)

	res := r.Invoke(ctx, "u1", "update_task", map[string]any{
		"task_id": float64(added.Task.ID),
		"title":   "new",
	})
	updated := res.(*UpdateTaskResult)
	if !updated.OK() || updated.Task.Title != "new" {
		t.Fatalf("update = %+v", updated)
	}
}

func TestCompleteTaskDefaultsTrue(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	added := r.Invoke(ctx, "u1", "add_task", map[string]any{"title": "finish me"}).(*AddTaskResult)

	res := r.Invoke(ctx, "u1", "complete_task", map[string]any{"task_id": float64(added.Task.ID)})
	completed := res.(*CompleteTaskResult)
	if !completed.OK() || !completed.Task.Completed {
		t.Fatalf("complete = %+v", completed)
	}
	if completed.Message != "Task 'finish me' completed" {
		t.Errorf("message = %q", completed.Message)
	}

	res = r.Invoke(ctx, "u1", "complete_task", map[string]any{
		"task_id":   float64(added.Task.ID),
		"completed": false,
	})
	reopened := res.(*CompleteTaskResult)
	if !reopened.OK() || reopened.Task.Completed {
		t.Fatalf("reopen = %+v", reopened)
	}
	if reopened.Message != "Task 'finish me' marked as incomplete" {
		t.Errorf("message = %q", reopened.Message)
	}
}

func TestDeleteTaskNotFound(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Invoke(context.Background(), "u1", "delete_task", map[string]any{"task_id": float64(999)})
	deleted, ok := res.(*DeleteTaskResult)
	if !ok || deleted.OK() {
		t.Fatalf("expected failure, got %+v", res)
	}
	if deleted.Error != "TASK_NOT_FOUND: Task 999 does not exist or does not belong to this user" {
		t.Errorf("error = %q", deleted.Error)
	}
}

func TestDeleteTask(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	added := r.Invoke(ctx, "u1", "add_task", map[string]any{"title": "doomed"}).(*AddTaskResult)

	res := r.Invoke(ctx, "u1", "delete_task", map[string]any{"task_id": float64(added.Task.ID)})
	deleted := res.(*DeleteTaskResult)
	if !deleted.OK() {
		t.Fatalf("delete = %+v", deleted)
	}
	if deleted.DeletedTask == nil || deleted.DeletedTask.Title != "doomed" {
		t.Errorf("deleted_task = %+v", deleted.DeletedTask)
	}
	if deleted.Message != "Task 'doomed' has been deleted" {
		t.Errorf("message = %q", deleted.Message)
	}
}

func TestCrossUserOwnership(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	added := r.Invoke(ctx, "u1", "add_task", map[string]any{"title": "private"}).(*AddTaskResult)
	id := float64(added.Task.ID)

	// Every mutating op must treat another user's task as missing.
	for _, name := range []string{"update_task", "complete_task", "delete_task"} {
		args := map[string]any{"task_id": id}
		if name == "update_task" {
			args["title"] = "hijacked"
		}
		res := r.Invoke(ctx, "u2", name, args)
		if res.OK() {
			t.Errorf("%s across users succeeded: %+v", name, res)
		}
		if !strings.HasPrefix(res.ErrCode(), CodeNotFound) {
			t.Errorf("%s error = %q, want %s prefix", name, res.ErrCode(), CodeNotFound)
		}
	}
}

func TestUnknownTool(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Invoke(context.Background(), "u1", "launch_rocket", map[string]any{})
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.ErrCode(), CodeUnknownTool) {
		t.Errorf("error = %q, want %s prefix", res.ErrCode(), CodeUnknownTool)
	}
	// The error names every known tool so the model can self-correct.
	for _, name := range Names() {
		if !strings.Contains(res.ErrCode(), name) {
			t.Errorf("error %q does not mention %q", res.ErrCode(), name)
		}
	}
}

func TestParseOp(t *testing.T) {
	for _, name := range Names() {
		op, ok := ParseOp(name)
		if !ok || op.String() != name {
			t.Errorf("ParseOp(%q) = %v, %v", name, op, ok)
		}
	}
	if _, ok := ParseOp("nope"); ok {
		t.Error("ParseOp accepted unknown name")
	}
}

func TestDefinitionsShape(t *testing.T) {
	defs := Definitions()
	if len(defs) != 5 {
		t.Fatalf("len = %d, want 5", len(defs))
	}

	for _, def := range defs {
		if def["type"] != "function" {
			t.Errorf("type = %v", def["type"])
		}
		fn, ok := def["function"].(map[string]any)
		if !ok {
			t.Fatalf("function = %v", def["function"])
		}
		if fn["name"] == "" || fn["description"] == "" {
			t.Errorf("incomplete function def: %v", fn)
		}
		params, ok := fn["parameters"].(map[string]any)
		if !ok || params["type"] != "object" {
			t.Errorf("parameters = %v", fn["parameters"])
		}
		// user_id is injected server-side and must not be exposed.
		props := params["properties"].(map[string]any)
		if _, exposed := props["user_id"]; exposed {
			t.Errorf("%s exposes user_id", fn["name"])
		}
		// The whole definition must be JSON-encodable.
		if _, err := json.Marshal(def); err != nil {
			t.Errorf("marshal %s: %v", fn["name"], err)
		}
	}
}

func TestEncodeResult(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Invoke(context.Background(), "u1", "add_task", map[string]any{"title": "encode me"})
	encoded := Encode(res)

	var decoded map[string]any
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["success"] != true {
		t.Errorf("success = %v", decoded["success"])
	}
	task, ok := decoded["task"].(map[string]any)
	if !ok || task["title"] != "encode me" {
		t.Errorf("task = %v", decoded["task"])
	}
}
