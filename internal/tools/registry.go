// Package tools exposes the task management tools callable by the
// conversation orchestrator and by MCP clients.
//
// Every invocation is stateless: arguments come in as a decoded JSON
// map, are validated into typed argument structs, and the outcome goes
// back as a structured result. Domain failures (unknown tool, bad
// arguments, missing task, database trouble) are reported inside the
// result, never as a Go error, so the model can read and recover from
// them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tasktalk/internal/tasks"
)

// Error code prefixes carried in Result.Error.
const (
	CodeUnknownTool = "UNKNOWN_TOOL"
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "TASK_NOT_FOUND"
	CodeDatabase    = "DATABASE_ERROR"
)

// Result is the common view over tool outcomes.
type Result interface {
	// OK reports whether the invocation succeeded.
	OK() bool
	// ErrCode returns the error string (code prefix plus detail), or
	// "" on success.
	ErrCode() string
}

// Status is the part every tool result shares.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// OK implements Result.
func (s Status) OK() bool { return s.Success }

// ErrCode implements Result.
func (s Status) ErrCode() string { return s.Error }

// AddTaskResult is the outcome of add_task.
type AddTaskResult struct {
	Status
	Task *tasks.Task `json:"task,omitempty"`
}

// ListTasksResult is the outcome of list_tasks. Total counts all
// matches before pagination.
type ListTasksResult struct {
	Status
	Tasks []tasks.Task `json:"tasks"`
	Total int          `json:"total"`
}

// UpdateTaskResult is the outcome of update_task.
type UpdateTaskResult struct {
	Status
	Task *tasks.Task `json:"task,omitempty"`
}

// CompleteTaskResult is the outcome of complete_task.
type CompleteTaskResult struct {
	Status
	Task *tasks.Task `json:"task,omitempty"`
}

// TaskSummary is the minimal record of a deleted task.
type TaskSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// DeleteTaskResult is the outcome of delete_task.
type DeleteTaskResult struct {
	Status
	DeletedTask *TaskSummary `json:"deleted_task,omitempty"`
}

// Encode marshals a result to the JSON string placed in a tool turn.
func Encode(r Result) string {
	b, err := json.Marshal(r)
	if err != nil {
		// Results are plain structs; this should not happen.
		return `{"success": false, "message": "internal error encoding result"}`
	}
	return string(b)
}

// Registry dispatches tool invocations to the task store. It holds no
// per-conversation state; construct one per process and share it.
type Registry struct {
	tasks  *tasks.Store
	logger *slog.Logger
}

// NewRegistry creates a registry backed by the given task store.
func NewRegistry(store *tasks.Store, logger *slog.Logger) *Registry {
	return &Registry{tasks: store, logger: logger}
}

// Invoke runs the named tool for userID with the given raw arguments.
// The owning user comes exclusively from userID; any user identifier
// inside args is ignored. The returned result is never nil.
func (r *Registry) Invoke(ctx context.Context, userID, name string, args map[string]any) Result {
	op, ok := ParseOp(name)
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name, "user_id", userID)
		return &Status{
			Success: false,
			Message: "Unknown tool",
			Error: fmt.Sprintf("%s: '%s' is not a registered tool. Known tools: %s",
				CodeUnknownTool, name, strings.Join(Names(), ", ")),
		}
	}

	r.logger.Debug("tool invoked", "tool", name, "user_id", userID)

	switch op {
	case OpAddTask:
		return r.addTask(ctx, userID, args)
	case OpListTasks:
		return r.listTasks(ctx, userID, args)
	case OpUpdateTask:
		return r.updateTask(ctx, userID, args)
	case OpCompleteTask:
		return r.completeTask(ctx, userID, args)
	case OpDeleteTask:
		return r.deleteTask(ctx, userID, args)
	default:
		// Unreachable while the Op set and this switch stay in sync.
		panic(fmt.Sprintf("unhandled op %d", op))
	}
}

func (r *Registry) addTask(ctx context.Context, userID string, raw map[string]any) Result {
	args, err := ParseAddTaskArgs(raw)
	if err != nil {
		return &AddTaskResult{Status: validationError("Invalid arguments", err)}
	}

	task, err := r.tasks.Create(ctx, userID, args.Title, args.Description)
	if err != nil {
		r.logger.Error("add_task failed", "error", err, "user_id", userID)
		return &AddTaskResult{Status: databaseError("Failed to create task", err)}
	}

	return &AddTaskResult{
		Status: Status{Success: true, Message: fmt.Sprintf("Task '%s' created successfully", task.Title)},
		Task:   task,
	}
}

func (r *Registry) listTasks(ctx context.Context, userID string, raw map[string]any) Result {
	args, err := ParseListTasksArgs(raw)
	if err != nil {
		return &ListTasksResult{Status: validationError("Invalid arguments", err), Tasks: []tasks.Task{}}
	}

	list, total, err := r.tasks.List(ctx, userID, tasks.Filter{
		Completed: args.Completed,
		Search:    args.Search,
		Limit:     args.Limit,
		Offset:    args.Offset,
	})
	if err != nil {
		r.logger.Error("list_tasks failed", "error", err, "user_id", userID)
		return &ListTasksResult{Status: databaseError("Failed to list tasks", err), Tasks: []tasks.Task{}}
	}
	if list == nil {
		list = []tasks.Task{}
	}

	status := "total"
	if args.Completed != nil {
		if *args.Completed {
			status = "completed"
		} else {
			status = "incomplete"
		}
	}
	message := fmt.Sprintf("Found %d %s tasks", total, status)
	if args.Search != "" {
		message = fmt.Sprintf("Found %d %s tasks matching '%s'", total, status, args.Search)
	}

	return &ListTasksResult{
		Status: Status{Success: true, Message: message},
		Tasks:  list,
		Total:  total,
	}
}

func (r *Registry) updateTask(ctx context.Context, userID string, raw map[string]any) Result {
	args, err := ParseUpdateTaskArgs(raw)
	if err != nil {
		return &UpdateTaskResult{Status: validationError("Invalid arguments", err)}
	}

	if args.Title == nil && args.Description == nil {
		// Report the current task so the model can see nothing changed.
		task, _ := r.tasks.Get(ctx, userID, args.TaskID)
		return &UpdateTaskResult{
			Status: Status{
				Success: false,
				Message: "No updates provided",
				Error:   CodeValidation + ": At least one of 'title' or 'description' must be provided",
			},
			Task: task,
		}
	}

	task, err := r.tasks.Update(ctx, userID, args.TaskID, args.Title, args.Description)
	if errors.Is(err, tasks.ErrNotFound) {
		return &UpdateTaskResult{Status: notFound(args.TaskID)}
	}
	if err != nil {
		r.logger.Error("update_task failed", "error", err, "user_id", userID, "task_id", args.TaskID)
		return &UpdateTaskResult{Status: databaseError("Failed to update task", err)}
	}

	return &UpdateTaskResult{
		Status: Status{Success: true, Message: fmt.Sprintf("Task %d updated successfully", task.ID)},
		Task:   task,
	}
}

func (r *Registry) completeTask(ctx context.Context, userID string, raw map[string]any) Result {
	args, err := ParseCompleteTaskArgs(raw)
	if err != nil {
		return &CompleteTaskResult{Status: validationError("Invalid arguments", err)}
	}

	task, err := r.tasks.SetCompleted(ctx, userID, args.TaskID, args.Completed)
	if errors.Is(err, tasks.ErrNotFound) {
		return &CompleteTaskResult{Status: notFound(args.TaskID)}
	}
	if err != nil {
		r.logger.Error("complete_task failed", "error", err, "user_id", userID, "task_id", args.TaskID)
		return &CompleteTaskResult{Status: databaseError("Failed to update task status", err)}
	}

	statusText := "completed"
	if !args.Completed {
		statusText = "marked as incomplete"
	}
	return &CompleteTaskResult{
		Status: Status{Success: true, Message: fmt.Sprintf("Task '%s' %s", task.Title, statusText)},
		Task:   task,
	}
}

func (r *Registry) deleteTask(ctx context.Context, userID string, raw map[string]any) Result {
	args, err := ParseDeleteTaskArgs(raw)
	if err != nil {
		return &DeleteTaskResult{Status: validationError("Invalid arguments", err)}
	}

	task, err := r.tasks.Delete(ctx, userID, args.TaskID)
	if errors.Is(err, tasks.ErrNotFound) {
		return &DeleteTaskResult{Status: notFound(args.TaskID)}
	}
	if err != nil {
		r.logger.Error("delete_task failed", "error", err, "user_id", userID, "task_id", args.TaskID)
		return &DeleteTaskResult{Status: databaseError("Failed to delete task", err)}
	}

	return &DeleteTaskResult{
		Status:      Status{Success: true, Message: fmt.Sprintf("Task '%s' has been deleted", task.Title)},
		DeletedTask: &TaskSummary{ID: task.ID, Title: task.Title},
	}
}

func validationError(message string, err error) Status {
	return Status{Success: false, Message: message, Error: CodeValidation + ": " + err.Error()}
}

func databaseError(message string, err error) Status {
	return Status{Success: false, Message: message, Error: CodeDatabase + ": " + err.Error()}
}

func notFound(taskID int64) Status {
	return Status{
		Success: false,
		Message: "Task not found",
		Error:   fmt.Sprintf("%s: Task %d does not exist or does not belong to this user", CodeNotFound, taskID),
	}
}
