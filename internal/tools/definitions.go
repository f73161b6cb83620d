package tools

import (
	"tasktalk/internal/tasks"
)

// Definitions returns the tool definitions sent to the completion API,
// in the {type, function: {name, description, parameters}} wire shape.
//
// The owning user is not a parameter: it is injected from the
// authenticated session on every invocation, so the model never sees
// or supplies a user identifier.
func Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(opNames))
	for _, op := range Ops() {
		defs = append(defs, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        op.String(),
				"description": opDescription(op),
				"parameters":  opParameters(op),
			},
		})
	}
	return defs
}

func opDescription(op Op) string {
	switch op {
	case OpAddTask:
		return "Create a new task for the user. Use when the user wants to add, create, or make a new todo item."
	case OpListTasks:
		return "List all tasks for a user with optional filtering. Use when the user wants to see, view, show, or get their tasks/todos."
	case OpUpdateTask:
		return "Update an existing task's title or description. Use when the user wants to change, modify, edit, or rename a task."
	case OpCompleteTask:
		return "Mark a task as completed or incomplete. Use when the user wants to finish, complete, done, check off, or undo a task."
	case OpDeleteTask:
		return "Permanently delete a task. Use when the user wants to remove, delete, or get rid of a task."
	default:
		return ""
	}
}

func opParameters(op Op) map[string]any {
	taskID := map[string]any{
		"type":        "integer",
		"description": "The ID of the task",
	}

	switch op {
	case OpAddTask:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"minLength":   1,
					"maxLength":   tasks.MaxTitleLen,
					"description": "Brief title describing the task",
				},
				"description": map[string]any{
					"type":        "string",
					"maxLength":   tasks.MaxDescriptionLen,
					"description": "Optional detailed description of the task",
				},
			},
			"required": []string{"title"},
		}
	case OpListTasks:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"completed": map[string]any{
					"type":        "boolean",
					"description": "Filter by completion status (omit for all tasks)",
				},
				"search": map[string]any{
					"type":        "string",
					"maxLength":   tasks.MaxTitleLen,
					"description": "Search term to filter tasks by title",
				},
				"limit": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     100,
					"default":     50,
					"description": "Maximum number of tasks to return",
				},
				"offset": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"default":     0,
					"description": "Number of tasks to skip for pagination",
				},
			},
			"required": []string{},
		}
	case OpUpdateTask:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": taskID,
				"title": map[string]any{
					"type":        "string",
					"minLength":   1,
					"maxLength":   tasks.MaxTitleLen,
					"description": "New title for the task (optional)",
				},
				"description": map[string]any{
					"type":        "string",
					"maxLength":   tasks.MaxDescriptionLen,
					"description": "New description (optional, use empty string to clear)",
				},
			},
			"required": []string{"task_id"},
		}
	case OpCompleteTask:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": taskID,
				"completed": map[string]any{
					"type":        "boolean",
					"default":     true,
					"description": "Set to true to complete, false to uncomplete",
				},
			},
			"required": []string{"task_id"},
		}
	case OpDeleteTask:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": taskID,
			},
			"required": []string{"task_id"},
		}
	default:
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
}
