package tools

import (
	"fmt"
	"strconv"
	"strings"

	"tasktalk/internal/tasks"
)

// Argument structs are parsed and validated from the raw decoded
// argument maps the model (or an MCP client) sends. A value that
// survives parsing is safe to hand to the task store.

// AddTaskArgs are the validated arguments for add_task.
type AddTaskArgs struct {
	Title       string
	Description *string
}

// ParseAddTaskArgs validates raw arguments for add_task.
func ParseAddTaskArgs(raw map[string]any) (AddTaskArgs, error) {
	var a AddTaskArgs

	title, ok, err := stringArg(raw, "title")
	if err != nil {
		return a, err
	}
	if !ok {
		return a, fmt.Errorf("'title' is required")
	}
	a.Title, err = tasks.ValidateTitle(title)
	if err != nil {
		return a, err
	}

	if desc, ok, err := stringArg(raw, "description"); err != nil {
		return a, err
	} else if ok {
		a.Description, err = tasks.NormalizeDescription(desc)
		if err != nil {
			return a, err
		}
	}
	return a, nil
}

// ListTasksArgs are the validated arguments for list_tasks.
type ListTasksArgs struct {
	Completed *bool
	Search    string
	Limit     int
	Offset    int
}

// ParseListTasksArgs validates raw arguments for list_tasks, applying
// the default limit of 50 (clamped to [1, 100]) and offset of 0.
func ParseListTasksArgs(raw map[string]any) (ListTasksArgs, error) {
	a := ListTasksArgs{Limit: 50}

	if completed, ok, err := boolArg(raw, "completed"); err != nil {
		return a, err
	} else if ok {
		a.Completed = &completed
	}

	if search, ok, err := stringArg(raw, "search"); err != nil {
		return a, err
	} else if ok {
		search = strings.TrimSpace(search)
		if len(search) > tasks.MaxTitleLen {
			return a, fmt.Errorf("'search' exceeds %d characters", tasks.MaxTitleLen)
		}
		a.Search = search
	}

	if limit, ok, err := intArg(raw, "limit"); err != nil {
		return a, err
	} else if ok {
		if limit < 1 || limit > 100 {
			return a, fmt.Errorf("'limit' must be between 1 and 100")
		}
		a.Limit = limit
	}

	if offset, ok, err := intArg(raw, "offset"); err != nil {
		return a, err
	} else if ok {
		if offset < 0 {
			return a, fmt.Errorf("'offset' must be non-negative")
		}
		a.Offset = offset
	}
	return a, nil
}

// UpdateTaskArgs are the validated arguments for update_task. Nil
// fields were not supplied; a non-nil empty Description clears it.
type UpdateTaskArgs struct {
	TaskID      int64
	Title       *string
	Description *string
}

// ParseUpdateTaskArgs validates raw arguments for update_task. Supplying
// neither title nor description is rejected here, before any row is read.
func ParseUpdateTaskArgs(raw map[string]any) (UpdateTaskArgs, error) {
	var a UpdateTaskArgs

	id, err := taskIDArg(raw)
	if err != nil {
		return a, err
	}
	a.TaskID = id

	if title, ok, err := stringArg(raw, "title"); err != nil {
		return a, err
	} else if ok {
		validated, err := tasks.ValidateTitle(title)
		if err != nil {
			return a, err
		}
		a.Title = &validated
	}

	if desc, ok, err := stringArg(raw, "description"); err != nil {
		return a, err
	} else if ok {
		desc = strings.TrimSpace(desc)
		if len(desc) > tasks.MaxDescriptionLen {
			return a, fmt.Errorf("description exceeds %d characters", tasks.MaxDescriptionLen)
		}
		a.Description = &desc
	}
	return a, nil
}

// CompleteTaskArgs are the validated arguments for complete_task.
type CompleteTaskArgs struct {
	TaskID    int64
	Completed bool
}

// ParseCompleteTaskArgs validates raw arguments for complete_task.
// Completed defaults to true when omitted.
func ParseCompleteTaskArgs(raw map[string]any) (CompleteTaskArgs, error) {
	a := CompleteTaskArgs{Completed: true}

	id, err := taskIDArg(raw)
	if err != nil {
		return a, err
	}
	a.TaskID = id

	if completed, ok, err := boolArg(raw, "completed"); err != nil {
		return a, err
	} else if ok {
		a.Completed = completed
	}
	return a, nil
}

// DeleteTaskArgs are the validated arguments for delete_task.
type DeleteTaskArgs struct {
	TaskID int64
}

// ParseDeleteTaskArgs validates raw arguments for delete_task.
func ParseDeleteTaskArgs(raw map[string]any) (DeleteTaskArgs, error) {
	id, err := taskIDArg(raw)
	if err != nil {
		return DeleteTaskArgs{}, err
	}
	return DeleteTaskArgs{TaskID: id}, nil
}

// Extraction helpers. JSON numbers decode as float64 and models
// occasionally send numbers as strings, so the numeric helpers accept
// both.

func stringArg(raw map[string]any, key string) (val string, ok bool, err error) {
	v, present := raw[key]
	if !present || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("'%s' must be a string", key)
	}
	return s, true, nil
}

func boolArg(raw map[string]any, key string) (val, ok bool, err error) {
	v, present := raw[key]
	if !present || v == nil {
		return false, false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, true, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, false, fmt.Errorf("'%s' must be a boolean", key)
		}
		return b, true, nil
	default:
		return false, false, fmt.Errorf("'%s' must be a boolean", key)
	}
}

func intArg(raw map[string]any, key string) (val int, ok bool, err error) {
	v, present := raw[key]
	if !present || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false, fmt.Errorf("'%s' must be an integer", key)
		}
		return int(t), true, nil
	case int:
		return t, true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false, fmt.Errorf("'%s' must be an integer", key)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("'%s' must be an integer", key)
	}
}

func taskIDArg(raw map[string]any) (int64, error) {
	id, ok, err := intArg(raw, "task_id")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("'task_id' is required")
	}
	if id < 1 {
		return 0, fmt.Errorf("'task_id' must be a positive integer")
	}
	return int64(id), nil
}
