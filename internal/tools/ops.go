package tools

// Op identifies one of the task tools. The set is closed: dispatch is
// an exhaustive switch over these values, so a new tool cannot be added
// without the compiler pointing at every place that must handle it.
type Op int

const (
	OpAddTask Op = iota
	OpListTasks
	OpUpdateTask
	OpCompleteTask
	OpDeleteTask
)

var opNames = [...]string{
	OpAddTask:      "add_task",
	OpListTasks:    "list_tasks",
	OpUpdateTask:   "update_task",
	OpCompleteTask: "complete_task",
	OpDeleteTask:   "delete_task",
}

// String returns the wire name of the op (e.g. "add_task").
func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "unknown"
	}
	return opNames[o]
}

// Ops returns all ops in registration order.
func Ops() []Op {
	return []Op{OpAddTask, OpListTasks, OpUpdateTask, OpCompleteTask, OpDeleteTask}
}

// Names returns the wire names of all ops in registration order.
func Names() []string {
	names := make([]string, 0, len(opNames))
	for _, op := range Ops() {
		names = append(names, op.String())
	}
	return names
}

// ParseOp maps a wire name to its Op. ok is false for unknown names.
func ParseOp(name string) (Op, bool) {
	for _, op := range Ops() {
		if op.String() == name {
			return op, true
		}
	}
	return 0, false
}
