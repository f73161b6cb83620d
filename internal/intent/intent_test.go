package intent

import (
	"strings"
	"testing"
)

func TestClassifyCompleteTask(t *testing.T) {
	res := Classify("mark task 3 as done")

	if res.Intent != CompleteTask {
		t.Errorf("intent = %s, want %s", res.Intent, CompleteTask)
	}
	if res.Confidence < 0.7 {
		t.Errorf("confidence = %.2f, want >= 0.7", res.Confidence)
	}
	if res.Level != LevelHigh {
		t.Errorf("level = %s, want %s", res.Level, LevelHigh)
	}
	if res.ToolName != "complete_task" {
		t.Errorf("tool = %q", res.ToolName)
	}
	if id, ok := res.Params["task_id"].(int64); !ok || id != 3 {
		t.Errorf("task_id = %v", res.Params["task_id"])
	}
	if completed, ok := res.Params["completed"].(bool); !ok || !completed {
		t.Errorf("completed = %v", res.Params["completed"])
	}
	if res.NeedsClarification {
		t.Error("unexpected clarification request")
	}
}

func TestClassifyVagueStatement(t *testing.T) {
	res := Classify("I should clean the house")

	if res.Confidence > 0.49 {
		t.Errorf("confidence = %.2f, want <= 0.49", res.Confidence)
	}
	if !res.NeedsClarification {
		t.Error("expected clarification request")
	}
	if res.Clarification == "" {
		t.Error("expected a clarification question")
	}
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		message string
		intent  Intent
		level   Level
	}{
		{"add a task to buy groceries", CreateTask, LevelHigh},
		{"create a new todo item", CreateTask, LevelHigh},
		{"new task", CreateTask, LevelHigh},
		{"remind me to call mom", CreateTask, LevelHigh},
		{"I need to file my taxes", CreateTask, LevelMedium},
		{"show my tasks", ViewTasks, LevelHigh},
		{"what's on my plate today", ViewTasks, LevelHigh},
		{"list completed tasks", ViewTasks, LevelHigh},
		{"rename task 2 to groceries", EditTask, LevelHigh},
		{"change task 5 to 'new title'", EditTask, LevelHigh},
		{"mark task 3 as done", CompleteTask, LevelHigh},
		{"check off task 1", CompleteTask, LevelHigh},
		{"undo task 4", CompleteTask, LevelHigh},
		{"delete task 2", DeleteTask, LevelHigh},
		{"get rid of task 7", DeleteTask, LevelHigh},
		{"what is the weather like", Unknown, LevelUncertain},
		{"hello there", Unknown, LevelUncertain},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			res := Classify(tt.message)
			if res.Intent != tt.intent {
				t.Errorf("intent = %s, want %s (confidence %.2f)", res.Intent, tt.intent, res.Confidence)
			}
			if res.Level != tt.level {
				t.Errorf("level = %s, want %s (confidence %.2f)", res.Level, tt.level, res.Confidence)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	first := Classify("add a task to water the plants")
	for i := 0; i < 5; i++ {
		again := Classify("add a task to water the plants")
		if again.Intent != first.Intent || again.Confidence != first.Confidence {
			t.Fatalf("classification drifted: %+v vs %+v", first, again)
		}
	}
}

func TestTaskIDExtraction(t *testing.T) {
	tests := []struct {
		message string
		want    int64
	}{
		{"complete task 12", 12},
		{"complete task #7", 7},
		{"complete task#3", 3},
		{"42", 42},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			res := Classify(tt.message)
			id, ok := res.Params["task_id"].(int64)
			if !ok || id != tt.want {
				t.Errorf("task_id = %v, want %d", res.Params["task_id"], tt.want)
			}
		})
	}
}

func TestTaskIDRequiredIntentsAskForIt(t *testing.T) {
	for _, message := range []string{
		"delete the task about groceries",
		"mark the shopping task as done",
	} {
		res := Classify(message)
		if _, ok := res.Params["task_id"]; ok {
			t.Fatalf("unexpected task_id for %q", message)
		}
		if !res.NeedsClarification {
			t.Errorf("%q: expected clarification request", message)
		}
		if !strings.Contains(res.Clarification, "task number") {
			t.Errorf("%q: clarification = %q", message, res.Clarification)
		}
	}
}

func TestCreateTitleExtraction(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{`add a task called "buy groceries"`, "buy groceries"},
		{"add a task to water the plants", "water the plants"},
		{"create task named dentist appointment", "dentist appointment"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			res := Classify(tt.message)
			title, _ := res.Params["title"].(string)
			if title != tt.want {
				t.Errorf("title = %q, want %q", title, tt.want)
			}
		})
	}
}

func TestViewParamsExtraction(t *testing.T) {
	res := Classify("show my completed tasks")
	if completed, ok := res.Params["completed"].(bool); !ok || !completed {
		t.Errorf("completed = %v, want true", res.Params["completed"])
	}

	res = Classify("show my pending tasks")
	if completed, ok := res.Params["completed"].(bool); !ok || completed {
		t.Errorf("completed = %v, want false", res.Params["completed"])
	}

	res = Classify("show my first 5 tasks")
	if limit, ok := res.Params["limit"].(int); !ok || limit != 5 {
		t.Errorf("limit = %v, want 5", res.Params["limit"])
	}

	res = Classify("show tasks about groceries")
	if search, _ := res.Params["search"].(string); search != "groceries" {
		t.Errorf("search = %v, want groceries", res.Params["search"])
	}
}

func TestEditParamsExtraction(t *testing.T) {
	res := Classify("change task 5 to 'pick up dry cleaning'")
	if title, _ := res.Params["title"].(string); title != "pick up dry cleaning" {
		t.Errorf("title = %q", title)
	}
	if id, _ := res.Params["task_id"].(int64); id != 5 {
		t.Errorf("task_id = %v", res.Params["task_id"])
	}

	res = Classify("rename task 2 to groceries")
	if title, _ := res.Params["title"].(string); title != "groceries" {
		t.Errorf("title = %q", title)
	}
}

func TestCompleteParamsUndo(t *testing.T) {
	res := Classify("reopen task 9")
	if completed, ok := res.Params["completed"].(bool); !ok || completed {
		t.Errorf("completed = %v, want false", res.Params["completed"])
	}
}

func TestHelpers(t *testing.T) {
	if !RequiresTaskID(DeleteTask) || RequiresTaskID(CreateTask) {
		t.Error("RequiresTaskID wrong")
	}
	if !IsDestructive(DeleteTask) || IsDestructive(CompleteTask) {
		t.Error("IsDestructive wrong")
	}
	if ToolFor(Unknown) != "" {
		t.Errorf("ToolFor(Unknown) = %q", ToolFor(Unknown))
	}
}

func TestHelpMessageListsCapabilities(t *testing.T) {
	msg := HelpMessage()
	for _, want := range []string{"Add new tasks", "View your tasks", "Update tasks", "Complete tasks", "Delete tasks"} {
		if !strings.Contains(msg, want) {
			t.Errorf("help message missing %q", want)
		}
	}
}
