// Package intent deterministically maps natural language to a task
// tool, with a confidence score. It is pure pattern matching: no model
// call, no state, same answer for the same input every time. The chat
// API exposes it so clients can preview what a message will do.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"tasktalk/internal/tools"
)

// Intent is a recognized category of user request.
type Intent string

const (
	CreateTask   Intent = "create_task"
	ViewTasks    Intent = "view_tasks"
	EditTask     Intent = "edit_task"
	CompleteTask Intent = "complete_task"
	DeleteTask   Intent = "delete_task"
	Unknown      Intent = "unknown"
)

// Level buckets a confidence score.
type Level string

const (
	// LevelHigh (>= 0.7): act immediately.
	LevelHigh Level = "high"
	// LevelMedium (0.5-0.69): act, but confirm.
	LevelMedium Level = "medium"
	// LevelLow (0.3-0.49): ask for clarification.
	LevelLow Level = "low"
	// LevelUncertain (< 0.3): show the help message.
	LevelUncertain Level = "uncertain"
)

// LevelFor buckets a raw confidence score.
func LevelFor(confidence float64) Level {
	switch {
	case confidence >= 0.7:
		return LevelHigh
	case confidence >= 0.5:
		return LevelMedium
	case confidence >= 0.3:
		return LevelLow
	default:
		return LevelUncertain
	}
}

// Result is the outcome of classifying one message.
type Result struct {
	Intent             Intent         `json:"intent"`
	Confidence         float64        `json:"confidence"`
	Level              Level          `json:"confidence_level"`
	ToolName           string         `json:"tool_name,omitempty"`
	Params             map[string]any `json:"extracted_params"`
	NeedsClarification bool           `json:"requires_clarification"`
	Clarification      string         `json:"clarification_question,omitempty"`
}

type pattern struct {
	re     *regexp.Regexp
	weight float64
}

type intentPatterns struct {
	intent   Intent
	patterns []pattern
}

func pat(weight float64, expr string) pattern {
	return pattern{re: regexp.MustCompile(expr), weight: weight}
}

// Pattern tables, checked in order. On equal weights the earlier intent
// wins, so the ordering here is part of the contract.
var classifiers = []intentPatterns{
	{CreateTask, []pattern{
		pat(0.9, `(?i)\b(add|create|new|make)\b.*\b(task|todo|item)\b`),
		pat(0.95, `(?i)\bnew task\b`),
		pat(0.85, `(?i)\badd\b.*\bto\b.*\blist\b`),
		pat(0.85, `(?i)\bput\b.*\bon\b.*\blist\b`),
		pat(0.7, `(?i)\b(remind|remember)\b.*\bto\b`),
		pat(0.65, `(?i)\bi (need|have|got|gotta) to\b`),
		pat(0.7, `(?i)\bdon'?t (let me )?forget\b`),
		pat(0.45, `(?i)\bi should\b`),
	}},
	{ViewTasks, []pattern{
		pat(0.9, `(?i)\b(show|list|view|display|see)\b.*\b(task|todo|list|all)\b`),
		pat(0.85, `(?i)\bwhat\b.*\b(task|todo|do|have)\b`),
		pat(0.8, `(?i)\bmy (tasks?|todos?|list)\b`),
		pat(0.9, `(?i)\b(show|list|view)\b.*\b(completed?|done|finished)\b`),
		pat(0.9, `(?i)\b(show|list|view)\b.*\b(incomplete|pending|remaining)\b`),
		pat(0.9, `(?i)\bcompleted?\s+(tasks?|todos?)\b`),
		pat(0.9, `(?i)\bincomplete\s+(tasks?|todos?)\b`),
		pat(0.7, `(?i)\b(anything|something)\b.*(pending|left|to do)\b`),
		pat(0.75, `(?i)\bwhat'?s on my\b`),
		pat(0.8, `(?i)\bwhat do i (have|need) to\b`),
	}},
	{EditTask, []pattern{
		pat(0.9, `(?i)\b(update|change|edit|modify|rename|fix)\b.*\btask\b`),
		pat(0.85, `(?i)\b(update|change|edit|modify|rename)\b.*\b(title|description|name)\b`),
		pat(0.8, `(?i)\brename\b.*\bto\b`),
		pat(0.65, `(?i)\bchange\b.*\bto\b`),
		pat(0.7, `(?i)\bfix\b.*\btask\b`),
	}},
	{CompleteTask, []pattern{
		pat(0.9, `(?i)\b(complete|finish|done)\b.*\btask\b`),
		pat(0.9, `(?i)\bmark\b.*\b(complete|done|finished)\b`),
		pat(0.85, `(?i)\bcheck off\b`),
		pat(0.8, `(?i)\btick\b.*\btask\b`),
		pat(0.85, `(?i)\bi (finished|completed|did)\b.*\btask\b`),
		pat(0.75, `(?i)\bi (finished|completed|did)\b`),
		pat(0.75, `(?i)\btask\b.*\b(is )?done\b`),
		pat(0.85, `(?i)\b(uncomplete|reopen|undo)\b`),
		pat(0.85, `(?i)\bmark\b.*\b(incomplete|not done)\b`),
	}},
	{DeleteTask, []pattern{
		pat(0.9, `(?i)\b(delete|remove|trash|discard|erase)\b.*\btask\b`),
		pat(0.85, `(?i)\bget rid of\b`),
		pat(0.7, `(?i)\bdon'?t need\b.*\b(anymore|any more)\b`),
		pat(0.65, `(?i)\bcancel\b.*\btask\b`),
		pat(0.8, `(?i)\bremove\b.*\bfrom\b.*\blist\b`),
	}},
}

// ToolFor maps an intent to its tool name, or "" for Unknown.
func ToolFor(intent Intent) string {
	switch intent {
	case CreateTask:
		return tools.OpAddTask.String()
	case ViewTasks:
		return tools.OpListTasks.String()
	case EditTask:
		return tools.OpUpdateTask.String()
	case CompleteTask:
		return tools.OpCompleteTask.String()
	case DeleteTask:
		return tools.OpDeleteTask.String()
	default:
		return ""
	}
}

// RequiresTaskID reports whether the intent cannot proceed without a
// task number.
func RequiresTaskID(intent Intent) bool {
	return intent == EditTask || intent == CompleteTask || intent == DeleteTask
}

// IsDestructive reports whether the intent should be confirmed before
// acting.
func IsDestructive(intent Intent) bool {
	return intent == DeleteTask
}

// Classify maps a message to its best-matching intent, extracts tool
// parameters, and decides whether clarification is needed.
func Classify(message string) Result {
	normalized := strings.ToLower(strings.TrimSpace(message))

	best := Unknown
	bestConfidence := 0.0
	for _, c := range classifiers {
		for _, p := range c.patterns {
			if p.weight > bestConfidence && p.re.MatchString(normalized) {
				bestConfidence = p.weight
				best = c.intent
			}
		}
	}

	level := LevelFor(bestConfidence)
	params := extractParams(message, best)

	result := Result{
		Intent:     best,
		Confidence: bestConfidence,
		Level:      level,
		ToolName:   ToolFor(best),
		Params:     params,
	}

	switch {
	case level == LevelUncertain:
		result.NeedsClarification = true
		result.Clarification = HelpMessage()
	case level == LevelLow:
		result.NeedsClarification = true
		result.Clarification = clarificationFor(best)
	case RequiresTaskID(best):
		if _, ok := params["task_id"]; !ok {
			result.NeedsClarification = true
			result.Clarification = "Which task did you mean? Please specify the task number."
		}
	}
	return result
}

// Parameter extraction patterns.
var (
	taskIDRe = regexp.MustCompile(`(?i)\btask\s*#?(\d+)\b|\b#(\d+)\b|\btask\s+(\d+)\b|^(\d+)$`)

	titleRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)['"]([^'"]+)['"]`),
		regexp.MustCompile(`(?i)(?:called|named|titled)\s+(.+?)(?:\s*$|\s+and\b)`),
		regexp.MustCompile(`(?i)(?:^|\s)to\s+(.+?)(?:\s*$)`),
		regexp.MustCompile(`(?i)task[:\s]+(.+?)(?:\s*$|\s+and\b)`),
	}
	titlePrefixRe = regexp.MustCompile(`(?i)^(a |an |the |my )`)
	addFallbackRe = regexp.MustCompile(`(?i)\b(?:add|create|new)\s+(?:task|todo)\s+(.+)`)
	needFallback  = regexp.MustCompile(`(?i)\bi (?:need|have|got) to\s+(.+?)\s*$`)

	completedRe    = regexp.MustCompile(`(?i)\b(completed?|done|finished)\b`)
	notCompletedRe = regexp.MustCompile(`(?i)\b(not|un|in)complete\b|\bnot done\b|\bpending\b`)
	incompleteRe   = regexp.MustCompile(`(?i)\b(incomplete|pending|not done|left|remaining|open)\b`)

	searchRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\babout\s+["']?(\w+)["']?`),
		regexp.MustCompile(`(?i)\bcontaining\s+["']?(\w+)["']?`),
		regexp.MustCompile(`(?i)\bwith\s+["']?(\w+)["']?`),
		regexp.MustCompile(`(?i)\bfor\s+["']?(\w+)["']?`),
	}
	limitRe = regexp.MustCompile(`(?i)\b(first|top|last)\s+(\d+)\b`)

	editQuotedRe = regexp.MustCompile(`\bto\s+["']([^"']+)["']`)
	editPlainRe  = regexp.MustCompile(`\bto\s+(.+?)\s*$`)

	undoRe = regexp.MustCompile(`(?i)\b(uncomplete|undo|reopen|not done|incomplete)\b`)
)

func extractParams(message string, intent Intent) map[string]any {
	params := map[string]any{}

	if m := taskIDRe.FindStringSubmatch(message); m != nil {
		for _, group := range m[1:] {
			if group != "" {
				if id, err := strconv.ParseInt(group, 10, 64); err == nil {
					params["task_id"] = id
				}
				break
			}
		}
	}

	switch intent {
	case CreateTask:
		extractCreateParams(message, params)
	case ViewTasks:
		extractViewParams(message, params)
	case EditTask:
		extractEditParams(message, params)
	case CompleteTask:
		params["completed"] = !undoRe.MatchString(message)
	}
	return params
}

func extractCreateParams(message string, params map[string]any) {
	for _, re := range titleRes {
		if m := re.FindStringSubmatch(message); m != nil {
			title := strings.TrimSpace(m[1])
			title = titlePrefixRe.ReplaceAllString(title, "")
			if len(title) > 1 {
				params["title"] = title
				return
			}
		}
	}
	if m := addFallbackRe.FindStringSubmatch(message); m != nil {
		params["title"] = strings.TrimSpace(m[1])
		return
	}
	if m := needFallback.FindStringSubmatch(message); m != nil {
		params["title"] = strings.TrimSpace(m[1])
	}
}

func extractViewParams(message string, params map[string]any) {
	if completedRe.MatchString(message) && !notCompletedRe.MatchString(message) {
		params["completed"] = true
	}
	if incompleteRe.MatchString(message) {
		params["completed"] = false
	}

	for _, re := range searchRes {
		if m := re.FindStringSubmatch(message); m != nil {
			params["search"] = m[1]
			break
		}
	}

	if m := limitRe.FindStringSubmatch(message); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			params["limit"] = n
		}
	}
}

func extractEditParams(message string, params map[string]any) {
	if m := editQuotedRe.FindStringSubmatch(message); m != nil {
		params["title"] = m[1]
		return
	}
	if m := editPlainRe.FindStringSubmatch(message); m != nil {
		title := strings.TrimSpace(m[1])
		if title != "" && !isDigits(title) {
			params["title"] = title
		}
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func clarificationFor(intent Intent) string {
	switch intent {
	case CreateTask:
		return "What would you like to add to your task list?"
	case ViewTasks:
		return "Would you like to see all tasks, or filter by status (completed/incomplete)?"
	case EditTask:
		return "Which task would you like to edit? Please provide the task number."
	case CompleteTask:
		return "Which task did you complete? Please provide the task number."
	case DeleteTask:
		return "Which task would you like to delete? Please provide the task number."
	default:
		return HelpMessage()
	}
}

// HelpMessage is shown when no intent can be recognized.
func HelpMessage() string {
	return `I'm not sure what you'd like to do. I can help you:
- Add new tasks (e.g., "Add a task to buy groceries")
- View your tasks (e.g., "Show my tasks")
- Update tasks (e.g., "Change task 3 to 'New title'")
- Complete tasks (e.g., "Mark task 5 as done")
- Delete tasks (e.g., "Delete task 2")

What would you like to do?`
}
