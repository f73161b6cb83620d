// Package agent runs the tool-calling conversation loop.
//
// Each run is stateless: the outbound message list is rebuilt from
// persisted turns on every request, so any process instance can serve
// any conversation and a restart loses nothing.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tasktalk/internal/conversation"
	"tasktalk/internal/events"
	"tasktalk/internal/llm"
	"tasktalk/internal/tools"
)

// apologyReply is returned when the completion provider itself fails.
// Tool failures never trigger it; those go back to the model as
// structured results.
const apologyReply = "I'm sorry, something went wrong while handling that request. Please try again in a moment."

// Config bounds one orchestrator run.
type Config struct {
	// MaxRounds caps completion round-trips per user message. The
	// ceiling is a safety valve against a model that keeps requesting
	// tools forever; hitting it surfaces the best available text with
	// a warning instead of failing the run.
	MaxRounds int
	// HistoryLimit caps how many persisted turns are replayed into the
	// message list. Zero means unlimited.
	HistoryLimit int
}

// ToolCallRecord is one entry of a run's tool-call log, kept in
// execution order for transparency and debugging.
type ToolCallRecord struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  map[string]any  `json:"arguments"`
	Result     json.RawMessage `json:"result"`
	Success    bool            `json:"success"`
}

// Reply is the outcome of one run. ToolCalls is always present, even
// when empty or when the run degraded to an apology.
type Reply struct {
	ConversationID string           `json:"conversation_id"`
	Text           string           `json:"reply"`
	ToolCalls      []ToolCallRecord `json:"tool_calls"`
}

// Orchestrator drives the completion/tool loop for chat requests. It
// holds no per-conversation state and is safe for concurrent use.
type Orchestrator struct {
	completer llm.Completer
	registry  *tools.Registry
	convs     *conversation.Store
	bus       *events.Bus
	logger    *slog.Logger
	cfg       Config
}

// New creates an orchestrator. bus may be nil to disable events.
func New(completer llm.Completer, registry *tools.Registry, convs *conversation.Store, bus *events.Bus, logger *slog.Logger, cfg Config) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	return &Orchestrator{
		completer: completer,
		registry:  registry,
		convs:     convs,
		bus:       bus,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run handles one user message. A blank conversationID starts a new
// conversation; otherwise the conversation must belong to userID (a
// foreign conversation id behaves exactly like a missing one).
//
// The returned error is reserved for request-level problems (unknown
// conversation, storage unavailable). Completion-provider failures and
// tool failures never surface as errors; they degrade into the reply
// text and the tool-call log.
func (o *Orchestrator) Run(ctx context.Context, userID, userName, userMessage, conversationID string) (*Reply, error) {
	var conv *conversation.Conversation
	var err error
	if conversationID == "" {
		conv, err = o.convs.Create(ctx, userID, deriveTitle(userMessage))
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	} else {
		conv, err = o.convs.Get(ctx, userID, conversationID)
		if err != nil {
			return nil, err
		}
	}

	o.publish(events.KindRequestStart, map[string]any{"conversation_id": conv.ID, "user_id": userID})

	history, err := o.convs.History(ctx, userID, conv.ID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: SystemPrompt(userName)})
	messages = append(messages, wireHistory(history, o.logger)...)
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})

	if _, err := o.convs.AppendTurn(ctx, userID, conv.ID, conversation.Turn{
		Role:    conversation.RoleUser,
		Content: userMessage,
	}); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	defs := tools.Definitions()
	callLog := []ToolCallRecord{}
	lastText := ""

	for round := 1; round <= o.cfg.MaxRounds; round++ {
		o.publish(events.KindRound, map[string]any{"conversation_id": conv.ID, "user_id": userID, "round": round})

		completion, err := o.completer.Complete(ctx, messages, defs)
		if err != nil {
			o.logger.Error("completion failed", "conversation_id", conv.ID, "round", round, "error", err)
			o.appendAssistantText(ctx, userID, conv.ID, apologyReply)
			return &Reply{ConversationID: conv.ID, Text: apologyReply, ToolCalls: callLog}, nil
		}

		msg := completion.Message
		if msg.Content != "" {
			lastText = msg.Content
		}

		if len(msg.ToolCalls) == 0 {
			// The model answered directly; the run is done.
			o.appendAssistantText(ctx, userID, conv.ID, msg.Content)
			o.publish(events.KindReply, map[string]any{
				"conversation_id": conv.ID,
				"user_id":         userID,
				"rounds":          round,
				"tool_calls":      len(callLog),
			})
			return &Reply{ConversationID: conv.ID, Text: msg.Content, ToolCalls: callLog}, nil
		}

		// Record the invocation requests, then exactly one tool turn
		// per request. An assistant turn with tool calls must never be
		// followed by anything except its matching tool turns; the
		// completion API rejects the resubmission otherwise.
		if _, err := o.convs.AppendTurn(ctx, userID, conv.ID, conversation.Turn{
			Role:      conversation.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: StorageInvocations(msg.ToolCalls, o.logger),
		}); err != nil {
			o.logger.Error("persist assistant turn", "conversation_id", conv.ID, "error", err)
		}
		messages = append(messages, msg)

		for _, tc := range msg.ToolCalls {
			record := o.executeToolCall(ctx, userID, conv.ID, tc)
			callLog = append(callLog, record)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    string(record.Result),
				ToolCallID: tc.ID,
			})
		}
	}

	o.logger.Warn("iteration ceiling reached",
		"conversation_id", conv.ID, "max_rounds", o.cfg.MaxRounds, "tool_calls", len(callLog))
	text := lastText
	if text == "" {
		text = "I wasn't able to finish that request. Please try again or break it into smaller steps."
	}
	o.appendAssistantText(ctx, userID, conv.ID, text)
	return &Reply{ConversationID: conv.ID, Text: text, ToolCalls: callLog}, nil
}

// executeToolCall runs one invocation and persists its tool turn. It
// never fails: malformed arguments and registry-level problems become
// structured error results the model can read.
func (o *Orchestrator) executeToolCall(ctx context.Context, userID, conversationID string, tc llm.ToolCall) ToolCallRecord {
	name := tc.Function.Name
	o.publish(events.KindToolCall, map[string]any{"conversation_id": conversationID, "user_id": userID, "tool": name})

	args := map[string]any{}
	var result tools.Result
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			o.logger.Warn("tool call has malformed arguments",
				"tool", name, "tool_call_id", tc.ID, "error", err)
			result = &tools.Status{
				Success: false,
				Message: "Invalid arguments",
				Error:   tools.CodeValidation + ": arguments were not valid JSON",
			}
		}
	}
	if result == nil {
		// The authenticated user is injected here; anything the model
		// put in the argument map cannot redirect the call.
		result = o.registry.Invoke(ctx, userID, name, args)
	}

	encoded := tools.Encode(result)
	if _, err := o.convs.AppendTurn(ctx, userID, conversationID, conversation.Turn{
		Role:       conversation.RoleTool,
		Content:    encoded,
		ToolCallID: tc.ID,
		ToolName:   name,
	}); err != nil {
		o.logger.Error("persist tool turn", "conversation_id", conversationID, "error", err)
	}

	o.publish(events.KindToolDone, map[string]any{
		"conversation_id": conversationID, "user_id": userID, "tool": name, "ok": result.OK(),
	})

	return ToolCallRecord{
		ToolCallID: tc.ID,
		ToolName:   name,
		Arguments:  args,
		Result:     json.RawMessage(encoded),
		Success:    result.OK(),
	}
}

func (o *Orchestrator) appendAssistantText(ctx context.Context, userID, conversationID, text string) {
	if _, err := o.convs.AppendTurn(ctx, userID, conversationID, conversation.Turn{
		Role:    conversation.RoleAssistant,
		Content: text,
	}); err != nil {
		o.logger.Error("persist assistant turn", "conversation_id", conversationID, "error", err)
	}
}

func (o *Orchestrator) publish(kind string, data map[string]any) {
	o.bus.Publish(events.Event{
		Timestamp: time.Now().UTC(),
		Source:    events.SourceAgent,
		Kind:      kind,
		Data:      data,
	})
}

// deriveTitle makes a conversation title from the first message.
func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	runes := []rune(title)
	if len(runes) > 64 {
		title = string(runes[:64])
	}
	return title
}
