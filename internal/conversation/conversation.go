// Package conversation persists chat history as append-only turns.
//
// A conversation and its turns are scoped to one user: a conversation
// owned by someone else is indistinguishable from one that does not
// exist. Assistant turns may carry a tool invocation log, stored as
// JSON in a shape independent of any completion provider's wire format.
package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversation does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("conversation not found")

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolInvocation records one tool call requested by an assistant turn.
// Arguments are stored decoded, not as the provider's argument string.
type ToolInvocation struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
}

// Conversation is one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one message in a conversation. ToolCalls is set only on
// assistant turns that requested tools; ToolCallID and ToolName are set
// only on tool-result turns.
type Turn struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []ToolInvocation `json:"tool_calls,omitempty"`
	ToolCallID     string           `json:"tool_call_id,omitempty"`
	ToolName       string           `json:"tool_name,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Store persists conversations and turns in the shared SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore creates a conversation store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create starts a new conversation for the user.
func (s *Store) Create(ctx context.Context, userID, title string) (*Conversation, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), userID, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return &Conversation{ID: id.String(), UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// Get returns the conversation if owned by userID.
func (s *Store) Get(ctx context.Context, userID, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = ? AND user_id = ?
	`, id, userID)

	var c Conversation
	var title sql.NullString
	err := row.Scan(&c.ID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.Title = title.String
	return &c, nil
}

// List returns the user's conversations, most recently active first.
func (s *Store) List(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var title sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Title = title.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a conversation and, via cascade, its turns.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendTurn appends a turn to the conversation and bumps its
// updated_at. The conversation must exist and belong to userID.
func (s *Store) AppendTurn(ctx context.Context, userID, conversationID string, turn Turn) (*Turn, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("turn id: %w", err)
	}
	turn.ID = id.String()
	turn.ConversationID = conversationID
	turn.CreatedAt = time.Now().UTC()

	var toolCallsJSON any
	if len(turn.ToolCalls) > 0 {
		b, err := json.Marshal(turn.ToolCalls)
		if err != nil {
			return nil, fmt.Errorf("encode tool calls: %w", err)
		}
		toolCallsJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, user_id, role, content, tool_calls, tool_call_id, tool_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, turn.ID, conversationID, userID, turn.Role, turn.Content, toolCallsJSON,
		nilIfEmpty(turn.ToolCallID), nilIfEmpty(turn.ToolName), turn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, turn.CreatedAt, conversationID)
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	return &turn, nil
}

// History returns the most recent limit turns in insertion order
// (oldest first). limit <= 0 means no limit.
func (s *Store) History(ctx context.Context, userID, conversationID string, limit int) ([]Turn, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, role, content, tool_calls, tool_call_id, tool_name, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var toolCalls, toolCallID, toolName sql.NullString
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &toolCalls, &toolCallID, &toolName, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls for turn %s: %w", t.ID, err)
			}
		}
		t.ToolCallID = toolCallID.String
		t.ToolName = toolName.String
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// Query returned newest first so LIMIT keeps the tail; reverse back
	// to insertion order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
