// Package tasks provides the ownership-scoped task store.
//
// Every query filters on the owning user's id. A task belonging to a
// different user is indistinguishable from a task that does not exist.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktalk/internal/events"
)

// ErrNotFound is returned when a task does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("task not found")

// Title and description limits, enforced before any row is touched.
const (
	MaxTitleLen       = 255
	MaxDescriptionLen = 2000
)

// Task is one todo item owned by a single user.
type Task struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"-"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows a List call. Nil Completed means no completion filter.
type Filter struct {
	Completed *bool
	Search    string
	Limit     int
	Offset    int
}

// Store persists tasks in the shared SQLite database. Mutations publish
// task events on the bus; a nil bus disables publishing.
type Store struct {
	db  *sql.DB
	bus *events.Bus
}

// NewStore creates a task store backed by db.
func NewStore(db *sql.DB, bus *events.Bus) *Store {
	return &Store{db: db, bus: bus}
}

// ValidateTitle trims the title and enforces the length limits.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title cannot be empty or whitespace only")
	}
	if len(title) > MaxTitleLen {
		return "", fmt.Errorf("title exceeds %d characters", MaxTitleLen)
	}
	return title, nil
}

// NormalizeDescription trims the description; an empty result normalizes
// to absent. Returns an error past the length limit.
func NormalizeDescription(desc string) (*string, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return nil, nil
	}
	if len(desc) > MaxDescriptionLen {
		return nil, fmt.Errorf("description exceeds %d characters", MaxDescriptionLen)
	}
	return &desc, nil
}

// Create inserts a new incomplete task. The title must already be
// validated by the caller; description may be nil.
func (s *Store) Create(ctx context.Context, userID, title string, description *string) (*Task, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (user_id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, FALSE, ?, ?)
	`, userID, title, nullable(description), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}

	task := &Task{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.bus.Publish(events.Event{
		Timestamp: now,
		Source:    events.SourceTasks,
		Kind:      events.KindTaskCreated,
		Data:      map[string]any{"task_id": id, "user_id": userID, "title": title},
	})
	return task, nil
}

// Get returns the task with the given id if owned by userID.
func (s *Store) Get(ctx context.Context, userID string, taskID int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, completed, created_at, updated_at
		FROM tasks
		WHERE id = ? AND user_id = ?
	`, taskID, userID)
	return scanTask(row)
}

// List returns tasks owned by userID matching the filter, newest created
// first, plus the total count matching the filter before pagination.
func (s *Store) List(ctx context.Context, userID string, f Filter) ([]Task, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := "user_id = ?"
	args := []any{userID}
	if f.Completed != nil {
		where += " AND completed = ?"
		args = append(args, *f.Completed)
	}
	if f.Search != "" {
		// LIKE is case-insensitive for ASCII in SQLite by default.
		where += " AND title LIKE ?"
		args = append(args, "%"+f.Search+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, completed, created_at, updated_at
		FROM tasks
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, total, nil
}

// Update applies a partial update. Nil fields are left untouched; a
// non-nil empty description clears it. The caller must pass at least one
// field and must have validated the title.
func (s *Store) Update(ctx context.Context, userID string, taskID int64, title, description *string) (*Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if title != nil {
		task.Title = *title
	}
	if description != nil {
		// Empty string clears the description.
		task.Description, err = NormalizeDescription(*description)
		if err != nil {
			return nil, err
		}
	}
	task.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, task.Title, nullable(task.Description), task.UpdatedAt, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	s.bus.Publish(events.Event{
		Timestamp: task.UpdatedAt,
		Source:    events.SourceTasks,
		Kind:      events.KindTaskUpdated,
		Data:      map[string]any{"task_id": taskID, "user_id": userID, "title": task.Title},
	})
	return task, nil
}

// SetCompleted flips the completion flag and touches updated_at.
func (s *Store) SetCompleted(ctx context.Context, userID string, taskID int64, completed bool) (*Task, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, completed, now, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{
		Timestamp: now,
		Source:    events.SourceTasks,
		Kind:      events.KindTaskCompleted,
		Data:      map[string]any{"task_id": taskID, "user_id": userID, "completed": completed},
	})
	return task, nil
}

// Delete permanently removes the task. Irreversible. Returns the deleted
// task's id and title for confirmation messages.
func (s *Store) Delete(ctx context.Context, userID string, taskID int64) (*Task, error) {
	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = ? AND user_id = ?
	`, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	s.bus.Publish(events.Event{
		Timestamp: time.Now().UTC(),
		Source:    events.SourceTasks,
		Kind:      events.KindTaskDeleted,
		Data:      map[string]any{"task_id": taskID, "user_id": userID, "title": task.Title},
	})
	return task, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var t Task
	var desc sql.NullString
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	return &t, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
