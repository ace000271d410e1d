package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/taskboard-be/internal/database"
	"github.com/isdelr/taskboard-be/internal/models"
	"github.com/isdelr/taskboard-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// maxUpdateAttempts bounds how often UpdateTask re-runs after losing a conditional write.
const maxUpdateAttempts = 3

var errStaleTask = errors.New("stale task version")

// Broadcaster pushes a message to every live connection of a user.
type Broadcaster interface {
	BroadcastTo(userID string, message []byte)
}

// TaskServiceProvider defines the interface for task services.
type TaskServiceProvider interface {
	ListTasks(ctx context.Context, userID string) ([]models.Task, error)
	CreateTask(ctx context.Context, userID, title string) (models.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, patch models.TaskPatch) (UpdateResult, error)
}

// UpdateResult is the outcome of UpdateTask. AlreadyCurrent marks the
// no-write path taken when the requested status equals the stored one.
type UpdateResult struct {
	Task           models.Task
	AlreadyCurrent bool
}

// TaskService provides business logic for task management.
type TaskService struct {
	db           *database.DB
	eventService EventServiceProvider
	hub          Broadcaster
	now          func() time.Time

	// beforeWrite runs between the policy checks and the conditional write.
	beforeWrite func(current models.Task)
}

// NewTaskService creates a new TaskService. eventService and hub may be nil.
func NewTaskService(db *database.DB, eventService EventServiceProvider, hub Broadcaster) *TaskService {
	return &TaskService{
		db:           db,
		eventService: eventService,
		hub:          hub,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

const taskColumns = "id, user_id, title, status, version, created_at, updated_at"

// ListTasks returns every task owned by userID, oldest first.
func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind("SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY created_at ASC, id ASC"),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// GetTaskByID retrieves a single task regardless of owner.
func (s *TaskService) GetTaskByID(ctx context.Context, taskID string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// CreateTask creates a task owned by userID. New tasks always start as Todo.
func (s *TaskService) CreateTask(ctx context.Context, userID, title string) (models.Task, error) {
	now := s.now()
	task := models.Task{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    models.StatusTodo,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		task.ID, task.UserID, task.Title, string(task.Status), task.Version,
		database.ToMillis(task.CreatedAt), database.ToMillis(task.UpdatedAt),
	)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}

	s.publish(ctx, models.EventTaskCreated, task, fmt.Sprintf("Task %q created", task.Title))
	return task, nil
}

// UpdateTask applies a partial update on behalf of userID. Checks run in a fixed
// order: existence, ownership, status allow-list, status already current.
// The write is conditional on the version read during the checks; when another
// writer wins, the whole sequence runs again against fresh state.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, patch models.TaskPatch) (UpdateResult, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		current, err := s.GetTaskByID(ctx, taskID)
		if err != nil {
			return UpdateResult{}, err
		}
		if current.UserID != userID {
			return UpdateResult{}, ErrForbidden
		}
		if patch.Status != nil && !patch.Status.Valid() {
			return UpdateResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.Status)
		}
		if patch.Status != nil && *patch.Status == current.Status {
			return UpdateResult{Task: current, AlreadyCurrent: true}, nil
		}
		if patch.Empty() {
			return UpdateResult{Task: current}, nil
		}

		next := current
		if patch.Title != nil {
			next.Title = *patch.Title
		}
		if patch.Status != nil {
			next.Status = *patch.Status
		}
		next.UpdatedAt = s.now()
		next.Version = current.Version + 1

		if s.beforeWrite != nil {
			s.beforeWrite(current)
		}
		err = s.writeIfVersion(ctx, next, current.Version)
		if errors.Is(err, errStaleTask) {
			log.Debug().Str("task_id", taskID).Int("attempt", attempt).Msg("Task changed underneath update, retrying")
			continue
		}
		if err != nil {
			return UpdateResult{}, err
		}

		s.publish(ctx, models.EventTaskUpdated, next, describeUpdate(current, next))
		return UpdateResult{Task: next}, nil
	}
	return UpdateResult{}, ErrConflict
}

// writeIfVersion persists task only if the stored version still equals expected.
func (s *TaskService) writeIfVersion(ctx context.Context, task models.Task, expected int64) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE tasks SET title = ?, status = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?"),
		task.Title, string(task.Status), task.Version, database.ToMillis(task.UpdatedAt), task.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n == 0 {
		return errStaleTask
	}
	return nil
}

func (s *TaskService) publish(ctx context.Context, eventType string, task models.Task, message string) {
	if s.eventService != nil {
		taskID := task.ID
		if err := s.eventService.CreateEvent(ctx, eventType, "info", message, task.UserID, &taskID); err != nil {
			log.Warn().Err(err).Str("task_id", task.ID).Str("type", eventType).Msg("Failed to record task event")
		}
	}
	if s.hub != nil {
		msg, err := websocket.NewTaskMessage(eventType, task)
		if err != nil {
			log.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to encode task message")
			return
		}
		s.hub.BroadcastTo(task.UserID, msg)
	}
}

func describeUpdate(before, after models.Task) string {
	switch {
	case before.Status != after.Status && before.Title != after.Title:
		return fmt.Sprintf("Task %q renamed to %q and moved to %s", before.Title, after.Title, after.Status)
	case before.Status != after.Status:
		return fmt.Sprintf("Task %q moved from %s to %s", after.Title, before.Status, after.Status)
	default:
		return fmt.Sprintf("Task %q renamed to %q", before.Title, after.Title)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	var status string
	var createdAt, updatedAt int64
	if err := row.Scan(&task.ID, &task.UserID, &task.Title, &status, &task.Version, &createdAt, &updatedAt); err != nil {
		return models.Task{}, err
	}
	task.Status = models.TaskStatus(status)
	task.CreatedAt = database.FromMillis(createdAt)
	task.UpdatedAt = database.FromMillis(updatedAt)
	return task, nil
}
