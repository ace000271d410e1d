package models

import "time"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "Todo"
	StatusInProgress TaskStatus = "In Progress"
	StatusDone       TaskStatus = "Done"
)

// Valid reports whether s is one of the recognized statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	UserID    string     `json:"userId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// Version guards conditional updates; bumped on every write.
	Version int64 `json:"-"`
}

// TaskPatch carries the fields of a partial update. Nil means "leave unchanged".
type TaskPatch struct {
	Title  *string     `json:"title"`
	Status *TaskStatus `json:"status"`
}

// Empty reports whether the patch supplies no fields at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Status == nil
}
