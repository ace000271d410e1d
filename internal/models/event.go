package models

import "time"

// Event types recorded in the activity log.
const (
	EventUserRegistered = "user.registered"
	EventTaskCreated    = "task.created"
	EventTaskUpdated    = "task.updated"
)

// Event represents a loggable action in a user's activity feed.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "task.created"
	Level     string    `json:"level"` // e.g., "info", "warn"
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	TaskID    *string   `json:"taskId,omitempty"` // Nullable for account-level events
	CreatedAt time.Time `json:"createdAt"`
}
