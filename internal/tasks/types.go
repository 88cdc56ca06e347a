package tasks

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

type Task struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Prompt    string     `json:"prompt"`
	Title     string     `json:"title"`
	Status    Status     `json:"status"`
	Result    string     `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (t *Task) Terminal() bool {
	return t.Status.Terminal()
}

func (t *Task) Clone() Task {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.EndedAt != nil {
		ended := *t.EndedAt
		c.EndedAt = &ended
	}
	return c
}

type CreateRequest struct {
	UserID string `json:"user_id"`
	Prompt string `json:"prompt"`
	Title  string `json:"title,omitempty"`
}
