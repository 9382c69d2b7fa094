package tasks

import (
	"fmt"
	"time"

	"github.com/taskhive/taskhive/internal/shared"
)

// ErrNotFound indicates the requested task does not exist. It wraps the
// shared sentinel so the HTTP layer maps it without knowing this package.
var ErrNotFound = fmt.Errorf("tasks: %w", shared.ErrNotFound)

// Status enumerates task lifecycle states.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// Task models a single work item.
type Task struct {
	ID             int64
	OrganizationID int64
	OwnerID        *int64
	AssigneeID     *int64
	DepartmentID   *int64
	Title          string
	Description    string
	Status         Status
	DueAt          *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
