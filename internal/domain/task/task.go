package task

import (
	"errors"
	"time"

	"github.com/taskhub/taskhub/internal/domain/user"
)

var (
	ErrNotFound  = errors.New("task not found")
	ErrForbidden = errors.New("not allowed to act on this task")
)

const (
	StatusOpen = "open"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"dueDate"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	AssignedTo  user.Ref  `json:"assignedTo"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VisibleTo reports whether id is allowed to read or update the task:
// the creator and the assignee, nobody else.
func (t Task) VisibleTo(id string) bool {
	return t.CreatedBy == id || t.AssignedTo.ID == id
}

// DeletableBy is stricter than VisibleTo: only the creator may delete.
func (t Task) DeletableBy(id string) bool {
	return t.CreatedBy == id
}

type CreateTaskRequest struct {
	Title       string    `json:"title" binding:"required,min=1,max=200"`
	Description string    `json:"description" binding:"required,max=2000"`
	DueDate     time.Time `json:"dueDate" binding:"required"`
	Priority    string    `json:"priority" binding:"required,oneof=low medium high"`
	AssignedTo  string    `json:"assignedTo" binding:"required,uuid"`
}

// UpdateTaskRequest is a presence-based patch: a nil field was not in the
// payload and is left untouched. An explicit empty string is a validation
// error, not a no-op.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" binding:"omitnil,min=1,max=200"`
	Description *string    `json:"description" binding:"omitnil,min=1,max=2000"`
	DueDate     *time.Time `json:"dueDate" binding:"omitnil"`
	Priority    *string    `json:"priority" binding:"omitnil,oneof=low medium high"`
	Status      *string    `json:"status" binding:"omitnil,min=1,max=50"`
	AssignedTo  *string    `json:"assignedTo" binding:"omitnil,uuid"`
}

// Empty reports whether the patch touches nothing.
func (r UpdateTaskRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.DueDate == nil &&
		r.Priority == nil && r.Status == nil && r.AssignedTo == nil
}

// ListFilter narrows the requester's visible tasks. When Search is set it
// replaces the status/priority/due-date criteria entirely; the visibility
// scope always applies.
type ListFilter struct {
	Status    *string
	Priority  *string
	DueBefore *time.Time // inclusive upper bound
	Search    *string
}
