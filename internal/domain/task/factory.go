package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/taskhub/taskhub/internal/domain/user"
)

func NewFromCreateRequest(req CreateTaskRequest, createdBy string, assignee user.Ref) Task {
	now := time.Now().UTC()

	return Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      StatusOpen,
		AssignedTo:  assignee,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
