package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taskhub/taskhub/internal/domain/job"
	"github.com/taskhub/taskhub/internal/domain/task"
)

// ReminderLeadTime is how far ahead of the due date an assignee is nudged.
const ReminderLeadTime = 24 * time.Hour

// DueReminderPayload is kept minimal and ID-based; the worker reloads the
// task and drops the reminder if the task changed underneath it.
type DueReminderPayload struct {
	TaskID     string    `json:"taskId"`
	AssignedTo string    `json:"assignedTo"`
	DueDate    time.Time `json:"dueDate"`
}

// NewDueReminder builds the job row scheduled for ReminderLeadTime before
// the task's due date. job.New clamps run_at to now for near-due tasks.
func NewDueReminder(t task.Task) (job.CreateRequest, error) {
	p := DueReminderPayload{
		TaskID:     t.ID,
		AssignedTo: t.AssignedTo.ID,
		DueDate:    t.DueDate,
	}

	b, err := json.Marshal(p)

	if err != nil {
		return job.CreateRequest{}, fmt.Errorf("%w: %v", job.ErrInvalidPayload, err)
	}

	return job.CreateRequest{
		Type:    job.TypeDueReminder,
		Payload: b,
		RunAt:   t.DueDate.Add(-ReminderLeadTime),
	}, nil
}

// DecodeDueReminder unmarshals and validates a claimed reminder job.
func DecodeDueReminder(j job.Job) (DueReminderPayload, error) {
	if j.Type != job.TypeDueReminder {
		return DueReminderPayload{}, job.ErrInvalidType
	}

	if len(j.Payload) == 0 {
		return DueReminderPayload{}, job.ErrInvalidPayload
	}

	var p DueReminderPayload

	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return DueReminderPayload{}, fmt.Errorf("%w: %v", job.ErrInvalidPayload, err)
	}

	if strings.TrimSpace(p.TaskID) == "" || strings.TrimSpace(p.AssignedTo) == "" {
		return DueReminderPayload{}, job.ErrInvalidPayload
	}

	return p, nil
}
