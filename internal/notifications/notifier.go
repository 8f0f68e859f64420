package notifications

import (
	"context"
	"time"
)

type DueReminderInput struct {
	Email   string
	Name    string
	TaskID  string
	Title   string
	DueDate time.Time
}

type Notifier interface {
	SendDueReminder(ctx context.Context, input DueReminderInput) error
}
