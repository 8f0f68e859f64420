package notifications

import (
	"context"
	"log/slog"
	"time"
)

// LogNotifier is the delivery backend until a real mail provider is wired
// in. It logs the reminder and succeeds.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendDueReminder(ctx context.Context, in DueReminderInput) error {
	n.log.InfoContext(ctx, "notification.due_reminder",
		"email", in.Email,
		"name", in.Name,
		"task_id", in.TaskID,
		"title", in.Title,
		"due_date", in.DueDate.Format(time.RFC3339),
	)
	return nil
}
