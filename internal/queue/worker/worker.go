package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taskhub/taskhub/internal/domain/job"
	"github.com/taskhub/taskhub/internal/domain/task"
	"github.com/taskhub/taskhub/internal/jobs"
	"github.com/taskhub/taskhub/internal/notifications"
	"github.com/taskhub/taskhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Retry(ctx context.Context, id string, errMsg string, runAt time.Time) error
}

type TasksReader interface {
	GetByID(ctx context.Context, id string) (task.Task, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	tasks    TasksReader
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger
}

func New(cfg Config, repo JobsRepository, tasks TasksReader, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		tasks:    tasks,
		notifier: notifier,
		prom:     prom,
		log:      log,
	}
}

// Run polls for runnable jobs until the context is cancelled. A non-empty
// poll immediately polls again so a backlog drains at full speed.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil

		case <-ticker.C:
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					w.log.Error("process job", "err", err)
				}

				if !processed || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessOne claims and runs at most one job. The bool reports whether a
// job was claimed at all.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)

	if err != nil {
		w.handleFailure(ctx, j, err)
		w.observeResult(j, "retry", start)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observeResult(j, "failed", start)
		return true, err
	}

	w.observeResult(j, "done", start)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	switch j.Type {
	case job.TypeDueReminder:
		return w.runDueReminder(ctx, j)
	default:
		return job.ErrInvalidType
	}
}

func (w *Worker) runDueReminder(ctx context.Context, j job.Job) error {
	p, err := jobs.DecodeDueReminder(j)

	if err != nil {
		return err
	}

	t, err := w.tasks.GetByID(ctx, p.TaskID)

	if err != nil {
		// task deleted since scheduling: nothing to remind about
		if errors.Is(err, task.ErrNotFound) {
			w.log.Info("reminder skipped, task gone", "job_id", j.ID, "task_id", p.TaskID)
			return nil
		}
		return err
	}

	// stale reminder: the task was reassigned or rescheduled after this
	// job was enqueued; the mutation enqueued a fresh one
	if t.AssignedTo.ID != p.AssignedTo || !t.DueDate.Equal(p.DueDate) {
		w.log.Info("reminder skipped, task changed", "job_id", j.ID, "task_id", p.TaskID)
		return nil
	}

	return w.notifier.SendDueReminder(ctx, notifications.DueReminderInput{
		Email:   t.AssignedTo.Email,
		Name:    t.AssignedTo.Name,
		TaskID:  t.ID,
		Title:   t.Title,
		DueDate: t.DueDate,
	})
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) {
	// attempts was already bumped by the claim
	if j.Attempts >= j.MaxAttempts {
		w.log.Error("job failed permanently", "job_id", j.ID, "type", j.Type, "attempts", j.Attempts, "err", cause)

		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			w.log.Error("mark failed", "job_id", j.ID, "err", err)
		}
		return
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	w.log.Warn("job failed, retrying", "job_id", j.ID, "type", j.Type, "attempts", j.Attempts, "run_at", runAt, "err", cause)

	if err := w.repo.Retry(ctx, j.ID, cause.Error(), runAt); err != nil {
		w.log.Error("reschedule", "job_id", j.ID, "err", err)
	}
}

func (w *Worker) observeResult(j job.Job, result string, start time.Time) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(string(j.Type), result).Inc()
	w.prom.JobDuration.WithLabelValues(string(j.Type), result).Observe(time.Since(start).Seconds())
}
