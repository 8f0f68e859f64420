package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/domain/job"
	"github.com/taskhub/taskhub/internal/observability"
)

type JobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *JobsRepo {
	return &JobsRepo{pool: pool, prom: prom}
}

func (r *JobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *JobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j, err := job.New(req)

	if err != nil {
		return job.Job{}, err
	}

	err = r.observe("jobs.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO jobs (id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			j.ID, string(j.Type), j.Payload, string(j.Status), j.Attempts, j.MaxAttempts,
			j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.CreatedAt, j.UpdatedAt,
		)
		return e
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

// ClaimNext atomically moves the oldest runnable job to processing for
// this worker. SKIP LOCKED keeps concurrent workers from double-claiming.
func (r *JobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job

	err := r.observe("jobs.claim_next", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE jobs
			SET status = 'processing',
			    locked_at = NOW(),
			    locked_by = $1,
			    attempts = attempts + 1,
			    updated_at = NOW()
			WHERE id = (
				SELECT id FROM jobs
				WHERE status = 'pending' AND run_at <= NOW()
				ORDER BY run_at ASC, created_at ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, type, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, created_at, updated_at
		`, workerID).Scan(
			&j.ID, &j.Type, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LockedAt, &j.LockedBy, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrJobNotFound
		}
		return job.Job{}, err
	}

	return j, nil
}

func (r *JobsRepo) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx, "jobs.mark_done", `
		UPDATE jobs
		SET status = 'succeeded',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *JobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, "jobs.mark_failed", `
		UPDATE jobs
		SET status = 'failed',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
}

// Retry releases the job back to pending with a new run_at.
func (r *JobsRepo) Retry(ctx context.Context, id string, errMsg string, runAt time.Time) error {
	return r.exec(ctx, "jobs.retry", `
		UPDATE jobs
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    run_at = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg, runAt)
}

func (r *JobsRepo) exec(ctx context.Context, op, query string, args ...interface{}) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var e error
		tag, e = r.pool.Exec(ctx, query, args...)
		return e
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}

	return nil
}
