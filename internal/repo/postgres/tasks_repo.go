package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskhub/taskhub/internal/domain/task"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/observability"
)

// taskColumns is every SELECT over tasks joined with the assignee row.
const taskColumns = `
	t.id, t.title, t.description, t.due_date, t.priority, t.status,
	t.created_by, t.created_at, t.updated_at,
	u.id, u.name, u.email`

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTask(row pgx.Row) (task.Task, error) {
	var t task.Task

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		&t.AssignedTo.ID, &t.AssignedTo.Name, &t.AssignedTo.Email,
	)

	return t, err
}

// Create persists the task built by the handler. The assignee is checked
// by the handler beforehand; the FK keeps a race with a concurrent user
// deletion from producing an orphan.
func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.observe("tasks.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO tasks (id, title, description, due_date, priority, status, assigned_to, created_by, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			t.ID, t.Title, t.Description, t.DueDate, t.Priority, t.Status,
			t.AssignedTo.ID, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return task.Task{}, user.ErrNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

// ListForUser returns the tasks visible to userID: created by them or
// assigned to them. When the filter carries a search term it replaces the
// status/priority/due-date criteria; the visibility scope always applies.
func (r *TasksRepo) ListForUser(ctx context.Context, userID string, f task.ListFilter) (out []task.Task, err error) {
	query := `SELECT` + taskColumns + `
	FROM tasks t
	JOIN users u ON u.id = t.assigned_to
	WHERE (t.created_by = $1 OR t.assigned_to = $1)`

	args := []interface{}{userID}
	pos := 2

	if f.Search != nil {
		query += fmt.Sprintf(" AND (t.title ILIKE $%d OR t.description ILIKE $%d)", pos, pos)
		args = append(args, "%"+*f.Search+"%")
		pos++
	} else {
		var conds []string

		if f.Status != nil {
			conds = append(conds, fmt.Sprintf("t.status = $%d", pos))
			args = append(args, *f.Status)
			pos++
		}

		if f.Priority != nil {
			conds = append(conds, fmt.Sprintf("t.priority = $%d", pos))
			args = append(args, *f.Priority)
			pos++
		}

		// inclusive upper bound
		if f.DueBefore != nil {
			conds = append(conds, fmt.Sprintf("t.due_date <= $%d", pos))
			args = append(args, *f.DueBefore)
			pos++
		}

		if len(conds) > 0 {
			query += " AND " + strings.Join(conds, " AND ")
		}
	}

	query += " ORDER BY t.created_at ASC, t.id ASC"

	var rows pgx.Rows

	err = r.observe("tasks.list_for_user", func() error {
		rows, err = r.pool.Query(ctx, query, args...)
		return err
	})

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out = make([]task.Task, 0)

	for rows.Next() {
		t, e := scanTask(rows)

		if e != nil {
			return nil, e
		}
		out = append(out, t)
	}

	if e := rows.Err(); e != nil {
		return nil, e
	}

	return out, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	var err error

	err = r.observe("tasks.get_by_id", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx,
			`SELECT`+taskColumns+`
			 FROM tasks t
			 JOIN users u ON u.id = t.assigned_to
			 WHERE t.id = $1`,
			id,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

// Update applies only the fields present in the patch, as a single
// statement; the store's row-level atomicity is the only locking used.
func (r *TasksRepo) Update(ctx context.Context, id string, req task.UpdateTaskRequest) (task.Task, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	pos := 2

	set := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, pos))
		args = append(args, val)
		pos++
	}

	if req.Title != nil {
		set("title", *req.Title)
	}
	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.DueDate != nil {
		set("due_date", *req.DueDate)
	}
	if req.Priority != nil {
		set("priority", *req.Priority)
	}
	if req.Status != nil {
		set("status", *req.Status)
	}
	if req.AssignedTo != nil {
		set("assigned_to", *req.AssignedTo)
	}

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = $1"

	var tag pgconn.CommandTag

	err := r.observe("tasks.update", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, query, args...)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return task.Task{}, user.ErrNotFound
		}
		return task.Task{}, err
	}

	if tag.RowsAffected() == 0 {
		return task.Task{}, task.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *TasksRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag

	err := r.observe("tasks.delete", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		return e
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}

	return nil
}
