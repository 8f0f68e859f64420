package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/job"
	"github.com/taskhub/taskhub/internal/domain/task"
	"github.com/taskhub/taskhub/internal/domain/user"
	"github.com/taskhub/taskhub/internal/http/middlewares"
	"github.com/taskhub/taskhub/internal/jobs"
)

type TasksRepository interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	ListForUser(ctx context.Context, userID string, f task.ListFilter) ([]task.Task, error)
	GetByID(ctx context.Context, id string) (task.Task, error)
	Update(ctx context.Context, id string, req task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, id string) error
}

type AssigneeResolver interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type JobsCreator interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type ListCache interface {
	GetList(ctx context.Context, userID, filterKey string) ([]task.Task, bool)
	SetList(ctx context.Context, userID, filterKey string, items []task.Task)
	Invalidate(ctx context.Context, userIDs ...string)
}

type TasksHandler struct {
	repo  TasksRepository
	users AssigneeResolver
	jobs  JobsCreator // nil disables due reminders
	cache ListCache   // nil disables list caching
	log   *slog.Logger
}

func NewTasksHandler(repo TasksRepository, users AssigneeResolver, jobsRepo JobsCreator, cache ListCache, log *slog.Logger) *TasksHandler {
	if log == nil {
		log = slog.Default()
	}

	return &TasksHandler{
		repo:  repo,
		users: users,
		jobs:  jobsRepo,
		cache: cache,
		log:   log,
	}
}

func (h *TasksHandler) CreateTask(ctx *gin.Context) {
	var req task.CreateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	assignee, err := h.users.GetByID(cctx, req.AssignedTo)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "Assigned user not found")
			return
		}
		RespondInternal(ctx, "Could not create task")
		return
	}

	created, err := h.repo.Create(cctx, task.NewFromCreateRequest(req, userID, assignee.Ref()))

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "Assigned user not found")
			return
		}
		RespondInternal(ctx, "Could not create task")
		return
	}

	h.scheduleReminder(cctx, created)
	h.invalidate(cctx, created.CreatedBy, created.AssignedTo.ID)

	ctx.JSON(http.StatusCreated, created)
}

func (h *TasksHandler) ListTasks(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	filter, ok := listFilterFromQuery(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	fkey := filterKey(filter)

	if h.cache != nil {
		if items, hit := h.cache.GetList(cctx, userID, fkey); hit {
			RespondJSONWithETag(ctx, http.StatusOK, gin.H{
				"items": items,
				"count": len(items),
			})
			return
		}
	}

	items, err := h.repo.ListForUser(cctx, userID, filter)

	if err != nil {
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	if h.cache != nil {
		h.cache.SetList(cctx, userID, fkey, items)
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *TasksHandler) GetTaskByID(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	t, err := h.repo.GetByID(cctx, ctx.Param("id"))

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx, "Could not fetch task")
		return
	}

	// scoped-out reads the same as missing
	if !t.VisibleTo(userID) {
		RespondNotFound(ctx, "Task not found")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

func (h *TasksHandler) UpdateTask(ctx *gin.Context) {
	var req task.UpdateTaskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	id := ctx.Param("id")

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx, "Could not update task")
		return
	}

	if !existing.VisibleTo(userID) {
		RespondForbidden(ctx, "Only the creator or assignee can update this task")
		return
	}

	if req.Empty() {
		ctx.JSON(http.StatusOK, existing)
		return
	}

	if req.AssignedTo != nil {
		_, err := h.users.GetByID(cctx, *req.AssignedTo)

		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				RespondNotFound(ctx, "Assigned user not found")
				return
			}
			RespondInternal(ctx, "Could not update task")
			return
		}
	}

	updated, err := h.repo.Update(cctx, id, req)

	if err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			RespondNotFound(ctx, "Task not found")
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "Assigned user not found")
		default:
			RespondInternal(ctx, "Could not update task")
		}
		return
	}

	// a moved deadline or a new assignee needs a fresh reminder
	if !updated.DueDate.Equal(existing.DueDate) || updated.AssignedTo.ID != existing.AssignedTo.ID {
		h.scheduleReminder(cctx, updated)
	}

	h.invalidate(cctx, updated.CreatedBy, existing.AssignedTo.ID, updated.AssignedTo.ID)

	ctx.JSON(http.StatusOK, updated)
}

func (h *TasksHandler) DeleteTask(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	id := ctx.Param("id")

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx, "Could not delete task")
		return
	}

	if !existing.DeletableBy(userID) {
		RespondForbidden(ctx, "Only the creator can delete this task")
		return
	}

	err = h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(ctx, "Task not found")
			return
		}
		RespondInternal(ctx, "Could not delete task")
		return
	}

	h.invalidate(cctx, existing.CreatedBy, existing.AssignedTo.ID)

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// scheduleReminder enqueues a due reminder; failures are logged and never
// fail the request.
func (h *TasksHandler) scheduleReminder(ctx context.Context, t task.Task) {
	if h.jobs == nil {
		return
	}

	req, err := jobs.NewDueReminder(t)

	if err == nil {
		_, err = h.jobs.Create(ctx, req)
	}

	if err != nil {
		h.log.ErrorContext(ctx, "enqueue due reminder", "task_id", t.ID, "err", err)
	}
}

func (h *TasksHandler) invalidate(ctx context.Context, userIDs ...string) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, userIDs...)
	}
}

// listFilterFromQuery parses the supported query params, answering 400 on
// a malformed date. Returns ok=false when the request was already
// answered.
func listFilterFromQuery(ctx *gin.Context) (task.ListFilter, bool) {
	var f task.ListFilter

	if v := ctx.Query("status"); v != "" {
		f.Status = &v
	}

	if v := ctx.Query("priority"); v != "" {
		f.Priority = &v
	}

	if v := ctx.Query("dueDate"); v != "" {
		t, err := parseDate(v)

		if err != nil {
			RespondBadRequest(ctx, "invalid_due_date", "dueDate must be RFC3339 or YYYY-MM-DD", nil)
			return task.ListFilter{}, false
		}
		f.DueBefore = &t
	}

	if v := ctx.Query("search"); v != "" {
		f.Search = &v
	}

	return f, true
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}

	return time.Parse("2006-01-02", v)
}

// filterKey canonicalizes a filter for cache lookups.
func filterKey(f task.ListFilter) string {
	s := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	due := ""
	if f.DueBefore != nil {
		due = f.DueBefore.UTC().Format(time.RFC3339)
	}

	return fmt.Sprintf("s=%s&p=%s&d=%s&q=%s", s(f.Status), s(f.Priority), due, s(f.Search))
}
