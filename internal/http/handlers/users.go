package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/domain/user"
)

type UserLister interface {
	List(ctx context.Context) ([]user.User, error)
}

type UsersHandler struct {
	repo UserLister
}

func NewUsersHandler(repo UserLister) *UsersHandler {
	return &UsersHandler{repo: repo}
}

// ListUsers returns the id/name/email of every user so clients can pick
// an assignee.
func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	items := make([]user.Ref, 0, len(users))

	for _, u := range users {
		items = append(items, u.Ref())
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// ListUsersAdmin returns full user rows (minus hashes) including roles
// and timestamps. Admin only, enforced by the router.
func (h *UsersHandler) ListUsersAdmin(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.repo.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": users,
		"count": len(users),
	})
}
