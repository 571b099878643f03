package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/apperr"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type AdminUserStore interface {
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdateAccount(ctx context.Context, id, name, email, role string) error
	Delete(ctx context.Context, id string) error
}

type AdminHandler struct {
	users   AdminUserStore
	timeout time.Duration
}

func NewAdminHandler(users AdminUserStore) *AdminHandler {
	return &AdminHandler{users: users, timeout: 3 * time.Second}
}

func notFoundByID(id string, err error) *apperr.Error {
	return apperr.Wrap(apperr.KindNotFound, err, "User not found with this id : "+id)
}

// ListUsers: GET /admin/users
func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	users, err := h.users.List(cctx)
	if err != nil {
		fail(ctx, err)
		return
	}
	if users == nil {
		users = []user.User{}
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// GetUser: GET /admin/user/:id
func (h *AdminHandler) GetUser(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)
	if errors.Is(err, user.ErrNotFound) {
		fail(ctx, notFoundByID(id, err))
		return
	}
	if err != nil {
		fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// UpdateUser: PUT /admin/user/:id. Name, email and role only.
func (h *AdminHandler) UpdateUser(ctx *gin.Context) {
	id := ctx.Param("id")

	var req user.AdminUpdateRequest
	if !bindJSON(ctx, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if !validateRequest(ctx, req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.users.UpdateAccount(cctx, id, req.Name, req.Email, req.Role); err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			fail(ctx, apperr.Wrap(apperr.KindValidation, err, MsgDuplicateEmail))
		case errors.Is(err, user.ErrNotFound):
			fail(ctx, notFoundByID(id, err))
		default:
			fail(ctx, err)
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteUser: DELETE /admin/user/:id. The record is removed outright.
func (h *AdminHandler) DeleteUser(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	if err := h.users.Delete(cctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			fail(ctx, notFoundByID(id, err))
			return
		}
		fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
}
