package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/repository"
)

// UserHandler serves the member directory used to address messages.
type UserHandler struct {
	Users *repository.UserRepo
}

func NewUserHandler(u *repository.UserRepo) *UserHandler {
	return &UserHandler{Users: u}
}

// Get returns one user with their role set.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return fail(c, err, "get-user", id)
	}
	return c.JSON(http.StatusOK, u)
}

// List returns every user, for the recipient picker.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, err, "list-users", 0)
	}
	return c.JSON(http.StatusOK, users)
}

// ListByRole returns the active holders of one role, such as every
// member of the alarm division.
func (h *UserHandler) ListByRole(c echo.Context) error {
	role := c.Param("role")
	if !authz.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.ListByRole(ctx, role)
	if err != nil {
		return fail(c, err, "list-users-by-role", 0)
	}
	return c.JSON(http.StatusOK, users)
}
