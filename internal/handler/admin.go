package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/config"
	"github.com/holyokefd/portal/internal/repository"
	"github.com/holyokefd/portal/internal/utils"
)

// AdminHandler serves user management and the password-reset queue.
// Every endpoint takes the acting admin's id explicitly and the
// authorization rules live in the repositories where they also guard
// non-HTTP callers; the rank checks done here cover the read-only
// listings the repositories don't gate themselves.
type AdminHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Resets *repository.ResetRepo
}

func NewAdminHandler(cfg config.Config, u *repository.UserRepo, r *repository.ResetRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Users: u, Resets: r}
}

// ----- DTOs -----

type requesterReq struct {
	RequestingUserID uint64 `json:"requestingUserId"`
}
type approveUserReq struct {
	AssignedRole     string `json:"assignedRole"`
	RequestingUserID uint64 `json:"requestingUserId"`
}
type createUserReq struct {
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Username         string   `json:"username"`
	Password         string   `json:"password"`
	Roles            []string `json:"roles"`
	RequestingUserID uint64   `json:"requestingUserId"`
}
type updateUserReq struct {
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Username         string   `json:"username"`
	Roles            []string `json:"roles"`
	RequestingUserID uint64   `json:"requestingUserId"`
}
type adminResetReq struct {
	NewPassword      string `json:"newPassword"`
	RequestingUserID uint64 `json:"requestingUserId"`
}

// requireRank verifies the requester matches the bearer token's
// subject and that their role set clears the threshold. admin and
// super_user outrank chief, so one rank check covers all approver
// classes.
func (h *AdminHandler) requireRank(ctx context.Context, c echo.Context, requesterID uint64, threshold string) error {
	if !actorAllowed(c, requesterID) {
		return repository.ErrForbidden
	}
	by, err := h.Users.GetByID(ctx, requesterID)
	if err != nil {
		if err == repository.ErrNotFound {
			return repository.ErrForbidden
		}
		return err
	}
	if !authz.AnyAtLeast(by.Roles, threshold) {
		return repository.ErrForbidden
	}
	return nil
}

// ListUsers returns every account for the management screen.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	requesterID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.requireRank(ctx, c, requesterID, authz.RoleAdmin); err != nil {
		return fail(c, err, "admin-list-users", requesterID)
	}
	users, err := h.Users.List(ctx)
	if err != nil {
		return fail(c, err, "admin-list-users", requesterID)
	}
	return c.JSON(http.StatusOK, users)
}

// ListPendingUsers returns registrations awaiting approval. Chiefs
// and above can work this queue, not only admins.
func (h *AdminHandler) ListPendingUsers(c echo.Context) error {
	requesterID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.requireRank(ctx, c, requesterID, authz.RoleChief); err != nil {
		return fail(c, err, "list-pending-users", requesterID)
	}
	users, err := h.Users.ListPending(ctx)
	if err != nil {
		return fail(c, err, "list-pending-users", requesterID)
	}
	return c.JSON(http.StatusOK, users)
}

// ApproveUser activates a pending registration with its initial role.
func (h *AdminHandler) ApproveUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req approveUserReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "assignedRole and requestingUserId required"})
	}
	if !actorAllowed(c, req.RequestingUserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Approve(ctx, id, req.AssignedRole, req.RequestingUserID); err != nil {
		return fail(c, err, "approve-user", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RejectUser removes a pending registration outright.
func (h *AdminHandler) RejectUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req requesterReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "requestingUserId required"})
	}
	if !actorAllowed(c, req.RequestingUserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Reject(ctx, id, req.RequestingUserID); err != nil {
		return fail(c, err, "reject-user", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// CreateUser inserts an active account with a caller-supplied role
// set.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !actorAllowed(c, req.RequestingUserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Users.Create(ctx, req.Email, req.Name, req.Username, req.Password,
		req.Roles, req.RequestingUserID, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err, "admin-create-user", req.RequestingUserID)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "id": id})
}

// UpdateUser edits identity fields and replaces the role set.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !actorAllowed(c, req.RequestingUserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Update(ctx, id, req.Email, req.Name, req.Username, req.Roles, req.RequestingUserID); err != nil {
		return fail(c, err, "admin-update-user", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// DeleteUser removes an account and everything referencing it.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req requesterReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "requestingUserId required"})
	}
	if !actorAllowed(c, req.RequestingUserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, id, req.RequestingUserID); err != nil {
		return fail(c, err, "admin-delete-user", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ResetUserPassword sets a new password on the target account
// directly, outside the request/approve workflow.
func (h *AdminHandler) ResetUserPassword(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req adminResetReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "newPassword and requestingUserId required"})
	}
	if !actorAllowed(c, req.RequestingUserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.ResetPassword(ctx, id, req.NewPassword, req.RequestingUserID, h.Cfg.BcryptCost); err != nil {
		return fail(c, err, "admin-reset-password", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ListResetRequests returns the pending reset queue, oldest first.
func (h *AdminHandler) ListResetRequests(c echo.Context) error {
	requesterID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.requireRank(ctx, c, requesterID, authz.RoleChief); err != nil {
		return fail(c, err, "list-reset-requests", requesterID)
	}
	reqs, err := h.Resets.ListPending(ctx)
	if err != nil {
		return fail(c, err, "list-reset-requests", requesterID)
	}
	return c.JSON(http.StatusOK, reqs)
}

// ApproveResetRequest resolves a pending reset: the target gets the
// supplied password and must change it at next login.
func (h *AdminHandler) ApproveResetRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var req adminResetReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "newPassword and requestingUserId required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.requireRank(ctx, c, req.RequestingUserID, authz.RoleChief); err != nil {
		return fail(c, err, "approve-reset-request", req.RequestingUserID)
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err, "approve-reset-request", req.RequestingUserID)
	}
	if err := h.Resets.Approve(ctx, id, hash); err != nil {
		return fail(c, err, "approve-reset-request", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RejectResetRequest resolves a pending reset without touching the
// password.
func (h *AdminHandler) RejectResetRequest(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request id"})
	}
	var req requesterReq
	if err := c.Bind(&req); err != nil || req.RequestingUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "requestingUserId required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.requireRank(ctx, c, req.RequestingUserID, authz.RoleChief); err != nil {
		return fail(c, err, "reject-reset-request", req.RequestingUserID)
	}
	if err := h.Resets.Reject(ctx, id); err != nil {
		return fail(c, err, "reject-reset-request", req.RequestingUserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
