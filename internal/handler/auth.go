package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/config"
	"github.com/holyokefd/portal/internal/repository"
	"github.com/holyokefd/portal/internal/utils"
)

// AuthHandler bundles dependencies for the credential endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Resets *repository.ResetRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, r *repository.ResetRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Resets: r}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type registerReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}
type changePasswordReq struct {
	UserID      uint64 `json:"userId"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
type resetRequestReq struct {
	Username string `json:"username"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login verifies credentials and returns the user with their full
// role set plus a bearer token. The success envelope always carries
// roles as an array; must_change_password tells the client to force a
// password change before showing anything else.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "error": "username and password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return fail(c, err, "login", 0)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Roles, h.Cfg.AccessTTLMin)
	if err != nil {
		return fail(c, err, "login: issue token", u.ID)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user":    u,
		"access":  tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Register files a pending registration. The account stays unusable
// until a chief or admin approves it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Users.Register(ctx, req.Email, req.Name, req.Username, req.Password, h.Cfg.BcryptCost); err != nil {
		return fail(c, err, "register", 0)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "registration received and awaiting approval",
	})
}

// ChangePassword verifies the old password before accepting the new
// one and clears any forced-change flag.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID == 0 || req.OldPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId, oldPassword and newPassword required"})
	}
	if !actorAllowed(c, req.UserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.ChangePassword(ctx, req.UserID, req.OldPassword, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		return fail(c, err, "change-password", req.UserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// RequestPasswordReset files a reset request for later admin review.
// The response is identical whether or not the username exists, so
// the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Resets.Request(ctx, req.Username); err != nil {
		return fail(c, err, "request-password-reset", 0)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "if the account exists, a reset request has been filed",
	})
}
