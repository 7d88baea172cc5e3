// Package handler contains the HTTP handlers. Handlers bind request
// DTOs, call into the repositories with a bounded context, and map
// sentinel errors onto HTTP status codes.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/middleware"
	"github.com/holyokefd/portal/internal/repository"
)

// reqCtx bounds every database call made on behalf of a request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// queryUserID parses the acting user's id from the userId query
// parameter.
func queryUserID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.QueryParam("userId"), 10, 64)
}

// actorAllowed reports whether the request may act as actorID: the
// bearer token's subject must match the actor the request names. A
// context without a subject never passed the JWT middleware and is
// left to route-level protection.
func actorAllowed(c echo.Context, actorID uint64) bool {
	sub := middleware.Subject(c)
	return sub == 0 || sub == actorID
}

// forbidden writes the uniform 403 body.
func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

// parseFormUint parses a numeric multipart form field. An absent
// field is an error; optional fields check the returned value.
func parseFormUint(c echo.Context, field string) (uint64, error) {
	return strconv.ParseUint(c.FormValue(field), 10, 64)
}

// fail maps repository sentinels onto HTTP responses. Unexpected
// errors are logged with the operation name and actor id, and the
// caller only ever sees an opaque message.
func fail(c echo.Context, err error, op string, actorID uint64) error {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, repository.ErrAccountInactive):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account is pending approval"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "username or email already in use"})
	default:
		log.Printf("%s: actor=%d: %v", op, actorID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}
