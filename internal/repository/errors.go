// Package repository implements persistence for users, bulletins,
// messages, attachments and password-reset requests on top of
// database/sql. Sentinel errors let handlers map failures onto HTTP
// status codes without inspecting driver errors.
package repository

import "errors"

// ErrValidation is returned for missing or malformed input. Handlers
// translate it into HTTP 400.
var ErrValidation = errors.New("validation failed")

// ErrInvalidCredentials is returned when a login attempt fails,
// without distinguishing an unknown username from a wrong password.
// Handlers translate it into HTTP 401.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountInactive is returned when credentials are correct but the
// account is still pending approval or has been rejected.
var ErrAccountInactive = errors.New("account is pending approval or has been rejected")

// ErrForbidden is returned when the caller is authenticated but not
// privileged enough for the operation. Handlers translate it into
// HTTP 403. Its message deliberately reveals nothing about whether
// the target resource exists.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a referenced entity is absent.
// Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on unique-constraint violations, such as a
// duplicate username or email. Handlers translate it into HTTP 409
// with a user-readable message, never a raw driver error.
var ErrConflict = errors.New("conflict")
