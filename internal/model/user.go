package model

import "time"

// User lifecycle states. Registration creates a pending user; an
// approving chief or admin activates it. Rejected registrations are
// deleted outright, so "rejected" only appears transiently.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// User represents a row in the `users` table plus the role set loaded
// from `user_roles`. Role is the legacy single-role column and is
// always kept equal to the highest-ranked member of Roles; Roles is
// the authoritative set and is never empty after load.
type User struct {
	ID                 uint64    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	IsAdmin            bool      `json:"is_admin"`
	Role               string    `json:"role"`
	Roles              []string  `json:"roles"`
	Status             string    `json:"status"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}
