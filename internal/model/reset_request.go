package model

import "time"

// Password reset request states.
const (
	ResetPending  = "pending"
	ResetApproved = "approved"
	ResetRejected = "rejected"
)

// ResetRequest represents a row in `password_reset_requests`. At most
// one pending request exists per user at any time. Username and Name
// are joined in for the admin review screen.
type ResetRequest struct {
	ID         uint64     `json:"id"`
	UserID     uint64     `json:"user_id"`
	Username   string     `json:"username,omitempty"`
	Name       string     `json:"name,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
