package model

import "time"

// Bulletin represents a row in the `bulletins` table. AuthorName is
// joined in from users for display.
type Bulletin struct {
	ID         uint64    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Category   string    `json:"category"`
	UserID     uint64    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// BulletinRef is the id/category/timestamp projection used by clients
// to compute unread badges without fetching bodies.
type BulletinRef struct {
	ID        uint64    `json:"id"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}
