package model

import "time"

// Attachment represents a row in the `attachments` table. Exactly one
// of BulletinID and MessageID is set; the blob itself lives on disk
// under the stored Filename, never in the database.
type Attachment struct {
	ID               uint64    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	BulletinID       *uint64   `json:"bulletin_id,omitempty"`
	MessageID        *uint64   `json:"message_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
