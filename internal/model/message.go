package model

import "time"

// Message represents a row in the `messages` table. A thread's
// identity is the id of the message that started it, so ThreadID of
// the opening message equals its own ID. RecipientID holds only the
// first recipient of a send and exists for legacy reads; the real
// audience of a thread lives in `thread_participants`.
type Message struct {
	ID              uint64    `json:"id"`
	SenderID        uint64    `json:"sender_id"`
	RecipientID     uint64    `json:"recipient_id"`
	Subject         string    `json:"subject"`
	Body            string    `json:"body"`
	ThreadID        uint64    `json:"thread_id"`
	ParentMessageID *uint64   `json:"parent_message_id,omitempty"`
	SenderName      string    `json:"sender_name,omitempty"`
	RecipientName   string    `json:"recipient_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// InboxEntry is the latest message of one thread the user participates
// in, annotated for the inbox listing.
type InboxEntry struct {
	Message
	MessageCount     int    `json:"message_count"`
	ParticipantNames string `json:"participant_names"`
}

// Participant is one member of a thread's audience.
type Participant struct {
	UserID uint64 `json:"user_id"`
	Name   string `json:"name"`
}
