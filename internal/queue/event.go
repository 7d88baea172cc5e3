// Package queue defines the notification payloads exchanged over the
// message broker and the background consumer that drains them.
package queue

// NotificationQueue is the single durable queue carrying every portal
// notification. Consumers switch on Notification.Kind.
const NotificationQueue = "portal.notifications"

// Notification kinds.
const (
	KindBulletinPosted = "bulletin.posted"
	KindMessageSent    = "message.sent"
)

// BulletinPostedEvent is published when a bulletin is created. It
// carries enough for downstream alerting without querying the primary
// database.
type BulletinPostedEvent struct {
	BulletinID uint64 `json:"bulletin_id"`
	Category   string `json:"category"`
	Title      string `json:"title"`
	AuthorID   uint64 `json:"author_id"`
	AuthorName string `json:"author_name"`
	PostedAt   string `json:"posted_at"`
}

// MessageSentEvent is published when a message is sent to a thread.
type MessageSentEvent struct {
	MessageID    uint64   `json:"message_id"`
	ThreadID     uint64   `json:"thread_id"`
	SenderID     uint64   `json:"sender_id"`
	SenderName   string   `json:"sender_name"`
	Subject      string   `json:"subject"`
	RecipientIDs []uint64 `json:"recipient_ids"`
	SentAt       string   `json:"sent_at"`
}

// Notification is the envelope on the wire. Exactly one of the event
// pointers is set, matching Kind.
type Notification struct {
	Kind     string               `json:"kind"`
	Bulletin *BulletinPostedEvent `json:"bulletin,omitempty"`
	Message  *MessageSentEvent    `json:"message,omitempty"`
}
