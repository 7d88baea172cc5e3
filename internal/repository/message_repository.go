package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/holyokefd/portal/internal/model"
)

// MessageRepo persists threaded messages. A thread's identity is the
// id of its opening message; thread_participants is the source of
// truth for who can see a thread. The recipient_id column on a
// message row holds only the first recipient of the send and is never
// used to reconstruct the audience.
type MessageRepo struct{ DB *sql.DB }

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{DB: db} }

// Send writes one message row for the whole recipient group and
// upserts the sender and every recipient into thread_participants.
// When threadID is nil a new thread is opened: the freshly inserted
// row's id is patched into its own thread_id column. The insert, the
// patch and the participant upserts commit together or not at all, so
// a concurrent reader can never observe a message without a thread or
// a thread without its sender.
func (r *MessageRepo) Send(ctx context.Context, senderID uint64, recipientIDs []uint64, subject, body string, threadID, parentMessageID *uint64) (messageID, resolvedThreadID uint64, err error) {
	if len(recipientIDs) == 0 {
		return 0, 0, ErrValidation
	}
	recipients := dedupeIDs(recipientIDs)

	// Every named recipient must exist. Checking up front turns a bad
	// id into a 400 instead of a foreign-key failure mid-transaction.
	var known int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE id IN (`+placeholders(len(recipients))+`)`,
		idArgs(recipients)...).Scan(&known); err != nil {
		return 0, 0, err
	}
	if known != len(recipients) {
		return 0, 0, fmt.Errorf("%w: unknown recipient", ErrValidation)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	var tid any
	if threadID != nil {
		tid = *threadID
	}
	var pid any
	if parentMessageID != nil {
		pid = *parentMessageID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (sender_id, recipient_id, subject, body, thread_id, parent_message_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		senderID, recipientIDs[0], subject, body, tid, pid)
	if err != nil {
		return 0, 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}
	messageID = uint64(id)

	resolvedThreadID = messageID
	if threadID != nil {
		resolvedThreadID = *threadID
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE messages SET thread_id = ? WHERE id = ?`, messageID, messageID); err != nil {
			return 0, 0, err
		}
	}

	// Re-adding an existing participant is a no-op; a recipient who
	// previously left the thread rejoins here.
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO thread_participants (thread_id, user_id) VALUES (?, ?)`,
		resolvedThreadID, senderID); err != nil {
		return 0, 0, err
	}
	for _, rid := range recipients {
		if _, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO thread_participants (thread_id, user_id) VALUES (?, ?)`,
			resolvedThreadID, rid); err != nil {
			return 0, 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return messageID, resolvedThreadID, nil
}

// dedupeIDs drops repeated ids while keeping first-seen order.
func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// IsParticipant reports whether the user currently belongs to the
// thread's audience.
func (r *MessageRepo) IsParticipant(ctx context.Context, threadID, userID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		`SELECT 1 FROM thread_participants WHERE thread_id = ? AND user_id = ? LIMIT 1`,
		threadID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ThreadIDOf resolves the thread a message belongs to.
func (r *MessageRepo) ThreadIDOf(ctx context.Context, messageID uint64) (uint64, error) {
	var threadID uint64
	err := r.DB.QueryRowContext(ctx,
		`SELECT thread_id FROM messages WHERE id = ? LIMIT 1`, messageID).Scan(&threadID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return threadID, nil
}

// Inbox returns the latest message of every thread the user currently
// participates in, newest activity first, annotated with the thread's
// message count and the other participants' names.
func (r *MessageRepo) Inbox(ctx context.Context, userID uint64) ([]model.InboxEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.recipient_id, m.subject, m.body, m.thread_id, m.parent_message_id, m.created_at,
		        u.name,
		        (SELECT COUNT(*) FROM messages WHERE thread_id = m.thread_id),
		        (SELECT COALESCE(GROUP_CONCAT(users.name ORDER BY users.name SEPARATOR ', '), '')
		         FROM thread_participants tp
		         JOIN users ON tp.user_id = users.id
		         WHERE tp.thread_id = m.thread_id AND tp.user_id != ?)
		 FROM messages m
		 JOIN users u ON m.sender_id = u.id
		 WHERE m.id IN (
		     SELECT MAX(id) FROM messages
		     WHERE thread_id IN (SELECT thread_id FROM thread_participants WHERE user_id = ?)
		     GROUP BY thread_id
		 )
		 ORDER BY m.created_at DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.InboxEntry{}
	for rows.Next() {
		var e model.InboxEntry
		var parent sql.NullInt64
		if err := rows.Scan(&e.ID, &e.SenderID, &e.RecipientID, &e.Subject, &e.Body, &e.ThreadID, &parent,
			&e.CreatedAt, &e.SenderName, &e.MessageCount, &e.ParticipantNames); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := uint64(parent.Int64)
			e.ParentMessageID = &p
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Thread returns every message of a thread in posting order. The
// requester must currently be a participant; outsiders (including
// former participants who left) get ErrForbidden, never a not-found,
// so the two cases are indistinguishable to a prober.
func (r *MessageRepo) Thread(ctx context.Context, threadID, requesterID uint64) ([]model.Message, error) {
	ok, err := r.IsParticipant(ctx, threadID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.recipient_id, m.subject, m.body, m.thread_id, m.parent_message_id, m.created_at, sender.name
		 FROM messages m
		 JOIN users sender ON m.sender_id = sender.id
		 WHERE m.thread_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		var parent sql.NullInt64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Body, &m.ThreadID, &parent,
			&m.CreatedAt, &m.SenderName); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := uint64(parent.Int64)
			m.ParentMessageID = &p
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Participants returns the current audience of a thread.
func (r *MessageRepo) Participants(ctx context.Context, threadID uint64) ([]model.Participant, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT tp.user_id, u.name
		 FROM thread_participants tp
		 JOIN users u ON tp.user_id = u.id
		 WHERE tp.thread_id = ?`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Participant{}
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.UserID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Sent returns messages the user authored, newest first. The joined
// name is the legacy first recipient's.
func (r *MessageRepo) Sent(ctx context.Context, userID uint64) ([]model.Message, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id, m.sender_id, m.recipient_id, m.subject, m.body, m.thread_id, m.parent_message_id, m.created_at, u.name
		 FROM messages m
		 JOIN users u ON m.recipient_id = u.id
		 WHERE m.sender_id = ?
		 ORDER BY m.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Message{}
	for rows.Next() {
		var m model.Message
		var parent sql.NullInt64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Subject, &m.Body, &m.ThreadID, &parent,
			&m.CreatedAt, &m.RecipientName); err != nil {
			return nil, err
		}
		if parent.Valid {
			p := uint64(parent.Int64)
			m.ParentMessageID = &p
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteParticipation removes the acting user from the audience of
// the thread the message belongs to. Message rows are never touched:
// history stays shared and the user simply stops seeing the thread.
// A later send that names them as an explicit recipient re-adds them.
func (r *MessageRepo) DeleteParticipation(ctx context.Context, messageID, userID uint64) error {
	threadID, err := r.ThreadIDOf(ctx, messageID)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM thread_participants WHERE thread_id = ? AND user_id = ?`, threadID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrForbidden
	}
	return nil
}

// MarkRead records that the user has seen the message. Idempotent.
func (r *MessageRepo) MarkRead(ctx context.Context, userID, messageID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO message_reads (user_id, message_id, read_at) VALUES (?, ?, NOW())`,
		userID, messageID)
	return err
}

// ReadMessageIDs returns the ids of messages the user has opened.
func (r *MessageRepo) ReadMessageIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT message_id FROM message_reads WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
