package repository

import (
	"context"
	"database/sql"

	"github.com/holyokefd/portal/internal/model"
)

// AttachmentRepo persists file metadata. The blob lives on disk; a
// row references either a bulletin or a message, never both. Bulletin
// attachments are inserted by BulletinRepo.Create inside its
// transaction; message attachments arrive here after the send commits
// because losing an attachment must not unsend a message.
type AttachmentRepo struct{ DB *sql.DB }

func NewAttachmentRepo(db *sql.DB) *AttachmentRepo { return &AttachmentRepo{DB: db} }

// AddToMessage links an uploaded file to an existing message.
func (r *AttachmentRepo) AddToMessage(ctx context.Context, messageID uint64, a AttachmentInput) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO attachments (filename, original_filename, file_path, file_size, mime_type, bulletin_id, message_id)
		 VALUES (?, ?, ?, ?, ?, NULL, ?)`,
		a.Filename, a.OriginalFilename, a.FilePath, a.FileSize, a.MimeType, messageID)
	return err
}

func scanAttachments(rows *sql.Rows) ([]model.Attachment, error) {
	defer rows.Close()
	out := []model.Attachment{}
	for rows.Next() {
		var a model.Attachment
		var bulletinID, messageID sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Filename, &a.OriginalFilename, &a.FilePath, &a.FileSize,
			&a.MimeType, &bulletinID, &messageID, &a.CreatedAt); err != nil {
			return nil, err
		}
		if bulletinID.Valid {
			v := uint64(bulletinID.Int64)
			a.BulletinID = &v
		}
		if messageID.Valid {
			v := uint64(messageID.Int64)
			a.MessageID = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const attachmentColumns = `id, filename, original_filename, file_path, file_size, mime_type, bulletin_id, message_id, created_at`

// ListByBulletin returns a bulletin's attachment metadata.
func (r *AttachmentRepo) ListByBulletin(ctx context.Context, bulletinID uint64) ([]model.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE bulletin_id = ?`, bulletinID)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

// ListByMessage returns a message's attachment metadata.
func (r *AttachmentRepo) ListByMessage(ctx context.Context, messageID uint64) ([]model.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE message_id = ?`, messageID)
	if err != nil {
		return nil, err
	}
	return scanAttachments(rows)
}

// GetBulletinAttachment fetches metadata for a bulletin-owned
// attachment. Rows belonging to messages are invisible here so a
// bulletin download URL can never serve a message file.
func (r *AttachmentRepo) GetBulletinAttachment(ctx context.Context, id uint64) (*model.Attachment, error) {
	return r.getWhere(ctx, id, "bulletin_id IS NOT NULL")
}

// GetMessageAttachment fetches metadata for a message-owned attachment.
func (r *AttachmentRepo) GetMessageAttachment(ctx context.Context, id uint64) (*model.Attachment, error) {
	return r.getWhere(ctx, id, "message_id IS NOT NULL")
}

func (r *AttachmentRepo) getWhere(ctx context.Context, id uint64, cond string) (*model.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = ? AND `+cond+` LIMIT 1`, id)
	if err != nil {
		return nil, err
	}
	atts, err := scanAttachments(rows)
	if err != nil {
		return nil, err
	}
	if len(atts) == 0 {
		return nil, ErrNotFound
	}
	return &atts[0], nil
}

// Delete removes an attachment row and returns the blob path so the
// caller can unlink the file afterwards.
func (r *AttachmentRepo) Delete(ctx context.Context, id uint64) (string, error) {
	var path string
	err := r.DB.QueryRowContext(ctx,
		`SELECT file_path FROM attachments WHERE id = ? LIMIT 1`, id).Scan(&path)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id); err != nil {
		return "", err
	}
	return path, nil
}
