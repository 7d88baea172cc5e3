package repository

import (
	"context"
	"database/sql"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/model"
)

// BulletinRepo persists category-tagged announcements and their
// per-user read markers. Callers load the acting user (with role set)
// first; the repo enforces the category policy plus the author
// exception on delete.
type BulletinRepo struct{ DB *sql.DB }

func NewBulletinRepo(db *sql.DB) *BulletinRepo { return &BulletinRepo{DB: db} }

// AttachmentInput carries the metadata of one uploaded file to be
// linked to a new bulletin or message.
type AttachmentInput struct {
	Filename         string
	OriginalFilename string
	FilePath         string
	FileSize         int64
	MimeType         string
}

// Create inserts a bulletin and its attachment metadata as one
// transaction. The author must pass the category's posting policy.
func (r *BulletinRepo) Create(ctx context.Context, title, body, category string, author *model.User, attachments []AttachmentInput) (uint64, error) {
	if title == "" || body == "" {
		return 0, ErrValidation
	}
	if !authz.CanPost(author.Roles, category) {
		return 0, ErrForbidden
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bulletins (title, body, category, user_id) VALUES (?, ?, ?, ?)`,
		title, body, category, author.ID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, a := range attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attachments (filename, original_filename, file_path, file_size, mime_type, bulletin_id, message_id)
			 VALUES (?, ?, ?, ?, ?, ?, NULL)`,
			a.Filename, a.OriginalFilename, a.FilePath, a.FileSize, a.MimeType, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Get fetches one bulletin with its author's name.
func (r *BulletinRepo) Get(ctx context.Context, bulletinID uint64) (*model.Bulletin, error) {
	var b model.Bulletin
	err := r.DB.QueryRowContext(ctx,
		`SELECT b.id, b.title, b.body, b.category, b.user_id, u.name, b.created_at
		 FROM bulletins b
		 JOIN users u ON b.user_id = u.id
		 WHERE b.id = ? LIMIT 1`, bulletinID).
		Scan(&b.ID, &b.Title, &b.Body, &b.Category, &b.UserID, &b.AuthorName, &b.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Delete removes a bulletin. Allowed when the actor passes the
// category's delete policy or wrote the bulletin themselves. A
// missing bulletin is an error, not a silent no-op. Attachment rows
// and read markers fall to the FK cascades.
func (r *BulletinRepo) Delete(ctx context.Context, bulletinID uint64, actor *model.User) error {
	var category string
	var authorID uint64
	err := r.DB.QueryRowContext(ctx,
		`SELECT category, user_id FROM bulletins WHERE id = ? LIMIT 1`, bulletinID).
		Scan(&category, &authorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if !authz.CanDelete(actor.Roles, category) && authorID != actor.ID {
		return ErrForbidden
	}
	_, err = r.DB.ExecContext(ctx, `DELETE FROM bulletins WHERE id = ?`, bulletinID)
	return err
}

// ListByCategory returns a category's bulletins newest-first. A
// viewer who fails the view policy gets an empty slice, not an error,
// so the response never reveals whether the category holds anything.
func (r *BulletinRepo) ListByCategory(ctx context.Context, category string, viewer *model.User) ([]model.Bulletin, error) {
	if !authz.CanView(viewer.Roles, category) {
		return []model.Bulletin{}, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT b.id, b.title, b.body, b.category, b.user_id, u.name, b.created_at
		 FROM bulletins b
		 JOIN users u ON b.user_id = u.id
		 WHERE b.category = ?
		 ORDER BY b.created_at DESC`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Bulletin{}
	for rows.Next() {
		var b model.Bulletin
		if err := rows.Scan(&b.ID, &b.Title, &b.Body, &b.Category, &b.UserID, &b.AuthorName, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListVisible returns the id/category/timestamp of every bulletin the
// viewer may see, for unread-badge computation.
func (r *BulletinRepo) ListVisible(ctx context.Context, viewer *model.User) ([]model.BulletinRef, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, category, created_at FROM bulletins ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BulletinRef{}
	for rows.Next() {
		var ref model.BulletinRef
		if err := rows.Scan(&ref.ID, &ref.Category, &ref.CreatedAt); err != nil {
			return nil, err
		}
		if authz.CanView(viewer.Roles, ref.Category) {
			out = append(out, ref)
		}
	}
	return out, rows.Err()
}

// MarkRead records a first view. Re-marking is a no-op thanks to the
// (user_id, bulletin_id) unique key; the marker only drives unread
// badges and carries no authorization weight.
func (r *BulletinRepo) MarkRead(ctx context.Context, userID, bulletinID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO bulletin_reads (user_id, bulletin_id, read_at) VALUES (?, ?, NOW())`,
		userID, bulletinID)
	return err
}

// ReadBulletinIDs returns the ids of bulletins the user has opened.
func (r *BulletinRepo) ReadBulletinIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT bulletin_id FROM bulletin_reads WHERE user_id = ?`, userID)
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
