package repository

import (
	"context"
	"database/sql"

	"github.com/holyokefd/portal/internal/model"
)

// ResetRepo persists password-reset requests. Members cannot reset
// their own passwords; they file a request and an administrator
// resolves it.
type ResetRepo struct{ DB *sql.DB }

func NewResetRepo(db *sql.DB) *ResetRepo { return &ResetRepo{DB: db} }

// Request files a reset request for the named user. Unknown usernames
// and duplicate pending requests both return (false, nil): the caller
// responds with the same success message either way, so the endpoint
// cannot be used to enumerate accounts.
func (r *ResetRepo) Request(ctx context.Context, username string) (created bool, err error) {
	var userID uint64
	err = r.DB.QueryRowContext(ctx,
		`SELECT id FROM users WHERE LOWER(username) = LOWER(?) LIMIT 1`, username).Scan(&userID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var pending uint64
	err = r.DB.QueryRowContext(ctx,
		`SELECT id FROM password_reset_requests WHERE user_id = ? AND status = ? LIMIT 1`,
		userID, model.ResetPending).Scan(&pending)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO password_reset_requests (user_id, status) VALUES (?, ?)`,
		userID, model.ResetPending)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPending returns unresolved requests oldest-first with the
// requesting user's identity joined in for the admin screen.
func (r *ResetRepo) ListPending(ctx context.Context) ([]model.ResetRequest, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT pr.id, pr.user_id, u.username, u.name, pr.status, pr.created_at
		 FROM password_reset_requests pr
		 JOIN users u ON pr.user_id = u.id
		 WHERE pr.status = ?
		 ORDER BY pr.created_at ASC`, model.ResetPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ResetRequest{}
	for rows.Next() {
		var req model.ResetRequest
		if err := rows.Scan(&req.ID, &req.UserID, &req.Username, &req.Name, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Approve resolves a pending request: the target's digest is replaced
// with the supplied hash and must_change_password is raised so their
// next login forces a password change before anything else. All three
// writes commit together.
func (r *ResetRepo) Approve(ctx context.Context, requestID uint64, newPasswordHash string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID uint64
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM password_reset_requests WHERE id = ? AND status = ? LIMIT 1`,
		requestID, model.ResetPending).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, must_change_password = 1 WHERE id = ?`,
		newPasswordHash, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE password_reset_requests SET status = ?, resolved_at = NOW() WHERE id = ?`,
		model.ResetApproved, requestID); err != nil {
		return err
	}
	return tx.Commit()
}

// Reject resolves a pending request without touching the password.
func (r *ResetRepo) Reject(ctx context.Context, requestID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE password_reset_requests SET status = ?, resolved_at = NOW() WHERE id = ? AND status = ?`,
		model.ResetRejected, requestID, model.ResetPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
