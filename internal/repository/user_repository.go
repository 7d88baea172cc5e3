package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/model"
	"github.com/holyokefd/portal/internal/utils"
)

// UserRepo persists users and their role sets. The users.role column
// is a legacy mirror of the highest-ranked member of user_roles; every
// write that touches the role set recomputes it inside the same
// transaction so the two can never drift.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, name, username, password_hash, is_admin, role, status, must_change_password, created_at`

// rowQuerier is satisfied by both *sql.DB and *sql.Tx so role-set
// loading works inside and outside transactions.
type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Username, &u.PasswordHash,
		&u.IsAdmin, &u.Role, &u.Status, &u.MustChangePassword, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func loadRoles(ctx context.Context, q rowQuerier, userID uint64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// attachRoles populates u.Roles, falling back to the legacy primary
// role when the association table has no rows for the user. A loaded
// user never has an empty role set.
func (r *UserRepo) attachRoles(ctx context.Context, u *model.User) error {
	roles, err := loadRoles(ctx, r.DB, u.ID)
	if err != nil {
		return err
	}
	if len(roles) == 0 && u.Role != "" {
		roles = []string{u.Role}
	}
	u.Roles = roles
	return nil
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}

// GetByID fetches a user with their role set.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.attachRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a username/password pair. Usernames compare
// case-insensitively. Pending and rejected accounts fail with
// ErrAccountInactive after the digest check so the error cannot be
// used to probe which usernames exist. If the user predates the
// user_roles table, their legacy primary role is backfilled into it.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?) LIMIT 1`, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if u.Status != model.StatusActive {
		return nil, ErrAccountInactive
	}
	roles, err := loadRoles(ctx, r.DB, u.ID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 && u.Role != "" {
		if _, err := r.DB.ExecContext(ctx,
			`INSERT IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, u.ID, u.Role); err != nil {
			return nil, err
		}
		roles = []string{u.Role}
	}
	u.Roles = roles
	return u, nil
}

// Register creates a pending account with the firefighter role. The
// user row and its role-set row are written in one transaction.
func (r *UserRepo) Register(ctx context.Context, email, name, username, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	if email == "" || name == "" || username == "" || password == "" {
		return 0, ErrValidation
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existing uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?) LIMIT 1`,
		username, email).Scan(&existing)
	if err == nil {
		return 0, ErrConflict
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, name, username, password_hash, is_admin, role, status)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		email, name, username, hash, authz.RoleFirefighter, model.StatusPending)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`,
		id, authz.RoleFirefighter); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// List returns all users with their role sets.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Username, &u.PasswordHash,
			&u.IsAdmin, &u.Role, &u.Status, &u.MustChangePassword, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		if err := r.attachRoles(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// ListByRole returns active users holding the given role.
func (r *UserRepo) ListByRole(ctx context.Context, role string) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT u.id, u.name, u.email, u.username
		 FROM users u
		 JOIN user_roles ur ON u.id = ur.user_id
		 WHERE ur.role = ? AND u.status = ?
		 ORDER BY u.name`, role, model.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Username); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListPending returns accounts awaiting approval, newest first.
func (r *UserRepo) ListPending(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, email, name, username, status, created_at
		 FROM users WHERE status = ? ORDER BY created_at DESC`, model.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Username, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// requireRank loads the acting user and checks their role set clears
// the threshold. admin and super_user outrank chief, so a single rank
// check covers all three approver classes.
func (r *UserRepo) requireRank(ctx context.Context, byUserID uint64, threshold string) (*model.User, error) {
	by, err := r.GetByID(ctx, byUserID)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !authz.AnyAtLeast(by.Roles, threshold) {
		return nil, ErrForbidden
	}
	return by, nil
}

// requireAdmin loads the acting user and checks they hold admin or
// super_user.
func (r *UserRepo) requireAdmin(ctx context.Context, byUserID uint64) (*model.User, error) {
	by, err := r.GetByID(ctx, byUserID)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if !authz.IsOverride(by.Roles) {
		return nil, ErrForbidden
	}
	return by, nil
}

// Approve activates a pending account and assigns its initial role.
// Requires the caller to rank at or above chief.
func (r *UserRepo) Approve(ctx context.Context, userID uint64, assignedRole string, byUserID uint64) error {
	if _, err := r.requireRank(ctx, byUserID, authz.RoleChief); err != nil {
		return err
	}
	if !authz.ValidRole(assignedRole) {
		return fmt.Errorf("%w: invalid role %q", ErrValidation, assignedRole)
	}
	isAdmin := 0
	if assignedRole == authz.RoleAdmin {
		isAdmin = 1
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET status = ?, role = ?, is_admin = ? WHERE id = ?`,
		model.StatusActive, assignedRole, isAdmin, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, userID, assignedRole); err != nil {
		return err
	}
	return tx.Commit()
}

// Reject removes a pending registration outright. Requires the caller
// to rank at or above chief. A pending account has no authored
// content, so the FK cascades on user_roles and reset requests cover
// the cleanup.
func (r *UserRepo) Reject(ctx context.Context, userID uint64, byUserID uint64) error {
	if _, err := r.requireRank(ctx, byUserID, authz.RoleChief); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM users WHERE id = ? AND status = ?`, userID, model.StatusPending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// validateRoleSet rejects empty sets, unknown roles, and super_user
// grants by callers who are not super_user themselves.
func validateRoleSet(roles []string, by *model.User) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: role set must not be empty", ErrValidation)
	}
	for _, role := range roles {
		if !authz.ValidRole(role) {
			return fmt.Errorf("%w: invalid role %q", ErrValidation, role)
		}
	}
	if authz.HasRole(roles, authz.RoleSuperUser) && !authz.HasRole(by.Roles, authz.RoleSuperUser) {
		return ErrForbidden
	}
	return nil
}

// replaceRolesTx swaps the full role set and recomputes the legacy
// primary-role column inside the caller's transaction.
func replaceRolesTx(ctx context.Context, tx *sql.Tx, userID uint64, roles []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, userID, role); err != nil {
			return err
		}
	}
	primary := authz.PrimaryRole(roles)
	isAdmin := 0
	if authz.HasRole(roles, authz.RoleAdmin) {
		isAdmin = 1
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET role = ?, is_admin = ? WHERE id = ?`, primary, isAdmin, userID)
	return err
}

// SetRoles atomically replaces a user's role set. Either every
// association row and the primary-role column change together, or
// nothing does.
func (r *UserRepo) SetRoles(ctx context.Context, userID uint64, roles []string) error {
	if len(roles) == 0 {
		return fmt.Errorf("%w: role set must not be empty", ErrValidation)
	}
	for _, role := range roles {
		if !authz.ValidRole(role) {
			return fmt.Errorf("%w: invalid role %q", ErrValidation, role)
		}
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := replaceRolesTx(ctx, tx, userID, roles); err != nil {
		return err
	}
	return tx.Commit()
}

// Create inserts an active account with the given role set. Requires
// admin or super_user; granting super_user requires super_user.
func (r *UserRepo) Create(ctx context.Context, email, name, username, password string, roles []string, byUserID uint64, cost int) (uint64, error) {
	by, err := r.requireAdmin(ctx, byUserID)
	if err != nil {
		return 0, err
	}
	if err := validateRoleSet(roles, by); err != nil {
		return 0, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || strings.TrimSpace(name) == "" || username == "" || password == "" {
		return 0, ErrValidation
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	primary := authz.PrimaryRole(roles)
	isAdmin := 0
	if authz.HasRole(roles, authz.RoleAdmin) {
		isAdmin = 1
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, name, username, password_hash, is_admin, role, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		email, name, username, hash, isAdmin, primary, model.StatusActive)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := replaceRolesTx(ctx, tx, uint64(id), roles); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update edits identity fields and replaces the role set in one
// transaction. Same authorization rules as Create.
func (r *UserRepo) Update(ctx context.Context, userID uint64, email, name, username string, roles []string, byUserID uint64) error {
	by, err := r.requireAdmin(ctx, byUserID)
	if err != nil {
		return err
	}
	if err := validateRoleSet(roles, by); err != nil {
		return err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, username = ? WHERE id = ?`,
		strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(name), strings.TrimSpace(username), userID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Row may exist with identical values; verify before failing.
		var exists uint64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
	}
	if err := replaceRolesTx(ctx, tx, userID, roles); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a user and everything that references them, in FK
// order, inside one transaction. super_user accounts can never be
// deleted and callers can never delete themselves. Attachments on the
// user's messages and bulletins fall to the FK cascades.
func (r *UserRepo) Delete(ctx context.Context, userID, byUserID uint64) error {
	if _, err := r.requireAdmin(ctx, byUserID); err != nil {
		return err
	}
	if userID == byUserID {
		return fmt.Errorf("%w: cannot delete your own account", ErrForbidden)
	}
	target, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if authz.HasRole(target.Roles, authz.RoleSuperUser) {
		return fmt.Errorf("%w: super user accounts cannot be deleted", ErrForbidden)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM user_roles WHERE user_id = ?`,
		`DELETE FROM bulletin_reads WHERE user_id = ?`,
		`DELETE FROM message_reads WHERE user_id = ?`,
		`DELETE FROM thread_participants WHERE user_id = ?`,
		`DELETE FROM password_reset_requests WHERE user_id = ?`,
		`DELETE FROM messages WHERE sender_id = ? OR recipient_id = ?`,
		`DELETE FROM bulletins WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	}
	for _, q := range steps {
		args := []any{userID}
		if strings.Contains(q, "recipient_id") {
			args = append(args, userID)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ResetPassword sets a new digest on the target account. Requires
// admin or super_user; resetting a super_user requires super_user.
func (r *UserRepo) ResetPassword(ctx context.Context, userID uint64, newPassword string, byUserID uint64, cost int) error {
	by, err := r.requireAdmin(ctx, byUserID)
	if err != nil {
		return err
	}
	target, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if authz.HasRole(target.Roles, authz.RoleSuperUser) && !authz.HasRole(by.Roles, authz.RoleSuperUser) {
		return ErrForbidden
	}
	hash, err := utils.HashPassword(newPassword, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	return err
}

// ChangePassword verifies the old digest before accepting the new one
// and clears the forced-change flag set by an approved reset.
func (r *UserRepo) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string, cost int) error {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(newPassword, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, must_change_password = 0 WHERE id = ?`, hash, userID)
	return err
}
