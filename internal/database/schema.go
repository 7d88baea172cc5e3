package database

import (
	"context"
	"database/sql"
	"log"
)

// schema creates every table the portal uses. Statements are
// idempotent so EnsureSchema can run on every startup. Uniqueness
// constraints double as idempotency guards: (user_id, role),
// (thread_id, user_id) and the two read-marker pairs are all written
// with INSERT IGNORE. utf8mb4_unicode_ci on users makes the username
// and email uniques case-insensitive.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		username VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin TINYINT(1) NOT NULL DEFAULT 0,
		role VARCHAR(50) NOT NULL DEFAULT 'firefighter',
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		must_change_password TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS user_roles (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		role VARCHAR(50) NOT NULL,
		UNIQUE KEY uq_user_role (user_id, role),
		CONSTRAINT fk_user_roles_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS bulletins (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		title VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'west-wing',
		user_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_bulletins_category (category, created_at),
		CONSTRAINT fk_bulletins_user FOREIGN KEY (user_id) REFERENCES users(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS messages (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		sender_id BIGINT UNSIGNED NOT NULL,
		recipient_id BIGINT UNSIGNED NOT NULL,
		subject VARCHAR(255) NOT NULL,
		body TEXT NOT NULL,
		thread_id BIGINT UNSIGNED NULL,
		parent_message_id BIGINT UNSIGNED NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_messages_thread (thread_id, id),
		CONSTRAINT fk_messages_sender FOREIGN KEY (sender_id) REFERENCES users(id),
		CONSTRAINT fk_messages_recipient FOREIGN KEY (recipient_id) REFERENCES users(id)
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS thread_participants (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		thread_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		UNIQUE KEY uq_thread_user (thread_id, user_id),
		CONSTRAINT fk_participants_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS attachments (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		filename VARCHAR(255) NOT NULL,
		original_filename VARCHAR(255) NOT NULL,
		file_path VARCHAR(512) NOT NULL,
		file_size BIGINT NOT NULL,
		mime_type VARCHAR(127) NOT NULL,
		bulletin_id BIGINT UNSIGNED NULL,
		message_id BIGINT UNSIGNED NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_attachments_bulletin FOREIGN KEY (bulletin_id) REFERENCES bulletins(id) ON DELETE CASCADE,
		CONSTRAINT fk_attachments_message FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS bulletin_reads (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		bulletin_id BIGINT UNSIGNED NOT NULL,
		read_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_bulletin_read (user_id, bulletin_id),
		CONSTRAINT fk_bulletin_reads_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_bulletin_reads_bulletin FOREIGN KEY (bulletin_id) REFERENCES bulletins(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS message_reads (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		message_id BIGINT UNSIGNED NOT NULL,
		read_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_message_read (user_id, message_id),
		CONSTRAINT fk_message_reads_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		CONSTRAINT fk_message_reads_message FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS password_reset_requests (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		resolved_at DATETIME NULL,
		CONSTRAINT fk_reset_requests_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,

	`CREATE TABLE IF NOT EXISTS maintenance_runs (
		job VARCHAR(50) PRIMARY KEY,
		last_run DATETIME NOT NULL
	) ENGINE=InnoDB`,
}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// EnsureSuperUser creates the bootstrap super_user account when no
// admin or super_user exists yet, so a fresh deployment is never
// locked out of the admin console. The password hash is produced by
// the caller; this function only persists it.
func EnsureSuperUser(ctx context.Context, db *sql.DB, email, name, username, passwordHash string) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role IN ('admin','super_user')`).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	log.Printf("database: no admin users found, creating super user %q", username)
	res, err := db.ExecContext(ctx,
		`INSERT INTO users (email, name, username, password_hash, is_admin, role, status)
		 VALUES (?, ?, ?, ?, 1, 'super_user', 'active')`,
		email, name, username, passwordHash)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT IGNORE INTO user_roles (user_id, role) VALUES (?, 'super_user')`, id)
	return err
}
