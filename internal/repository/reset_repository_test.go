package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func sampleTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newResetMock(t *testing.T) (*ResetRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResetRepo(db), mock
}

func TestRequestUnknownUserQuietlySucceeds(t *testing.T) {
	repo, mock := newResetMock(t)

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("nosuchuser").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	created, err := repo.Request(context.Background(), "nosuchuser")
	require.NoError(t, err)
	require.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestDeduplicatesPending(t *testing.T) {
	repo, mock := newResetMock(t)

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("jones").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("SELECT id FROM password_reset_requests").
		WithArgs(uint64(3), "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))

	created, err := repo.Request(context.Background(), "jones")
	require.NoError(t, err)
	require.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestFilesNewRequest(t *testing.T) {
	repo, mock := newResetMock(t)

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("jones").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("SELECT id FROM password_reset_requests").
		WithArgs(uint64(3), "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO password_reset_requests").
		WithArgs(uint64(3), "pending").
		WillReturnResult(sqlmock.NewResult(9, 1))

	created, err := repo.Request(context.Background(), "jones")
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveResetsDigestAndForcesChange(t *testing.T) {
	repo, mock := newResetMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id FROM password_reset_requests").
		WithArgs(uint64(9), "pending").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(3))
	mock.ExpectExec("UPDATE users SET password_hash = \\?, must_change_password = 1").
		WithArgs("$2a$10$newdigest", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE password_reset_requests SET status").
		WithArgs("approved", uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Approve(context.Background(), 9, "$2a$10$newdigest")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveResolvedRequestIsNotFound(t *testing.T) {
	repo, mock := newResetMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT user_id FROM password_reset_requests").
		WithArgs(uint64(9), "pending").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	err := repo.Approve(context.Background(), 9, "$2a$10$newdigest")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectResolvedRequestIsNotFound(t *testing.T) {
	repo, mock := newResetMock(t)

	mock.ExpectExec("UPDATE password_reset_requests SET status").
		WithArgs("rejected", uint64(9), "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reject(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
}
