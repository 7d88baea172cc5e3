package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newMessageMock(t *testing.T) (*MessageRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMessageRepo(db), mock
}

func TestSendOpensThreadAndUpsertsParticipants(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE id IN").
		WithArgs(uint64(2), uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(uint64(1), uint64(2), "drill schedule", "see attached", nil, nil).
		WillReturnResult(sqlmock.NewResult(42, 1))
	// A fresh thread is identified by its opening message: the row
	// patches its own id into thread_id before commit.
	mock.ExpectExec("UPDATE messages SET thread_id").
		WithArgs(uint64(42), uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(uint64(42), uint64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(uint64(42), uint64(2)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(uint64(42), uint64(3)).
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	msgID, threadID, err := repo.Send(context.Background(), 1, []uint64{2, 3}, "drill schedule", "see attached", nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(42), msgID)
	require.Equal(t, uint64(42), threadID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendReplyJoinsExistingThread(t *testing.T) {
	repo, mock := newMessageMock(t)
	existing := uint64(7)
	parent := uint64(30)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE id IN").
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(uint64(2), uint64(1), "re: drill schedule", "noted", existing, parent).
		WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(existing, uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(existing, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	msgID, threadID, err := repo.Send(context.Background(), 2, []uint64{1}, "re: drill schedule", "noted", &existing, &parent)
	require.NoError(t, err)
	require.Equal(t, uint64(43), msgID)
	require.Equal(t, existing, threadID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendRequiresRecipients(t *testing.T) {
	repo, _ := newMessageMock(t)

	_, _, err := repo.Send(context.Background(), 1, nil, "s", "b", nil, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestSendRejectsUnknownRecipient(t *testing.T) {
	repo, mock := newMessageMock(t)

	// One of the two named recipients doesn't exist; the send fails
	// before any transaction is opened.
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE id IN").
		WithArgs(uint64(2), uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.Send(context.Background(), 1, []uint64{2, 404}, "s", "b", nil, nil)
	require.ErrorIs(t, err, ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendDeduplicatesRecipients(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users WHERE id IN").
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(uint64(1), uint64(2), "s", "b", nil, nil).
		WillReturnResult(sqlmock.NewResult(50, 1))
	mock.ExpectExec("UPDATE messages SET thread_id").
		WithArgs(uint64(50), uint64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(uint64(50), uint64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT IGNORE INTO thread_participants").
		WithArgs(uint64(50), uint64(2)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	_, _, err := repo.Send(context.Background(), 1, []uint64{2, 2}, "s", "b", nil, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestThreadDeniesNonParticipants(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectQuery("SELECT 1 FROM thread_participants").
		WithArgs(uint64(7), uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	_, err := repo.Thread(context.Background(), 7, 99)
	require.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteParticipationRemovesOnlyMembership(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectQuery("SELECT thread_id FROM messages").
		WithArgs(uint64(43)).
		WillReturnRows(sqlmock.NewRows([]string{"thread_id"}).AddRow(7))
	mock.ExpectExec("DELETE FROM thread_participants").
		WithArgs(uint64(7), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteParticipation(context.Background(), 43, 2)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteParticipationByOutsiderIsForbidden(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectQuery("SELECT thread_id FROM messages").
		WithArgs(uint64(43)).
		WillReturnRows(sqlmock.NewRows([]string{"thread_id"}).AddRow(7))
	mock.ExpectExec("DELETE FROM thread_participants").
		WithArgs(uint64(7), uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteParticipation(context.Background(), 43, 99)
	require.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteParticipationUnknownMessage(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectQuery("SELECT thread_id FROM messages").
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"thread_id"}))

	err := repo.DeleteParticipation(context.Background(), 404, 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo, mock := newMessageMock(t)

	mock.ExpectExec("INSERT IGNORE INTO message_reads").
		WithArgs(uint64(2), uint64(43)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT IGNORE INTO message_reads").
		WithArgs(uint64(2), uint64(43)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRead(context.Background(), 2, 43))
	require.NoError(t, repo.MarkRead(context.Background(), 2, 43))
	require.NoError(t, mock.ExpectationsWereMet())
}
