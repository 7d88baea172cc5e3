package retention

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newSweeper(t *testing.T, now time.Time) (*Sweeper, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := New(db, 2*365*24*time.Hour, 365*24*time.Hour)
	s.Now = func() time.Time { return now }
	return s, mock
}

func TestRunIfDueSkipsRecentRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, mock := newSweeper(t, now)

	mock.ExpectQuery("SELECT last_run FROM maintenance_runs").
		WithArgs("retention").
		WillReturnRows(sqlmock.NewRows([]string{"last_run"}).AddRow(now.Add(-6 * time.Hour)))

	ran, err := s.RunIfDue(context.Background())
	require.NoError(t, err)
	require.False(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunIfDueSweepsWhenStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, mock := newSweeper(t, now)

	mock.ExpectQuery("SELECT last_run FROM maintenance_runs").
		WithArgs("retention").
		WillReturnRows(sqlmock.NewRows([]string{"last_run"}).AddRow(now.Add(-25 * time.Hour)))
	mock.ExpectExec("DELETE FROM bulletins").
		WithArgs(now.Add(-s.BulletinMaxAge)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM messages").
		WithArgs(now.Add(-s.MessageMaxAge)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM thread_participants").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO maintenance_runs").
		WithArgs("retention", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ran, err := s.RunIfDue(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunIfDueSweepsOnFirstEverRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, mock := newSweeper(t, now)

	mock.ExpectQuery("SELECT last_run FROM maintenance_runs").
		WithArgs("retention").
		WillReturnRows(sqlmock.NewRows([]string{"last_run"}))
	mock.ExpectExec("DELETE FROM bulletins").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM messages").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM thread_participants").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO maintenance_runs").
		WithArgs("retention", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ran, err := s.RunIfDue(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
	require.NoError(t, mock.ExpectationsWereMet())
}
