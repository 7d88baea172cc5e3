package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/model"
)

func newBulletinMock(t *testing.T) (*BulletinRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBulletinRepo(db), mock
}

func TestCreateDeniedBeforeAnyWrite(t *testing.T) {
	repo, mock := newBulletinMock(t)
	author := &model.User{ID: 5, Roles: []string{authz.RoleFirefighter}}

	_, err := repo.Create(context.Background(), "t", "b", authz.CategoryTraining, author, nil)
	require.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInsertsBulletinWithAttachments(t *testing.T) {
	repo, mock := newBulletinMock(t)
	author := &model.User{ID: 5, Roles: []string{authz.RoleTraining}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bulletins").
		WithArgs("t", "b", authz.CategoryTraining, uint64(5)).
		WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectExec("INSERT INTO attachments").
		WithArgs("abc.pdf", "roster.pdf", "data/uploads/abc.pdf", int64(1024), "application/pdf", int64(21)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := repo.Create(context.Background(), "t", "b", authz.CategoryTraining, author, []AttachmentInput{{
		Filename:         "abc.pdf",
		OriginalFilename: "roster.pdf",
		FilePath:         "data/uploads/abc.pdf",
		FileSize:         1024,
		MimeType:         "application/pdf",
	}})
	require.NoError(t, err)
	require.Equal(t, uint64(21), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByCategoryDeniedViewerGetsEmptyList(t *testing.T) {
	repo, mock := newBulletinMock(t)
	viewer := &model.User{ID: 5, Roles: []string{authz.RoleFirefighter}}

	// No query runs: the empty list is indistinguishable from an empty
	// category.
	out, err := repo.ListByCategory(context.Background(), authz.CategoryCommissioners, viewer)
	require.NoError(t, err)
	require.Empty(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAllowsAuthorWithoutRank(t *testing.T) {
	repo, mock := newBulletinMock(t)
	author := &model.User{ID: 5, Roles: []string{authz.RoleFirefighter}}

	mock.ExpectQuery("SELECT category, user_id FROM bulletins").
		WithArgs(uint64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"category", "user_id"}).AddRow(authz.CategoryWestWing, 5))
	mock.ExpectExec("DELETE FROM bulletins").
		WithArgs(uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), 21, author)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByUnrankedNonAuthorIsForbidden(t *testing.T) {
	repo, mock := newBulletinMock(t)
	actor := &model.User{ID: 6, Roles: []string{authz.RoleOfficer}}

	mock.ExpectQuery("SELECT category, user_id FROM bulletins").
		WithArgs(uint64(21)).
		WillReturnRows(sqlmock.NewRows([]string{"category", "user_id"}).AddRow(authz.CategoryWestWing, 5))

	err := repo.Delete(context.Background(), 21, actor)
	require.ErrorIs(t, err, ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingBulletinIsNotFound(t *testing.T) {
	repo, mock := newBulletinMock(t)
	actor := &model.User{ID: 6, Roles: []string{authz.RoleChief}}

	mock.ExpectQuery("SELECT category, user_id FROM bulletins").
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"category", "user_id"}))

	err := repo.Delete(context.Background(), 404, actor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadRepeatsAreNoOps(t *testing.T) {
	repo, mock := newBulletinMock(t)

	mock.ExpectExec("INSERT IGNORE INTO bulletin_reads").
		WithArgs(uint64(5), uint64(21)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT IGNORE INTO bulletin_reads").
		WithArgs(uint64(5), uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkRead(context.Background(), 5, 21))
	require.NoError(t, repo.MarkRead(context.Background(), 5, 21))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListVisibleFiltersByViewPolicy(t *testing.T) {
	repo, mock := newBulletinMock(t)
	viewer := &model.User{ID: 5, Roles: []string{authz.RoleFirefighter}}

	mock.ExpectQuery("SELECT id, category, created_at FROM bulletins").
		WillReturnRows(sqlmock.NewRows([]string{"id", "category", "created_at"}).
			AddRow(1, authz.CategoryWestWing, sampleTime()).
			AddRow(2, authz.CategoryCommissioners, sampleTime()).
			AddRow(3, authz.CategoryTraining, sampleTime()))

	refs, err := repo.ListVisible(context.Background(), viewer)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	for _, ref := range refs {
		require.NotEqual(t, authz.CategoryCommissioners, ref.Category)
	}
}
