package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/holyokefd/portal/internal/repository"
)

func expectUser(mock sqlmock.Sqlmock, id uint64, roles ...string) {
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "name", "username", "password_hash",
			"is_admin", "role", "status", "must_change_password", "created_at",
		}).AddRow(id, "u@example.com", "Some User", "someuser", "$2a$10$digest",
			false, roles[0], "active", false, time.Now()))
	roleRows := sqlmock.NewRows([]string{"role"})
	for _, r := range roles {
		roleRows.AddRow(r)
	}
	mock.ExpectQuery("SELECT role FROM user_roles").
		WithArgs(id).
		WillReturnRows(roleRows)
}

func permissionsFor(t *testing.T, category string, roles ...string) map[string]bool {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectUser(mock, 5, roles...)

	h := NewBulletinHandler(repository.NewUserRepo(db), repository.NewBulletinRepo(db),
		repository.NewAttachmentRepo(db), nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/bulletins/permissions/"+category+"?userId=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/bulletins/permissions/:category")
	c.SetParamNames("category")
	c.SetParamValues(category)
	c.Set("user_id", uint64(5)) // token subject matches the userId param

	require.NoError(t, h.Permissions(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPermissionsProbe(t *testing.T) {
	// A firefighter can read but not post the general boards.
	out := permissionsFor(t, "west-wing", "firefighter")
	require.True(t, out["canView"])
	require.False(t, out["canPost"])
	require.False(t, out["canDelete"])

	// Training role posts to its own board; only chiefs delete there.
	out = permissionsFor(t, "training", "training")
	require.True(t, out["canView"])
	require.True(t, out["canPost"])
	require.False(t, out["canDelete"])

	// Admin overrides everything, including commissioners.
	out = permissionsFor(t, "commissioners", "admin")
	require.True(t, out["canView"])
	require.True(t, out["canPost"])
	require.True(t, out["canDelete"])
}

func TestPermissionsRejectsForeignUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewBulletinHandler(repository.NewUserRepo(db), repository.NewBulletinRepo(db),
		repository.NewAttachmentRepo(db), nil)

	// The token belongs to user 9 but the request claims to act as
	// user 5; no lookup happens and the answer is a flat 403.
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/bulletins/permissions/west-wing?userId=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("category")
	c.SetParamValues("west-wing")
	c.Set("user_id", uint64(9))

	require.NoError(t, h.Permissions(c))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionsRequiresUserID(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	h := NewBulletinHandler(repository.NewUserRepo(db), repository.NewBulletinRepo(db),
		repository.NewAttachmentRepo(db), nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/bulletins/permissions/west-wing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("category")
	c.SetParamValues("west-wing")

	require.NoError(t, h.Permissions(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
