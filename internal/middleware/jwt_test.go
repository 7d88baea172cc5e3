package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/holyokefd/portal/internal/utils"
)

func runJWT(t *testing.T, secret, header string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	require.NoError(t, JWTAuth(secret)(next)(c))
	return rec, c
}

func TestJWTAuthAcceptsIssuedToken(t *testing.T) {
	tok, err := utils.NewAccessToken("sekrit", 5, []string{"chief", "training"}, 5)
	require.NoError(t, err)

	rec, c := runJWT(t, "sekrit", "Bearer "+tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(5), Subject(c))
	require.Equal(t, []string{"chief", "training"}, c.Get("roles"))
}

func TestSubjectIsZeroWithoutAuth(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	require.Equal(t, uint64(0), Subject(c))
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec, _ := runJWT(t, "sekrit", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	tok, err := utils.NewAccessToken("other", 5, []string{"chief"}, 5)
	require.NoError(t, err)

	rec, _ := runJWT(t, "sekrit", "Bearer "+tok.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
