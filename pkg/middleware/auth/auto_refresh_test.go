package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BRRODORTEGA/SOFA-sub000/pkg/authclient"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/tokens"
)

var secret = []byte("test-jwt-secret")

type fakeRefresher struct {
	resp *authclient.RefreshResponse
	err  error
}

func (f *fakeRefresher) RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*authclient.RefreshResponse, error) {
	return f.resp, f.err
}

func sign(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(tokens.AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, secret)
	require.NoError(t, err)
	return tok
}

func run(t *testing.T, mw echo.MiddlewareFunc, cookies ...*http.Cookie) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return c, err
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestRequireAuth_ValidToken(t *testing.T) {
	t.Parallel()

	sub := uuid.NewString()
	m := NewAutoRefreshMiddleware(secret, nil)
	c, err := run(t, m.RequireAuth, &http.Cookie{Name: "accessToken", Value: sign(t, sub, "user", time.Now().Add(time.Minute))})
	require.NoError(t, err)
	assert.Equal(t, sub, c.Get("user_id"))
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	t.Parallel()

	m := NewAutoRefreshMiddleware(secret, nil)
	_, err := run(t, m.RequireAuth)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestRequireAdmin_RejectsCustomer(t *testing.T) {
	t.Parallel()

	m := NewAutoRefreshMiddleware(secret, nil)
	_, err := run(t, m.RequireAdmin, &http.Cookie{Name: "accessToken", Value: sign(t, uuid.NewString(), "user", time.Now().Add(time.Minute))})
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestRequireAuth_RefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	sub := uuid.NewString()
	fresh := sign(t, sub, "user", time.Now().Add(time.Minute))
	m := NewAutoRefreshMiddleware(secret, &fakeRefresher{resp: &authclient.RefreshResponse{
		AccessToken:  fresh,
		RefreshToken: "r2",
		AccessExp:    time.Now().Add(time.Minute).Unix(),
		RefreshExp:   time.Now().Add(time.Hour).Unix(),
	}})

	c, err := run(t, m.RequireAuth,
		&http.Cookie{Name: "accessToken", Value: sign(t, sub, "user", time.Now().Add(-time.Minute))},
		&http.Cookie{Name: "refreshToken", Value: "r1"},
	)
	require.NoError(t, err)
	assert.Equal(t, sub, c.Get("user_id"))
}

func TestRequireAuth_RefreshFailure(t *testing.T) {
	t.Parallel()

	m := NewAutoRefreshMiddleware(secret, &fakeRefresher{err: errors.New("boom")})
	_, err := run(t, m.RequireAuth,
		&http.Cookie{Name: "accessToken", Value: sign(t, uuid.NewString(), "user", time.Now().Add(-time.Minute))},
		&http.Cookie{Name: "refreshToken", Value: "r1"},
	)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}
