package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	e.Use(Middleware(Config{}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/cart", ok)
	e.POST("/cart/items", ok)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_SafeMethodIssuesToken(t *testing.T) {
	t.Parallel()

	rec := serve(t, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	token := rec.Header().Get("X-CSRF-Token")
	assert.NotEmpty(t, token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "XSRF-TOKEN", cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
}

func TestMiddleware_UnsafeMethod(t *testing.T) {
	t.Parallel()

	newReq := func(header, origin string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "http://shop.test/cart/items", nil)
		req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: "tok"})
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"matching token", newReq("tok", "http://shop.test"), http.StatusNoContent},
		{"missing token", newReq("", "http://shop.test"), http.StatusForbidden},
		{"wrong token", newReq("other", "http://shop.test"), http.StatusForbidden},
		{"foreign origin", newReq("tok", "http://evil.test"), http.StatusForbidden},
		{"no origin", newReq("tok", ""), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.status, serve(t, tc.req).Code)
		})
	}
}
