package jwt

import (
	"net/http"
	"time"
)

// Cookie names shared with the auth service.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// SessionCookie builds an HttpOnly, Lax, root-path cookie. secure is off only for
// plain-http local runs.
func SessionCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie tells the browser to drop name.
func ExpiredCookie(name string, secure bool) *http.Cookie {
	c := SessionCookie(name, "", time.Unix(0, 0), secure)
	c.MaxAge = -1
	return c
}
