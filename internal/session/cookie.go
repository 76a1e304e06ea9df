package session

import (
	"net/http"
)

// NewCookie binds a raw session token to the session cookie: HTTP-only,
// SameSite=Lax, path-root, Max-Age equal to the session TTL. Secure and
// Domain follow the deployment configuration.
func (m *Manager) NewCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.cookieDomain,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns an expired cookie that removes the session token
// from the client regardless of whether the server-side delete succeeded.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
