package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"saasresto/internal/model"
	"saasresto/internal/session"
	"saasresto/internal/tenanthost"
	"saasresto/pkg/logger"
	"saasresto/prometheus"
)

// Context key for the cached auth result. Request-scoped by construction:
// echo allocates a fresh context per request.
const authContextKey = "auth_session"

// Login and dashboard targets for the redirecting middleware variants.
const (
	loginPagePath = "/app/login"
	dashboardPath = "/app"
)

// Provider is the single source of truth per inbound request for "is
// there a valid session, and does it satisfy the required role".
type Provider struct {
	sessions *session.Manager
}

// NewProvider wires the auth context provider.
func NewProvider(sessions *session.Manager) *Provider {
	return &Provider{sessions: sessions}
}

// GetAuth resolves the caller's session from the cookie. The result is
// cached on the echo context, so the store is hit at most once per
// request no matter how many gates and handlers ask. Every failure mode —
// missing cookie, unknown token, expired session — returns
// ErrUnauthorized.
func (p *Provider) GetAuth(c echo.Context) (*session.Auth, error) {
	if cached, ok := c.Get(authContextKey).(*session.Auth); ok {
		return cached, nil
	}
	cookie, err := c.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrUnauthorized
	}
	a, err := p.sessions.Validate(c.Request().Context(), cookie.Value)
	if err != nil {
		return nil, ErrUnauthorized
	}
	// Defense in depth: a session must not cross the tenant boundary the
	// edge resolved for this request.
	if slug := c.Request().Header.Get(tenanthost.TenantSlugHeader); slug != "" && slug != a.Tenant.Slug {
		logger.FromContext(c).Warn("session tenant does not match resolved tenant",
			zap.String("session_tenant", a.Tenant.Slug),
			zap.String("request_tenant", slug))
		prometheus.RecordAuthError("tenant_mismatch")
		return nil, ErrUnauthorized
	}
	c.Set(authContextKey, a)
	return a, nil
}

// MustAuth returns the cached auth for a handler running behind
// RequireAuth. It is nil only if the middleware was not applied.
func MustAuth(c echo.Context) *session.Auth {
	a, _ := c.Get(authContextKey).(*session.Auth)
	return a
}

// RequireAuth gates API routes: unauthenticated callers get a 401 JSON
// body with no hint of why validation failed.
func (p *Provider) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := p.GetAuth(c); err != nil {
			prometheus.RecordAuthError("unauthorized")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return next(c)
	}
}

// RequireAuthPage gates rendered pages: unauthenticated callers are
// redirected to the login page instead of shown an error. The dashboard
// frontend that serves those pages is a separate deployment; it mounts
// this gate the way API routes mount RequireAuth.
func (p *Provider) RequireAuthPage(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := p.GetAuth(c); err != nil {
			return c.Redirect(http.StatusFound, loginPagePath)
		}
		return next(c)
	}
}

// RequireRole gates a route on the caller's role. An authenticated but
// under-privileged user is redirected to the dashboard — a soft deny, not
// a 403, since the caller is a real logged-in user.
func (p *Provider) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a, err := p.GetAuth(c)
			if err != nil {
				prometheus.RecordAuthError("unauthorized")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			for _, role := range roles {
				if a.User.Role == role {
					return next(c)
				}
			}
			logger.FromContext(c).Warn("role denied",
				zap.Uint("user_id", a.User.ID),
				zap.String("role", a.User.Role))
			prometheus.RecordAuthError("role_denied")
			return c.Redirect(http.StatusFound, dashboardPath)
		}
	}
}

// RequireOwner gates owner-only operations.
func (p *Provider) RequireOwner() echo.MiddlewareFunc {
	return p.RequireRole(model.RoleOwner)
}
