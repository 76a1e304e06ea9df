package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"saasresto/internal/auth"
	"saasresto/internal/ratelimit"
	"saasresto/internal/session"
	"saasresto/internal/tenanthost"
	"saasresto/pkg/config"
	"saasresto/pkg/logger"
	"saasresto/prometheus"
)

// Stable client-facing messages. Login failures share one message no
// matter which step failed; forgot-password answers identically whether
// or not the account exists.
const (
	msgInvalidCredentials = "invalid credentials"
	msgTooManyAttempts    = "too many attempts, please try again later"
	msgResetSent          = "if an account exists for this email, a reset link has been sent"
)

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	svc      *auth.Service
	sessions *session.Manager
	provider *auth.Provider
	// resetLimiter bounds the recovery endpoints (forgot-password,
	// change-password) by client IP, on its own window separate from the
	// per-account login limiter inside the service.
	resetLimiter ratelimit.Limiter
	cfg          *config.Config
}

// NewAuthHandler wires the authentication endpoints.
func NewAuthHandler(svc *auth.Service, sessions *session.Manager, provider *auth.Provider, resetLimiter ratelimit.Limiter, cfg *config.Config) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, provider: provider, resetLimiter: resetLimiter, cfg: cfg}
}

// resolveTenantSlug returns the tenant slug for the request: the header
// set by the edge router when present, otherwise parsed from the Host
// header (auth endpoints live under /api, which the edge never rewrites).
func (h *AuthHandler) resolveTenantSlug(c echo.Context) string {
	if slug := c.Request().Header.Get(tenanthost.TenantSlugHeader); slug != "" {
		return slug
	}
	slug, ok := tenanthost.ExtractSlug(c.Request().Host, h.cfg.App.BaseDomain)
	if !ok {
		return ""
	}
	return slug
}

func requestMetadata(c echo.Context) session.Metadata {
	return session.Metadata{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	tenantSlug := h.resolveTenantSlug(c)
	if tenantSlug == "" {
		prometheus.RecordAuthError("tenant_not_resolved")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	token, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, tenantSlug, requestMetadata(c))
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		log.Warn("Login rate limited", zap.String("tenant", tenantSlug))
		prometheus.RecordRateLimited("login")
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": msgTooManyAttempts})
	case errors.Is(err, auth.ErrInvalidCredentials):
		log.Info("Login failed", zap.String("tenant", tenantSlug))
		prometheus.RecordAuthError("invalid_credentials")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msgInvalidCredentials})
	case err != nil:
		log.Error("Login error", zap.Error(err))
		prometheus.RecordAuthError("internal")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred, please try again"})
	}

	// The session row exists by now; only then does the cookie go out.
	c.SetCookie(h.sessions.NewCookie(token))
	prometheus.IncreaseActiveSessions()
	log.Info("User logged in", zap.String("tenant", tenantSlug))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Logout handles POST /api/auth/logout. The cookie is cleared regardless
// of whether the server-side delete succeeds — logout never fails
// user-visibly.
func (h *AuthHandler) Logout(c echo.Context) error {
	log := logger.FromContext(c)

	c.SetCookie(h.sessions.ClearCookie())
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Revoke(c.Request().Context(), cookie.Value); err != nil {
			log.Error("Failed to revoke session on logout", zap.Error(err))
		} else {
			prometheus.DecreaseActiveSessions()
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Me handles GET /api/auth/me behind RequireAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	a := auth.MustAuth(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user": map[string]interface{}{
			"id":    a.User.ID,
			"email": a.User.Email,
			"name":  a.User.Name,
			"role":  a.User.Role,
		},
		"tenant": map[string]interface{}{
			"id":   a.Tenant.ID,
			"slug": a.Tenant.Slug,
			"name": a.Tenant.Name,
		},
		"session": map[string]interface{}{
			"expires_at": a.Session.ExpiresAt,
		},
	})
}

// Register handles POST /api/auth/register: creates the tenant and its
// first owner, then logs the owner in.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Slug           string `json:"slug"`
		RestaurantName string `json:"restaurant_name"`
		Name           string `json:"name"`
		Email          string `json:"email"`
		Password       string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Slug == "" || req.RestaurantName == "" || req.Email == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug, restaurant_name and email are required"})
	}
	if len(req.Password) < 8 {
		prometheus.RecordAuthError("weak_password")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	token, err := h.svc.Register(c.Request().Context(), req.Slug, req.RestaurantName, req.Name, req.Email, req.Password, requestMetadata(c))
	switch {
	case errors.Is(err, auth.ErrSlugUnavailable):
		prometheus.RecordAuthError("slug_unavailable")
		return c.JSON(http.StatusConflict, echo.Map{"error": "this restaurant address is not available"})
	case err != nil:
		log.Error("Registration failed", zap.Error(err))
		prometheus.RecordAuthError("registration_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	c.SetCookie(h.sessions.NewCookie(token))
	prometheus.IncreaseActiveSessions()
	log.Info("Tenant registered", zap.String("slug", req.Slug))
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "slug": req.Slug})
}

// SlugAvailability handles GET /api/auth/slug-availability?slug=...
func (h *AuthHandler) SlugAvailability(c echo.Context) error {
	slug := c.QueryParam("slug")
	if slug == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug is required"})
	}
	available, err := h.svc.SlugAvailable(c.Request().Context(), slug)
	if err != nil {
		logger.FromContext(c).Error("Slug availability check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}
	return c.JSON(http.StatusOK, echo.Map{"available": available})
}

// ChangePassword handles POST /api/auth/change-password behind
// RequireAuth. Other sessions for the user are revoked; the current one
// stays alive.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	if !h.resetLimiter.Allow("change-password:" + c.RealIP()) {
		prometheus.RecordRateLimited("change-password")
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": msgTooManyAttempts})
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	a := auth.MustAuth(c)
	err := h.svc.ChangePassword(c.Request().Context(), a.Tenant.ID, a.User.ID, req.CurrentPassword, req.NewPassword, a.Session.ID)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	case err != nil:
		log.Error("Password change failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred, please try again"})
	}

	log.Info("Password changed", zap.Uint("user_id", a.User.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "your password has been changed"})
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is
// the same whether or not the account exists; mail delivery is out of
// scope, so the reset link is logged for the operator.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	log := logger.FromContext(c)

	if !h.resetLimiter.Allow("forgot-password:" + c.RealIP()) {
		prometheus.RecordRateLimited("forgot-password")
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": msgTooManyAttempts})
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}

	tenantSlug := h.resolveTenantSlug(c)
	if tenantSlug == "" {
		// Same generic answer: a missing tenant must not be
		// distinguishable from a missing account.
		return c.JSON(http.StatusOK, echo.Map{"message": msgResetSent})
	}

	token, err := h.svc.ForgotPassword(c.Request().Context(), tenantSlug, req.Email)
	if err != nil {
		log.Error("Forgot-password failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred, please try again"})
	}
	if token != "" {
		log.Info("Password reset token issued",
			zap.String("tenant", tenantSlug),
			zap.String("reset_path", "/app/reset-password?token="+token))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msgResetSent})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidResetToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired reset token"})
	case err != nil:
		log.Error("Password reset failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred, please try again"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "your password has been reset, please sign in"})
}
