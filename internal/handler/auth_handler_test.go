package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"saasresto/internal/auth"
	"saasresto/internal/model"
	"saasresto/internal/ratelimit"
	"saasresto/internal/session"
	"saasresto/internal/store"
	"saasresto/internal/tenanthost"
	"saasresto/pkg/config"
)

const testBaseDomain = "saasresto.example"

var dbSeq int

type testEnv struct {
	e        *echo.Echo
	handler  *AuthHandler
	provider *auth.Provider
	store    *store.Store
	sessions *session.Manager
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:handler_test_%d?mode=memory&cache=shared", dbSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{}, &model.User{}, &model.Session{}, &model.PasswordResetToken{},
	))

	st := store.New(db)
	sessions := session.NewManager(st, 7, "", false)
	loginLimiter := ratelimit.NewMemory(5, time.Minute)
	t.Cleanup(loginLimiter.Close)
	resetLimiter := ratelimit.NewMemory(5, time.Minute)
	t.Cleanup(resetLimiter.Close)
	svc := auth.NewService(st, sessions, loginLimiter)
	provider := auth.NewProvider(sessions)
	cfg := &config.Config{App: config.AppConfig{BaseDomain: testBaseDomain}}

	return &testEnv{
		e:        echo.New(),
		handler:  NewAuthHandler(svc, sessions, provider, resetLimiter, cfg),
		provider: provider,
		store:    st,
		sessions: sessions,
	}
}

func (env *testEnv) seedAccount(t *testing.T, slug, email, password string) (*model.Tenant, *model.User) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	tenant := &model.Tenant{Slug: slug, Name: slug + " restaurant"}
	owner := &model.User{Email: email, PasswordHash: hash, Name: "Owner"}
	require.NoError(t, env.store.CreateTenantWithOwner(context.Background(), tenant, owner))
	return tenant, owner
}

// postJSON builds an echo context for a JSON POST against a tenant
// subdomain, the way a request arrives after the edge router ran.
func (env *testEnv) postJSON(path, host, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Host = host
	rec := httptest.NewRecorder()
	return env.e.NewContext(req, rec), rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	c, rec := env.postJSON("/api/auth/login", "demo."+testBaseDomain,
		`{"email":"demo@demo.com","password":"Demo12345!"}`)
	require.NoError(t, env.handler.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie, "a successful login sets the session cookie")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)

	// The cookie maps to a live session.
	a, err := env.sessions.Validate(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "demo@demo.com", a.User.Email)
}

func TestLoginHonorsEdgeHeaderOverHost(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	c, rec := env.postJSON("/api/auth/login", "app."+testBaseDomain,
		`{"email":"demo@demo.com","password":"Demo12345!"}`)
	c.Request().Header.Set(tenanthost.TenantSlugHeader, "demo")
	require.NoError(t, env.handler.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	c, rec := env.postJSON("/api/auth/login", "demo."+testBaseDomain,
		`{"email":"demo@demo.com","password":"nope"}`)
	require.NoError(t, env.handler.Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
	assert.Nil(t, sessionCookie(rec), "no cookie on failure")
}

func TestLoginUnresolvableTenant(t *testing.T) {
	env := setupEnv(t)

	c, rec := env.postJSON("/api/auth/login", testBaseDomain,
		`{"email":"demo@demo.com","password":"Demo12345!"}`)
	require.NoError(t, env.handler.Login(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginMissingFields(t *testing.T) {
	env := setupEnv(t)

	c, rec := env.postJSON("/api/auth/login", "demo."+testBaseDomain, `{"email":"demo@demo.com"}`)
	require.NoError(t, env.handler.Login(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRateLimitedResponse(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	for i := 0; i < 5; i++ {
		c, rec := env.postJSON("/api/auth/login", "demo."+testBaseDomain,
			`{"email":"demo@demo.com","password":"nope"}`)
		require.NoError(t, env.handler.Login(c))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	c, rec := env.postJSON("/api/auth/login", "demo."+testBaseDomain,
		`{"email":"demo@demo.com","password":"Demo12345!"}`)
	require.NoError(t, env.handler.Login(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too many attempts")
}

func TestLogoutClearsCookieAndRevokes(t *testing.T) {
	env := setupEnv(t)
	tenant, owner := env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	token, err := env.sessions.Issue(context.Background(), owner, tenant, session.Metadata{})
	require.NoError(t, err)

	c, rec := env.postJSON("/api/auth/logout", "demo."+testBaseDomain, "")
	c.Request().AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	require.NoError(t, env.handler.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)

	_, err = env.sessions.Validate(context.Background(), token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestLogoutWithoutSession(t *testing.T) {
	env := setupEnv(t)

	c, rec := env.postJSON("/api/auth/logout", "demo."+testBaseDomain, "")
	require.NoError(t, env.handler.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code, "logout never fails user-visibly")
	require.NotNil(t, sessionCookie(rec))
}

func TestMe(t *testing.T) {
	env := setupEnv(t)
	tenant, owner := env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	token, err := env.sessions.Issue(context.Background(), owner, tenant, session.Metadata{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	require.NoError(t, env.provider.RequireAuth(env.handler.Me)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"demo@demo.com"`)
	assert.Contains(t, rec.Body.String(), `"slug":"demo"`)
	assert.Contains(t, rec.Body.String(), `"role":"OWNER"`)
}

func TestRegisterCreatesTenantAndLogsIn(t *testing.T) {
	env := setupEnv(t)

	c, rec := env.postJSON("/api/auth/register", "app."+testBaseDomain,
		`{"slug":"pizza","restaurant_name":"Pizza Place","name":"Pat","email":"pat@pizza.test","password":"Secret123!"}`)
	require.NoError(t, env.handler.Register(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	a, err := env.sessions.Validate(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, a.User.Role)
	assert.Equal(t, "pizza", a.Tenant.Slug)
}

func TestRegisterConflictOnTakenSlug(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	c, rec := env.postJSON("/api/auth/register", "app."+testBaseDomain,
		`{"slug":"demo","restaurant_name":"Copycat","email":"copy@cat.test","password":"Secret123!"}`)
	require.NoError(t, env.handler.Register(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterWeakPassword(t *testing.T) {
	env := setupEnv(t)

	c, rec := env.postJSON("/api/auth/register", "app."+testBaseDomain,
		`{"slug":"pizza","restaurant_name":"Pizza Place","email":"pat@pizza.test","password":"short"}`)
	require.NoError(t, env.handler.Register(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlugAvailability(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/slug-availability?slug=demo", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, env.handler.SlugAvailability(env.e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":false}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/auth/slug-availability?slug=pizza", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, env.handler.SlugAvailability(env.e.NewContext(req, rec)))
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())
}

func TestChangePasswordKeepsCurrentDevice(t *testing.T) {
	env := setupEnv(t)
	tenant, owner := env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")
	ctx := context.Background()

	tokenA, err := env.sessions.Issue(ctx, owner, tenant, session.Metadata{UserAgent: "laptop"})
	require.NoError(t, err)
	tokenB, err := env.sessions.Issue(ctx, owner, tenant, session.Metadata{UserAgent: "phone"})
	require.NoError(t, err)

	c, rec := env.postJSON("/api/auth/change-password", "demo."+testBaseDomain,
		`{"current_password":"Demo12345!","new_password":"NewSecret1!"}`)
	c.Request().AddCookie(&http.Cookie{Name: session.CookieName, Value: tokenA})
	require.NoError(t, env.provider.RequireAuth(env.handler.ChangePassword)(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = env.sessions.Validate(ctx, tokenA)
	assert.NoError(t, err, "the requesting session survives the change")
	_, err = env.sessions.Validate(ctx, tokenB)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestForgotPasswordAnswersIdentically(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	c, rec := env.postJSON("/api/auth/forgot-password", "demo."+testBaseDomain,
		`{"email":"demo@demo.com"}`)
	require.NoError(t, env.handler.ForgotPassword(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	known := rec.Body.String()

	c, rec = env.postJSON("/api/auth/forgot-password", "demo."+testBaseDomain,
		`{"email":"ghost@demo.com"}`)
	require.NoError(t, env.handler.ForgotPassword(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, known, rec.Body.String(), "unknown accounts get the same answer")
}

func TestRecoveryEndpointsUseOwnRateWindow(t *testing.T) {
	env := setupEnv(t)
	env.seedAccount(t, "demo", "demo@demo.com", "Demo12345!")

	// A tight recovery window must not bleed into the login window.
	reset := ratelimit.NewMemory(1, time.Minute)
	t.Cleanup(reset.Close)
	h := NewAuthHandler(env.handler.svc, env.sessions, env.provider, reset, env.handler.cfg)

	c, rec := env.postJSON("/api/auth/forgot-password", "demo."+testBaseDomain,
		`{"email":"demo@demo.com"}`)
	require.NoError(t, h.ForgotPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = env.postJSON("/api/auth/forgot-password", "demo."+testBaseDomain,
		`{"email":"demo@demo.com"}`)
	require.NoError(t, h.ForgotPassword(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	c, rec = env.postJSON("/api/auth/login", "demo."+testBaseDomain,
		`{"email":"demo@demo.com","password":"Demo12345!"}`)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code, "login rides its own limiter")
}

func TestResetPasswordInvalidToken(t *testing.T) {
	env := setupEnv(t)

	c, rec := env.postJSON("/api/auth/reset-password", "demo."+testBaseDomain,
		`{"token":"never-issued","new_password":"NewSecret1!"}`)
	require.NoError(t, env.handler.ResetPassword(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired")
}
