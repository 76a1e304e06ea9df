package session

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"saasresto/internal/model"
	"saasresto/internal/store"
)

var dbSeq int

func setupManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	dbSeq++
	dsn := fmt.Sprintf("file:session_test_%d?mode=memory&cache=shared", dbSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}, &model.User{}, &model.Session{}))
	st := store.New(db)
	return NewManager(st, 7, "", false), st
}

func seedUser(t *testing.T, st *store.Store) (*model.User, *model.Tenant) {
	t.Helper()
	tenant := &model.Tenant{Slug: "demo", Name: "Demo Restaurant"}
	owner := &model.User{Email: "demo@demo.com", PasswordHash: "x"}
	require.NoError(t, st.CreateTenantWithOwner(context.Background(), tenant, owner))
	return owner, tenant
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43, "32 bytes base64url without padding")
	assert.NotContains(t, a, "=")
}

func TestHashToken(t *testing.T) {
	h := HashToken("some-token")
	assert.Len(t, h, 64, "hex-encoded sha256")
	assert.Equal(t, h, HashToken("some-token"))
	assert.NotEqual(t, h, HashToken("other-token"))
}

func TestIssueAndValidate(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()
	user, tenant := seedUser(t, st)

	token, err := m.Issue(ctx, user, tenant, Metadata{UserAgent: "test-agent", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	auth, err := m.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, auth.User.ID)
	assert.Equal(t, "demo", auth.Tenant.Slug)
	assert.Equal(t, "test-agent", auth.Session.UserAgent)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), auth.Session.ExpiresAt, time.Minute)
}

func TestTokenStoredOnlyAsHash(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()
	user, tenant := seedUser(t, st)

	token, err := m.Issue(ctx, user, tenant, Metadata{})
	require.NoError(t, err)

	sess, err := st.SessionByTokenHash(ctx, HashToken(token))
	require.NoError(t, err)
	assert.Equal(t, HashToken(token), sess.TokenHash)
	assert.NotEqual(t, token, sess.TokenHash, "the raw token never touches the database")

	_, err = st.SessionByTokenHash(ctx, token)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestValidateUnknownToken(t *testing.T) {
	m, _ := setupManager(t)
	_, err := m.Validate(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestValidateExpiredSessionDeletesRecord(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()
	user, tenant := seedUser(t, st)

	token, err := GenerateToken()
	require.NoError(t, err)
	require.NoError(t, st.CreateSession(ctx, &model.Session{
		TenantID:  tenant.ID,
		UserID:    user.ID,
		TokenHash: HashToken(token),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The record is gone, so a second attempt reports not found.
	_, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeIsIdempotent(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()
	user, tenant := seedUser(t, st)

	token, err := m.Issue(ctx, user, tenant, Metadata{})
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, token))
	_, err = m.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, m.Revoke(ctx, token), "revoking twice is not an error")
	assert.NoError(t, m.Revoke(ctx, "never-issued"))
}

func TestRevokeAllForUserKeepsCurrent(t *testing.T) {
	m, st := setupManager(t)
	ctx := context.Background()
	user, tenant := seedUser(t, st)

	tokenA, err := m.Issue(ctx, user, tenant, Metadata{})
	require.NoError(t, err)
	tokenB, err := m.Issue(ctx, user, tenant, Metadata{})
	require.NoError(t, err)

	authA, err := m.Validate(ctx, tokenA)
	require.NoError(t, err)

	require.NoError(t, m.RevokeAllForUser(ctx, user.ID, authA.Session.ID))

	_, err = m.Validate(ctx, tokenA)
	assert.NoError(t, err, "the excepted session survives")
	_, err = m.Validate(ctx, tokenB)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNewCookie(t *testing.T) {
	m := NewManager(nil, 7, "saasresto.example", true)

	c := m.NewCookie("raw-token")
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "raw-token", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, "saasresto.example", c.Domain)
	assert.Equal(t, 7*24*60*60, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestClearCookie(t *testing.T) {
	m := NewManager(nil, 7, "", false)

	c := m.ClearCookie()
	assert.Equal(t, CookieName, c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.True(t, c.HttpOnly)
}
