// Package session owns the full lifecycle of opaque bearer session tokens:
// issue, validate, revoke, and the HTTP-only cookie that carries them.
// Only the SHA-256 hash of a token is ever persisted.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"saasresto/internal/model"
	"saasresto/internal/store"
)

// CookieName is the fixed identifier of the session cookie.
const CookieName = "session_token"

// 256 bits of entropy per token.
const tokenBytes = 32

var (
	// ErrSessionNotFound means no session matches the presented token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired means the session existed but its expiry passed.
	// The record is deleted when this is returned.
	ErrSessionExpired = errors.New("session expired")
)

// Auth is the validated {user, tenant, session} triple exposed to every
// protected operation.
type Auth struct {
	User    *model.User
	Tenant  *model.Tenant
	Session *model.Session
}

// Metadata is optional per-session audit information captured at issue
// time.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// Manager issues and validates session tokens against the credential
// store.
type Manager struct {
	store        *store.Store
	ttl          time.Duration
	cookieDomain string
	cookieSecure bool
}

// NewManager creates a Manager with the session TTL in days and the cookie
// deployment settings.
func NewManager(st *store.Store, ttlDays int, cookieDomain string, cookieSecure bool) *Manager {
	return &Manager{
		store:        st,
		ttl:          time.Duration(ttlDays) * 24 * time.Hour,
		cookieDomain: cookieDomain,
		cookieSecure: cookieSecure,
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// GenerateToken returns a URL-safe token with 256 bits of entropy.
// Exposed for the reset-token flow, which stores tokens the same way.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue creates a session for user under tenant and returns the raw token.
// The raw token is never persisted; callers bind it to the cookie only
// after this returns, so a cookie can never point at a session that was
// not durably created.
func (m *Manager) Issue(ctx context.Context, user *model.User, tenant *model.Tenant, meta Metadata) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	sess := &model.Session{
		TenantID:  tenant.ID,
		UserID:    user.ID,
		TokenHash: HashToken(token),
		ExpiresAt: time.Now().Add(m.ttl),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// Validate resolves a raw token to the joined {user, tenant, session}
// triple. An expired session is deleted on the spot — expiry is enforced
// lazily at validation time, there is no background sweep.
func (m *Manager) Validate(ctx context.Context, rawToken string) (*Auth, error) {
	sess, err := m.store.SessionByTokenHash(ctx, HashToken(rawToken))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = m.store.DeleteSessionByID(ctx, sess.ID)
		return nil, ErrSessionExpired
	}
	return &Auth{User: &sess.User, Tenant: &sess.Tenant, Session: sess}, nil
}

// Revoke deletes the session matching a raw token. Idempotent: revoking an
// already-absent session is not an error.
func (m *Manager) Revoke(ctx context.Context, rawToken string) error {
	return m.store.DeleteSessionByTokenHash(ctx, HashToken(rawToken))
}

// RevokeAllForUser deletes every session for a user, optionally keeping
// one alive (the current device during a password change).
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, exceptSessionID uint) error {
	return m.store.DeleteSessionsForUser(ctx, userID, exceptSessionID)
}
