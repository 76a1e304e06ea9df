// Package auth implements credential verification, the login state
// machine, account registration and the password-reset flow, plus the
// per-request auth context consumed by protected handlers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"saasresto/internal/model"
	"saasresto/internal/ratelimit"
	"saasresto/internal/session"
	"saasresto/internal/store"
	"saasresto/internal/tenanthost"
)

const bcryptCost = 12

const resetTokenTTL = time.Hour

// dummyHash is a bcrypt hash of a throwaway value. When the tenant or the
// user does not exist, Login still runs one comparison against it so the
// response time does not reveal whether the account exists.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("saasresto.dummy.compare"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// HashPassword hashes a plaintext password with bcrypt at cost 12.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// LoginRateKey builds the fixed-window bucket key for a login attempt.
func LoginRateKey(tenantSlug, email string) string {
	return "login:" + strings.ToLower(tenantSlug) + ":" + strings.ToLower(email)
}

// Service verifies login attempts and owns the account lifecycle
// operations that touch credentials.
type Service struct {
	store    *store.Store
	sessions *session.Manager
	limiter  ratelimit.Limiter

	// verify compares a bcrypt hash against a candidate password.
	// Swappable in tests to observe that rate-limited attempts never
	// reach a credential check.
	verify func(hashedPassword, password []byte) error
}

// NewService wires the authentication service.
func NewService(st *store.Store, sessions *session.Manager, limiter ratelimit.Limiter) *Service {
	return &Service{
		store:    st,
		sessions: sessions,
		limiter:  limiter,
		verify:   bcrypt.CompareHashAndPassword,
	}
}

// Login verifies email/password credentials scoped to a tenant and, on
// success, issues a session and returns the raw token.
//
// The rate-limit gate runs strictly before any store or bcrypt work: it is
// the mechanism that bounds brute-force cost, so limited attempts must be
// cheap to reject. Every unlimited path performs exactly one bcrypt
// comparison — against the stored hash when the user exists, against a
// dummy hash when the tenant or user does not — and all credential
// failures collapse to ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password, tenantSlug string, meta session.Metadata) (string, error) {
	key := LoginRateKey(tenantSlug, email)
	if !s.limiter.Allow(key) {
		return "", ErrRateLimited
	}

	tenant, err := s.store.TenantBySlug(ctx, tenantSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.verify(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("resolve tenant: %w", err)
	}

	user, err := s.store.UserByEmail(ctx, tenant.ID, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.verify(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("look up user: %w", err)
	}

	if err := s.verify([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	s.limiter.Clear(key)
	token, err := s.sessions.Issue(ctx, user, tenant, meta)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Register creates a tenant with its first OWNER user and logs the owner
// in. The slug is validated against the grammar, the length bounds and the
// reserved-name set before the store is touched.
func (s *Service) Register(ctx context.Context, slug, restaurantName, ownerName, email, password string, meta session.Metadata) (string, error) {
	slug = strings.ToLower(slug)
	if !tenanthost.ValidRegistrationSlug(slug) {
		return "", ErrSlugUnavailable
	}
	if _, err := s.store.TenantBySlug(ctx, slug); err == nil {
		return "", ErrSlugUnavailable
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("check slug: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	tenant := &model.Tenant{Slug: slug, Name: restaurantName}
	owner := &model.User{Email: email, PasswordHash: hash, Name: ownerName}
	if err := s.store.CreateTenantWithOwner(ctx, tenant, owner); err != nil {
		return "", fmt.Errorf("create tenant: %w", err)
	}
	return s.sessions.Issue(ctx, owner, tenant, meta)
}

// SlugAvailable reports whether slug may be claimed as a new tenant.
func (s *Service) SlugAvailable(ctx context.Context, slug string) (bool, error) {
	slug = strings.ToLower(slug)
	if !tenanthost.ValidRegistrationSlug(slug) {
		return false, nil
	}
	_, err := s.store.TenantBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// ChangePassword verifies the current password, sets the new hash and
// revokes every other session for the user in one transaction. The
// session identified by keepSessionID (the device making the change)
// stays logged in.
func (s *Service) ChangePassword(ctx context.Context, tenantID, userID uint, currentPassword, newPassword string, keepSessionID uint) error {
	user, err := s.store.UserByID(ctx, tenantID, userID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if err := s.verify([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash, keepSessionID)
}

// ForgotPassword issues a password-reset token for the account, when it
// exists. It returns the raw token, or "" when the tenant or user is
// unknown — the caller must answer the client identically either way so
// the endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, tenantSlug, email string) (string, error) {
	tenant, err := s.store.TenantBySlug(ctx, tenantSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve tenant: %w", err)
	}
	user, err := s.store.UserByEmail(ctx, tenant.ID, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up user: %w", err)
	}

	token, err := session.GenerateToken()
	if err != nil {
		return "", err
	}
	record := &model.PasswordResetToken{
		TenantID:  tenant.ID,
		UserID:    user.ID,
		TokenHash: session.HashToken(token),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.store.CreateResetToken(ctx, record); err != nil {
		return "", fmt.Errorf("create reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token: the token is marked used, the new
// hash is written and every session for the user is revoked, atomically.
// A token that is unknown, expired or already used fails with
// ErrInvalidResetToken.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	record, err := s.store.ResetTokenByHash(ctx, session.HashToken(rawToken))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("look up reset token: %w", err)
	}
	if record.UsedAt != nil || time.Now().After(record.ExpiresAt) {
		return ErrInvalidResetToken
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.ConsumeResetToken(ctx, record.ID, record.UserID, hash)
}
