// Package store is the persistence adapter for tenants, users, sessions
// and password-reset tokens. Compound credential mutations ("update
// password + revoke sessions") run inside a single transaction so they are
// all-or-nothing.
package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"saasresto/internal/model"
	"saasresto/prometheus"
)

// Store wraps the gorm connection with the operations the auth core needs.
// Every method times itself under the db-operation histogram; timing lives
// here rather than in handlers so bcrypt work never pollutes the metric.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an initialized gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Tenants

// TenantBySlug looks up a tenant by its lowercased slug.
func (s *Store) TenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenant model.Tenant
	err := s.db.WithContext(ctx).Where("slug = ?", strings.ToLower(slug)).First(&tenant).Error
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// CreateTenantWithOwner creates a tenant and its first OWNER user as one
// atomic unit; a tenant without an owner is not a functioning account.
func (s *Store) CreateTenantWithOwner(ctx context.Context, tenant *model.Tenant, owner *model.User) error {
	defer prometheus.TrackDBOperation("tx")(time.Now())
	tenant.Slug = strings.ToLower(tenant.Slug)
	owner.Email = strings.ToLower(owner.Email)
	owner.Role = model.RoleOwner
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		owner.TenantID = tenant.ID
		return tx.Create(owner).Error
	})
}

// Users

// UserByEmail looks up a user by (tenant, lowercased email).
func (s *Store) UserByEmail(ctx context.Context, tenantID uint, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserByID looks up a user within a tenant by primary key.
func (s *Store) UserByID(ctx context.Context, tenantID, userID uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user with a normalized email.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("create")(time.Now())
	user.Email = strings.ToLower(user.Email)
	return s.db.WithContext(ctx).Create(user).Error
}

// DeleteUser removes a user and all of their sessions in one transaction.
// A session must never outlive its user.
func (s *Store) DeleteUser(ctx context.Context, tenantID, userID uint) error {
	defer prometheus.TrackDBOperation("tx")(time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", tenantID, userID).Delete(&model.User{}).Error
	})
}

// Sessions

// CreateSession inserts a session record.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	defer prometheus.TrackDBOperation("create")(time.Now())
	return s.db.WithContext(ctx).Create(sess).Error
}

// SessionByTokenHash finds a session by token hash with its user and
// tenant joined.
func (s *Store) SessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var sess model.Session
	err := s.db.WithContext(ctx).
		Preload("User").Preload("Tenant").
		Where("token_hash = ?", tokenHash).
		First(&sess).Error
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSessionByID removes a single session record.
func (s *Store) DeleteSessionByID(ctx context.Context, sessionID uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return s.db.WithContext(ctx).Delete(&model.Session{}, sessionID).Error
}

// DeleteSessionByTokenHash removes the session matching a token hash.
// Deleting an absent session is not an error.
func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Delete(&model.Session{}).Error
}

// DeleteSessionsForUser removes all sessions for a user. exceptSessionID
// may be zero to delete every session, or a session ID to preserve —
// used when a password change should keep the current device logged in.
func (s *Store) DeleteSessionsForUser(ctx context.Context, userID, exceptSessionID uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if exceptSessionID != 0 {
		q = q.Where("id <> ?", exceptSessionID)
	}
	return q.Delete(&model.Session{}).Error
}

// Password management

// UpdatePassword sets a new password hash and revokes the user's sessions
// in the same transaction, optionally keeping one session alive.
func (s *Store) UpdatePassword(ctx context.Context, userID uint, newHash string, keepSessionID uint) error {
	defer prometheus.TrackDBOperation("tx")(time.Now())
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).Where("id = ?", userID).
			Update("password_hash", newHash).Error; err != nil {
			return err
		}
		q := tx.Where("user_id = ?", userID)
		if keepSessionID != 0 {
			q = q.Where("id <> ?", keepSessionID)
		}
		return q.Delete(&model.Session{}).Error
	})
}

// Password reset tokens

// CreateResetToken inserts a password-reset token record.
func (s *Store) CreateResetToken(ctx context.Context, token *model.PasswordResetToken) error {
	defer prometheus.TrackDBOperation("create")(time.Now())
	return s.db.WithContext(ctx).Create(token).Error
}

// ResetTokenByHash finds a reset token by its hash.
func (s *Store) ResetTokenByHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())
	var token model.PasswordResetToken
	err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ConsumeResetToken marks a reset token used, sets the new password hash
// and revokes every session for the user, all-or-nothing.
func (s *Store) ConsumeResetToken(ctx context.Context, tokenID, userID uint, newHash string) error {
	defer prometheus.TrackDBOperation("tx")(time.Now())
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.PasswordResetToken{}).Where("id = ?", tokenID).
			Update("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.User{}).Where("id = ?", userID).
			Update("password_hash", newHash).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&model.Session{}).Error
	})
}
