package model

import (
	"time"
)

// PasswordResetToken is a single-use token for the forgot-password flow.
// Stored the same way as sessions: hash at rest, raw token only in the
// reset link sent to the user.
type PasswordResetToken struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	TenantID  uint       `json:"tenant_id" gorm:"index;not null"`
	UserID    uint       `json:"user_id" gorm:"index;not null"`
	TokenHash string     `json:"-" gorm:"type:char(64);uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
