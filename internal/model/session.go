package model

import (
	"time"
)

// Session binds an opaque bearer token to a user and tenant. Only the
// SHA-256 hash of the token is stored; the raw token exists in the client
// cookie and in transit, so a database compromise does not yield usable
// session tokens.
type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uint      `json:"tenant_id" gorm:"index;not null"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	TokenHash string    `json:"-" gorm:"type:char(64);uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	UserAgent string    `json:"user_agent,omitempty" gorm:"type:varchar(255)"`
	IPAddress string    `json:"ip_address,omitempty" gorm:"type:varchar(45)"`
	CreatedAt time.Time `json:"created_at"`

	User   User   `json:"-" gorm:"foreignKey:UserID"`
	Tenant Tenant `json:"-" gorm:"foreignKey:TenantID"`
}
