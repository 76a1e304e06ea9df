package model

import (
	"time"
)

// User roles within a tenant
const (
	RoleOwner = "OWNER"
	RoleStaff = "STAFF"
)

// User represents a login principal belonging to exactly one tenant.
// Email is stored lowercased and is unique per tenant, not globally.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"uniqueIndex:idx_users_tenant_email;not null"`
	Email        string    `json:"email" gorm:"type:varchar(100);uniqueIndex:idx_users_tenant_email;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Name         string    `json:"name,omitempty" gorm:"type:varchar(100)"`
	Role         string    `json:"role" gorm:"type:varchar(20);not null;default:'STAFF'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Tenant Tenant `json:"-" gorm:"foreignKey:TenantID"`
}
