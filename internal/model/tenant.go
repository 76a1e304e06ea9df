package model

import (
	"time"
)

// Tenant represents a restaurant account. It is the root of isolation in
// our multi-tenant architecture: every user, session and menu resource
// carries a tenant reference, and all queries must filter by it.
//
// The slug is resolved from the request subdomain and is immutable after
// creation; no update path is exposed.
type Tenant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Slug      string    `json:"slug" gorm:"type:varchar(30);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
