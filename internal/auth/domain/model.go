// Package domain contains core types for resolving sessions to identities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the subset of the account record membership decisions depend on.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Email         string       `gorm:"column:email;type:text;not null;uniqueIndex"`
	EmailVerified bool         `gorm:"column:email_verified;not null;default:false"`
	DisplayName   string       `gorm:"column:display_name;type:text"`
	CreatedAt     time.Time    `gorm:"not null"`
	UpdatedAt     time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session is a login session issued by the identity service.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
