// Package domain contains the shared invitation and membership model used by
// every scope kind.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "PENDING"
	InviteStatusAccepted InviteStatus = "ACCEPTED"
	InviteStatusDeclined InviteStatus = "DECLINED"
	InviteStatusRevoked  InviteStatus = "REVOKED"
)

type LinkStatus string

const (
	LinkStatusPending LinkStatus = "PENDING"
	LinkStatusRevoked LinkStatus = "REVOKED"
)

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "PENDING"
	JoinRequestAccepted JoinRequestStatus = "ACCEPTED"
	JoinRequestDeclined JoinRequestStatus = "DECLINED"
)

// Membership grants a user a role inside one scope.
type Membership struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ScopeKind ScopeKind    `gorm:"type:text;not null;uniqueIndex:ux_memberships_scope_user,priority:1" json:"scope_kind"`
	ScopeID   snowflake.ID `gorm:"not null;uniqueIndex:ux_memberships_scope_user,priority:2" json:"scope_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_memberships_scope_user,priority:3" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Membership) TableName() string { return "memberships" }

// Invite is a single-use invitation addressed to one email.
type Invite struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	Token      string        `gorm:"type:text;not null;uniqueIndex:ux_invites_token" json:"-"`
	ScopeKind  ScopeKind     `gorm:"type:text;not null;index:ix_invites_scope,priority:1;uniqueIndex:ux_invites_pending_email,priority:1,where:status = 'PENDING'" json:"scope_kind"`
	ScopeID    snowflake.ID  `gorm:"not null;index:ix_invites_scope,priority:2;uniqueIndex:ux_invites_pending_email,priority:2,where:status = 'PENDING'" json:"scope_id"`
	Email      string        `gorm:"type:text;not null;uniqueIndex:ux_invites_pending_email,priority:3,where:status = 'PENDING'" json:"email"`
	Role       Role          `gorm:"type:text;not null" json:"role"`
	Status     InviteStatus  `gorm:"type:text;not null" json:"status"`
	ExpiresAt  *time.Time    `json:"expires_at,omitempty"`
	CreatedBy  snowflake.ID  `gorm:"not null" json:"created_by"`
	Message    *string       `gorm:"type:text" json:"message,omitempty"`
	AcceptedBy *snowflake.ID `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time    `json:"accepted_at,omitempty"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invite) TableName() string { return "invites" }

// InviteLink is a shareable token bounded by uses and expiry.
type InviteLink struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Token     string       `gorm:"type:text;not null;uniqueIndex:ux_invite_links_token" json:"-"`
	ScopeKind ScopeKind    `gorm:"type:text;not null;index:ix_invite_links_scope,priority:1" json:"scope_kind"`
	ScopeID   snowflake.ID `gorm:"not null;index:ix_invite_links_scope,priority:2" json:"scope_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	Status    LinkStatus   `gorm:"type:text;not null" json:"status"`
	MaxUses   *int         `json:"max_uses,omitempty"`
	Uses      int          `gorm:"not null;default:0" json:"uses"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	CreatedBy snowflake.ID `gorm:"not null" json:"created_by"`
	Note      *string      `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (InviteLink) TableName() string { return "invite_links" }

// Exhausted reports whether the link has no uses left.
func (l InviteLink) Exhausted() bool {
	return l.MaxUses != nil && l.Uses >= *l.MaxUses
}

// JoinRequest is a self-service request to join a scope.
type JoinRequest struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ScopeKind  ScopeKind         `gorm:"type:text;not null;index:ix_join_requests_scope,priority:1;uniqueIndex:ux_join_requests_pending,priority:1,where:status = 'PENDING'" json:"scope_kind"`
	ScopeID    snowflake.ID      `gorm:"not null;index:ix_join_requests_scope,priority:2;uniqueIndex:ux_join_requests_pending,priority:2,where:status = 'PENDING'" json:"scope_id"`
	UserID     snowflake.ID      `gorm:"not null;uniqueIndex:ux_join_requests_pending,priority:3,where:status = 'PENDING'" json:"user_id"`
	Message    *string           `gorm:"type:text" json:"message,omitempty"`
	Status     JoinRequestStatus `gorm:"type:text;not null" json:"status"`
	ReviewedBy *snowflake.ID     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (JoinRequest) TableName() string { return "join_requests" }

// Expired reports whether expiresAt lies strictly before now. The exact
// instant of expiry is still valid; a nil expiry never expires.
func Expired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return expiresAt.Before(now)
}

// NormalizeEmail lower-cases and trims an address for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
