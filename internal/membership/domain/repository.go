package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository returns (nil, nil) for single-row lookups that find nothing.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetMembership(ctx context.Context, kind ScopeKind, scopeID, userID snowflake.ID) (*Membership, error)
	GetMembershipByID(ctx context.Context, id snowflake.ID) (*Membership, error)
	LockMembership(ctx context.Context, kind ScopeKind, scopeID, userID snowflake.ID) (*Membership, error)
	InsertMembershipIfAbsent(ctx context.Context, m *Membership) (bool, error)
	UpdateMembershipRole(ctx context.Context, id snowflake.ID, role Role, now time.Time) error
	DeleteMembership(ctx context.Context, id snowflake.ID) error
	LockRoleHolders(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, role Role) ([]snowflake.ID, error)
	ListMemberships(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, after snowflake.ID, limit int) ([]Membership, error)
	IsEmailMember(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, email string) (bool, error)

	CreateInvite(ctx context.Context, invite *Invite) error
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)
	GetInviteByID(ctx context.Context, id snowflake.ID) (*Invite, error)
	FindPendingInvite(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, email string) (*Invite, error)
	TransitionInvite(ctx context.Context, id snowflake.ID, to InviteStatus, acceptedBy *snowflake.ID, now time.Time) (bool, error)
	ListPendingInvites(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, now time.Time, after snowflake.ID, limit int) ([]Invite, error)

	CreateInviteLink(ctx context.Context, link *InviteLink) error
	GetInviteLinkByToken(ctx context.Context, token string) (*InviteLink, error)
	GetInviteLinkByID(ctx context.Context, id snowflake.ID) (*InviteLink, error)
	ConsumeInviteLink(ctx context.Context, id snowflake.ID, now time.Time) (bool, error)
	RevokeInviteLink(ctx context.Context, id snowflake.ID, now time.Time) (bool, error)
	ListInviteLinks(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, after snowflake.ID, limit int) ([]InviteLink, error)

	CreateJoinRequest(ctx context.Context, req *JoinRequest) error
	GetJoinRequestByID(ctx context.Context, id snowflake.ID) (*JoinRequest, error)
	FindPendingJoinRequest(ctx context.Context, kind ScopeKind, scopeID, userID snowflake.ID) (*JoinRequest, error)
	TransitionJoinRequest(ctx context.Context, id snowflake.ID, to JoinRequestStatus, reviewedBy *snowflake.ID, now time.Time) (bool, error)
	ListJoinRequests(ctx context.Context, kind ScopeKind, scopeID snowflake.ID, status JoinRequestStatus, after snowflake.ID, limit int) ([]JoinRequest, error)
}
