package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
)

// Actor is the authenticated caller of a membership operation.
type Actor struct {
	UserID        snowflake.ID
	Email         string
	EmailVerified bool
	IP            string
}

// ScopeRef identifies a scope by kind plus snowflake id or slug.
type ScopeRef struct {
	Kind       string
	Identifier string
}

type Service interface {
	CreateEmailInvite(ctx context.Context, actor *Actor, req CreateInviteRequest) (*CreateInviteResponse, error)
	AcceptEmailInvite(ctx context.Context, actor *Actor, token string) (*AcceptResponse, error)
	DeclineEmailInvite(ctx context.Context, actor *Actor, token string) (*StatusResponse, error)
	RevokeEmailInvite(ctx context.Context, actor *Actor, scope ScopeRef, inviteID string) (*StatusResponse, error)
	ListPendingInvites(ctx context.Context, actor *Actor, scope ScopeRef, page pagination.Pagination) (*ListInvitesResponse, error)

	CreateInviteLink(ctx context.Context, actor *Actor, req CreateLinkRequest) (*CreateLinkResponse, error)
	AcceptInviteLink(ctx context.Context, actor *Actor, token string) (*AcceptResponse, error)
	RevokeInviteLink(ctx context.Context, actor *Actor, scope ScopeRef, linkID string) (*StatusResponse, error)
	ListInviteLinks(ctx context.Context, actor *Actor, scope ScopeRef, page pagination.Pagination) (*ListLinksResponse, error)

	CreateJoinRequest(ctx context.Context, actor *Actor, req CreateJoinRequestRequest) (*CreateJoinRequestResponse, error)
	ReviewJoinRequest(ctx context.Context, actor *Actor, req ReviewJoinRequestRequest) (*StatusResponse, error)
	CancelJoinRequest(ctx context.Context, actor *Actor, scope ScopeRef) (*StatusResponse, error)
	ListJoinRequests(ctx context.Context, actor *Actor, req ListJoinRequestsRequest) (*ListJoinRequestsResponse, error)

	ChangeMemberRole(ctx context.Context, actor *Actor, req ChangeMemberRoleRequest) (*ChangeMemberRoleResponse, error)
	RemoveMember(ctx context.Context, actor *Actor, scope ScopeRef, membershipID string) (*RemoveMemberResponse, error)
	LeaveScope(ctx context.Context, actor *Actor, scope ScopeRef) (*RemoveMemberResponse, error)
	ListMembers(ctx context.Context, actor *Actor, scope ScopeRef, page pagination.Pagination) (*ListMembersResponse, error)

	GetInvitePageData(ctx context.Context, actor *Actor, token string) (*InvitePageData, error)
}

type CreateInviteRequest struct {
	Scope         ScopeRef
	Email         string
	Role          string
	Message       *string
	ExpiryMinutes *int
}

type CreateInviteResponse struct {
	InviteID  string     `json:"invite_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type AcceptResponse struct {
	ScopeKind ScopeKind `json:"scope_kind"`
	ScopeID   string    `json:"scope_id"`
	Role      Role      `json:"role"`
}

type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CreateLinkRequest struct {
	Scope         ScopeRef
	Role          string
	MaxUses       *int
	ExpiryMinutes *int
	Note          *string
}

type CreateLinkResponse struct {
	LinkID    string     `json:"link_id"`
	ShareURL  string     `json:"share_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type CreateJoinRequestRequest struct {
	Scope   ScopeRef
	Message *string
}

type CreateJoinRequestResponse struct {
	RequestID string `json:"request_id"`
}

type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "APPROVE"
	DecisionDecline ReviewDecision = "DECLINE"
)

type ReviewJoinRequestRequest struct {
	Scope     ScopeRef
	RequestID string
	Decision  string
}

type ListJoinRequestsRequest struct {
	Scope      ScopeRef
	Status     string
	Pagination pagination.Pagination
}

type ChangeMemberRoleRequest struct {
	Scope        ScopeRef
	MembershipID string
	Role         string
}

type ChangeMemberRoleResponse struct {
	MembershipID string `json:"membership_id"`
	Role         Role   `json:"role"`
}

type RemoveMemberResponse struct {
	Removed bool `json:"removed"`
}

type MemberView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type ListMembersResponse struct {
	Members  []MemberView        `json:"members"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type InviteView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

type ListInvitesResponse struct {
	Invites  []InviteView        `json:"invites"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type LinkView struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Status    LinkStatus `json:"status"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	Uses      int        `json:"uses"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Note      *string    `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type ListLinksResponse struct {
	Links    []LinkView          `json:"links"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type JoinRequestView struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Message    *string           `json:"message,omitempty"`
	Status     JoinRequestStatus `json:"status"`
	ReviewedBy *string           `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ListJoinRequestsResponse struct {
	Requests []JoinRequestView   `json:"requests"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type TokenKind string

const (
	TokenInvite TokenKind = "INVITE"
	TokenLink   TokenKind = "LINK"
)

type PageState string

const (
	PageStateValid          PageState = "VALID"
	PageStateInvalid        PageState = "INVALID"
	PageStateExpired        PageState = "EXPIRED"
	PageStateMaxUsesReached PageState = "MAX_USES_REACHED"
	PageStateAccepted       PageState = "ACCEPTED"
	PageStateDeclined       PageState = "DECLINED"
	PageStateRevoked        PageState = "REVOKED"
)

type ScopeSummary struct {
	Kind       ScopeKind `json:"kind"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	ParentName string    `json:"parent_name,omitempty"`
}

// InvitePageData is what a landing page needs to render an invite or link.
// EmailMatches and IsAlreadyMember are only meaningful with a session.
type InvitePageData struct {
	Scope           *ScopeSummary `json:"scope,omitempty"`
	Kind            TokenKind     `json:"kind,omitempty"`
	State           PageState     `json:"state"`
	Role            Role          `json:"role,omitempty"`
	ExpiresAt       *time.Time    `json:"expires_at,omitempty"`
	EmailMatches    *bool         `json:"email_matches,omitempty"`
	IsAlreadyMember bool          `json:"is_already_member"`
}

// InviteEmail carries what the notifier needs to render an invitation.
type InviteEmail struct {
	ToEmail   string
	ScopeKind ScopeKind
	ScopeName string
	Role      Role
	JoinURL   string
	Message   *string
	ExpiresAt *time.Time
}

// Notifier delivers invitation emails. Delivery is best-effort.
type Notifier interface {
	SendInviteEmail(ctx context.Context, email InviteEmail) error
}
