// Package domain describes the scopes memberships attach to. Scope rows are
// owned by other services and only read here.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
)

type Organization struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Name              string       `gorm:"type:text;not null" json:"name"`
	Slug              string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	AllowJoinRequests bool         `gorm:"not null;default:false" json:"allow_join_requests"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

type Event struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID             snowflake.ID `gorm:"not null;index" json:"org_id"`
	Name              string       `gorm:"type:text;not null" json:"name"`
	Slug              string       `gorm:"type:text;not null;uniqueIndex:ux_events_slug" json:"slug"`
	AllowJoinRequests bool         `gorm:"not null;default:false" json:"allow_join_requests"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "events" }

type Team struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	EventID           snowflake.ID `gorm:"not null;index" json:"event_id"`
	Name              string       `gorm:"type:text;not null" json:"name"`
	Slug              string       `gorm:"type:text;not null;uniqueIndex:ux_teams_slug" json:"slug"`
	AllowJoinRequests bool         `gorm:"not null;default:false" json:"allow_join_requests"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

// Scope is a resolved membership target. EVENT_STAFF shares the id of its event.
// Scopes are cached, so it carries only fields that do not change in practice.
type Scope struct {
	Kind   membershipdomain.ScopeKind
	ID     snowflake.ID
	Name   string
	Slug   string
	Parent *Scope
}

func (s *Scope) Summary() *membershipdomain.ScopeSummary {
	summary := &membershipdomain.ScopeSummary{
		Kind: s.Kind,
		ID:   s.ID.String(),
		Name: s.Name,
		Slug: s.Slug,
	}
	if s.Parent != nil {
		summary.ParentName = s.Parent.Name
	}
	return summary
}

// Resolver is a pure lookup; it never mutates.
type Resolver interface {
	Resolve(ctx context.Context, kind membershipdomain.ScopeKind, identifier string) (*Scope, error)
	ResolveByID(ctx context.Context, kind membershipdomain.ScopeKind, id snowflake.ID) (*Scope, error)
	// RoleOf returns the caller's effective role: the higher of the direct
	// membership and any role inherited from the parent scope.
	RoleOf(ctx context.Context, scope *Scope, userID snowflake.ID) (membershipdomain.Role, bool, error)
	// JoinRequestsOpen reads the scope's join-request setting uncached.
	JoinRequestsOpen(ctx context.Context, scope *Scope) (bool, error)
}

// Repository returns (nil, nil) when a row does not exist.
type Repository interface {
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	GetEvent(ctx context.Context, id snowflake.ID) (*Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*Event, error)
	GetTeam(ctx context.Context, id snowflake.ID) (*Team, error)
	GetTeamBySlug(ctx context.Context, slug string) (*Team, error)
	DirectRole(ctx context.Context, kind membershipdomain.ScopeKind, scopeID, userID snowflake.ID) (membershipdomain.Role, bool, error)
}
