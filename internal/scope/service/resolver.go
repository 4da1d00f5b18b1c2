package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/ramonsarchive/ascend/internal/cache"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/scope/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const scopeCacheTTL = time.Minute

type Params struct {
	fx.In

	Log  *zap.Logger
	Repo domain.Repository
}

type resolver struct {
	log    *zap.Logger
	repo   domain.Repository
	scopes cache.Cache[string, domain.Scope]
}

func NewResolver(p Params) domain.Resolver {
	return &resolver{
		log:    p.Log.Named("scope.resolver"),
		repo:   p.Repo,
		scopes: cache.NewTTLCache[string, domain.Scope](),
	}
}

// Resolve accepts a snowflake id or a slug. Slugs are normalized before lookup.
func (r *resolver) Resolve(ctx context.Context, kind membershipdomain.ScopeKind, identifier string) (*domain.Scope, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, membershipdomain.ErrScopeNotFound
	}
	if id, err := snowflake.ParseString(identifier); err == nil && id > 0 {
		scope, err := r.ResolveByID(ctx, kind, id)
		if err == nil {
			return scope, nil
		}
		if !errors.Is(err, membershipdomain.ErrScopeNotFound) {
			return nil, err
		}
	}

	normalized := slug.Make(identifier)
	if normalized == "" {
		return nil, membershipdomain.ErrScopeNotFound
	}

	key := fmt.Sprintf("%s:slug:%s", kind, normalized)
	if cached, ok := r.scopes.Get(key); ok {
		return &cached, nil
	}

	var (
		id  snowflake.ID
		err error
	)
	switch kind {
	case membershipdomain.ScopeOrganization:
		org, lookupErr := r.repo.GetOrganizationBySlug(ctx, normalized)
		if org != nil {
			id = org.ID
		}
		err = lookupErr
	case membershipdomain.ScopeEvent, membershipdomain.ScopeEventStaff:
		event, lookupErr := r.repo.GetEventBySlug(ctx, normalized)
		if event != nil {
			id = event.ID
		}
		err = lookupErr
	case membershipdomain.ScopeTeam:
		team, lookupErr := r.repo.GetTeamBySlug(ctx, normalized)
		if team != nil {
			id = team.ID
		}
		err = lookupErr
	default:
		return nil, membershipdomain.ErrScopeNotFound
	}
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, membershipdomain.ErrScopeNotFound
	}

	scope, err := r.ResolveByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	r.scopes.Set(key, *scope, scopeCacheTTL)
	return scope, nil
}

func (r *resolver) ResolveByID(ctx context.Context, kind membershipdomain.ScopeKind, id snowflake.ID) (*domain.Scope, error) {
	key := fmt.Sprintf("%s:id:%d", kind, id)
	if cached, ok := r.scopes.Get(key); ok {
		return &cached, nil
	}

	scope, err := r.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	r.scopes.Set(key, *scope, scopeCacheTTL)
	return scope, nil
}

func (r *resolver) load(ctx context.Context, kind membershipdomain.ScopeKind, id snowflake.ID) (*domain.Scope, error) {
	switch kind {
	case membershipdomain.ScopeOrganization:
		org, err := r.repo.GetOrganization(ctx, id)
		if err != nil {
			return nil, err
		}
		if org == nil {
			return nil, membershipdomain.ErrScopeNotFound
		}
		return &domain.Scope{
			Kind: kind,
			ID:   org.ID,
			Name: org.Name,
			Slug: org.Slug,
		}, nil

	case membershipdomain.ScopeEvent:
		event, err := r.repo.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, membershipdomain.ErrScopeNotFound
		}
		parent, err := r.ResolveByID(ctx, membershipdomain.ScopeOrganization, event.OrgID)
		if err != nil {
			return nil, err
		}
		return &domain.Scope{
			Kind:   kind,
			ID:     event.ID,
			Name:   event.Name,
			Slug:   event.Slug,
			Parent: parent,
		}, nil

	case membershipdomain.ScopeEventStaff:
		event, err := r.ResolveByID(ctx, membershipdomain.ScopeEvent, id)
		if err != nil {
			return nil, err
		}
		return &domain.Scope{
			Kind:   kind,
			ID:     event.ID,
			Name:   event.Name + " staff",
			Slug:   event.Slug,
			Parent: event,
		}, nil

	case membershipdomain.ScopeTeam:
		team, err := r.repo.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		if team == nil {
			return nil, membershipdomain.ErrScopeNotFound
		}
		parent, err := r.ResolveByID(ctx, membershipdomain.ScopeEvent, team.EventID)
		if err != nil {
			return nil, err
		}
		return &domain.Scope{
			Kind:   kind,
			ID:     team.ID,
			Name:   team.Name,
			Slug:   team.Slug,
			Parent: parent,
		}, nil

	default:
		return nil, membershipdomain.ErrScopeNotFound
	}
}

func (r *resolver) RoleOf(ctx context.Context, scope *domain.Scope, userID snowflake.ID) (membershipdomain.Role, bool, error) {
	if scope == nil || userID == 0 {
		return "", false, nil
	}
	policy, err := membershipdomain.PolicyFor(scope.Kind)
	if err != nil {
		return "", false, err
	}

	role, ok, err := r.repo.DirectRole(ctx, scope.Kind, scope.ID, userID)
	if err != nil {
		return "", false, err
	}
	if ok && !policy.HasRole(role) {
		r.log.Warn("membership holds unknown role",
			zap.String("scope_kind", string(scope.Kind)),
			zap.String("scope_id", scope.ID.String()),
			zap.String("role", string(role)),
		)
		ok = false
	}

	if policy.Inherits == nil || scope.Parent == nil || scope.Parent.Kind != policy.Inherits.Parent {
		return role, ok, nil
	}

	parentRole, parentOK, err := r.RoleOf(ctx, scope.Parent, userID)
	if err != nil {
		return "", false, err
	}
	if !parentOK {
		return role, ok, nil
	}
	inherited, granted := policy.InheritedRole(scope.Parent.Kind, parentRole)
	if !granted {
		return role, ok, nil
	}
	if !ok || policy.Outranks(inherited, role) {
		return inherited, true, nil
	}
	return role, true, nil
}

func (r *resolver) JoinRequestsOpen(ctx context.Context, scope *domain.Scope) (bool, error) {
	if scope == nil {
		return false, membershipdomain.ErrScopeNotFound
	}
	switch scope.Kind {
	case membershipdomain.ScopeOrganization:
		org, err := r.repo.GetOrganization(ctx, scope.ID)
		if err != nil || org == nil {
			return false, notFound(err)
		}
		return org.AllowJoinRequests, nil
	case membershipdomain.ScopeEvent:
		event, err := r.repo.GetEvent(ctx, scope.ID)
		if err != nil || event == nil {
			return false, notFound(err)
		}
		return event.AllowJoinRequests, nil
	case membershipdomain.ScopeTeam:
		team, err := r.repo.GetTeam(ctx, scope.ID)
		if err != nil || team == nil {
			return false, notFound(err)
		}
		return team.AllowJoinRequests, nil
	default:
		return false, nil
	}
}

func notFound(err error) error {
	if err != nil {
		return err
	}
	return membershipdomain.ErrScopeNotFound
}
