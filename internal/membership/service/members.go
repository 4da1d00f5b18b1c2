package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/authorization"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/ramonsarchive/ascend/internal/membership/guardrail"
	scopedomain "github.com/ramonsarchive/ascend/internal/scope/domain"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
	"gorm.io/gorm"
)

func (s *Service) ChangeMemberRole(ctx context.Context, actor *domain.Actor, req domain.ChangeMemberRoleRequest) (resp *domain.ChangeMemberRoleResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opMemberChangeRole, actor)
	defer s.done(ctx, opMemberChangeRole, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	kind, err = domain.ParseScopeKind(req.Scope.Kind)
	if err != nil {
		return nil, err
	}
	policy, err := domain.PolicyFor(kind)
	if err != nil {
		return nil, err
	}
	desired, err := policy.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolver.Resolve(ctx, kind, req.Scope.Identifier)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, scope, policy, actor.UserID); err != nil {
		return nil, err
	}
	id, err := parseID(req.MembershipID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var target *domain.Membership
	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		holders, err := repo.LockRoleHolders(ctx, kind, scope.ID, policy.TopTier)
		if err != nil {
			return err
		}
		actorRole, err := s.lockedManagerRole(ctx, repo, scope, policy, actor.UserID)
		if err != nil {
			return err
		}
		target, err = scopedMembership(ctx, repo, scope, id)
		if err != nil {
			return err
		}

		if err := guardrail.Check(policy, guardrail.Mutation{
			ActorUserID:   actor.UserID,
			ActorRole:     actorRole,
			ActorIsMember: true,
			Target:        *target,
			DesiredRole:   &desired,
		}); err != nil {
			return err
		}
		if err := guardrail.CheckLastAdmin(policy, *target, &desired, othersThan(holders, target.ID)); err != nil {
			return err
		}
		if target.Role == desired {
			return nil
		}

		if err := repo.UpdateMembershipRole(ctx, target.ID, desired, now); err != nil {
			return err
		}
		target.Role = desired
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.RecordMembershipChange(ctx, string(kind), string(event.MemberRoleChanged))
		s.publish(ctx, kind, scope.ID, event.MemberRoleChanged, target.ID, actor.UserID)
	}
	return &domain.ChangeMemberRoleResponse{MembershipID: target.ID.String(), Role: target.Role}, nil
}

func (s *Service) RemoveMember(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef, membershipID string) (resp *domain.RemoveMemberResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opMemberRemove, actor)
	defer s.done(ctx, opMemberRemove, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	scope, policy, err := s.resolveScope(ctx, ref)
	if err != nil {
		return nil, err
	}
	kind = scope.Kind
	if err := s.requireManager(ctx, scope, policy, actor.UserID); err != nil {
		return nil, err
	}
	id, err := parseID(membershipID)
	if err != nil {
		return nil, err
	}

	var target *domain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		holders, err := repo.LockRoleHolders(ctx, kind, scope.ID, policy.TopTier)
		if err != nil {
			return err
		}
		actorRole, err := s.lockedManagerRole(ctx, repo, scope, policy, actor.UserID)
		if err != nil {
			return err
		}
		target, err = scopedMembership(ctx, repo, scope, id)
		if err != nil {
			return err
		}

		if err := guardrail.Check(policy, guardrail.Mutation{
			ActorUserID:   actor.UserID,
			ActorRole:     actorRole,
			ActorIsMember: true,
			Target:        *target,
		}); err != nil {
			return err
		}
		if err := guardrail.CheckLastAdmin(policy, *target, nil, othersThan(holders, target.ID)); err != nil {
			return err
		}
		return repo.DeleteMembership(ctx, target.ID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMembershipChange(ctx, string(kind), string(event.MemberRemoved))
	s.publish(ctx, kind, scope.ID, event.MemberRemoved, target.ID, actor.UserID)
	return &domain.RemoveMemberResponse{Removed: true}, nil
}

// LeaveScope removes the caller's own direct membership. It bypasses the
// actor rules of the guarded path but still keeps a top-tier holder.
func (s *Service) LeaveScope(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef) (resp *domain.RemoveMemberResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opMemberLeave, actor)
	defer s.done(ctx, opMemberLeave, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	scope, policy, err := s.resolveScope(ctx, ref)
	if err != nil {
		return nil, err
	}
	kind = scope.Kind

	var own *domain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		holders, err := repo.LockRoleHolders(ctx, kind, scope.ID, policy.TopTier)
		if err != nil {
			return err
		}
		own, err = repo.GetMembership(ctx, kind, scope.ID, actor.UserID)
		if err != nil {
			return err
		}
		if own == nil {
			return domain.ErrNotFound
		}
		if err := guardrail.CheckLastAdmin(policy, *own, nil, othersThan(holders, own.ID)); err != nil {
			return err
		}
		return repo.DeleteMembership(ctx, own.ID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordMembershipChange(ctx, string(kind), string(event.MemberRemoved))
	s.publish(ctx, kind, scope.ID, event.MemberRemoved, own.ID, actor.UserID)
	return &domain.RemoveMemberResponse{Removed: true}, nil
}

func (s *Service) ListMembers(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef, page pagination.Pagination) (resp *domain.ListMembersResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opMemberList, actor)
	defer s.done(ctx, opMemberList, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	scope, _, err := s.resolveScope(ctx, ref)
	if err != nil {
		return nil, err
	}
	kind = scope.Kind
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionMemberList); err != nil {
		return nil, err
	}

	after, err := pageAfter(page)
	if err != nil {
		return nil, err
	}
	limit := page.Limit()
	rows, err := s.repo.ListMemberships(ctx, scope.Kind, scope.ID, after, limit+1)
	if err != nil {
		return nil, err
	}
	rows, info, err := pagination.Trim(rows, limit, func(m domain.Membership) string { return m.ID.String() })
	if err != nil {
		return nil, err
	}

	views := make([]domain.MemberView, 0, len(rows))
	for _, row := range rows {
		views = append(views, domain.MemberView{
			ID:        row.ID.String(),
			UserID:    row.UserID.String(),
			Role:      row.Role,
			CreatedAt: row.CreatedAt,
		})
	}
	return &domain.ListMembersResponse{Members: views, PageInfo: info}, nil
}

// requireManager rejects callers that could never pass the guardrail before any
// target is looked up. The guardrail itself runs on lockedManagerRole.
func (s *Service) requireManager(ctx context.Context, scope *scopedomain.Scope, policy domain.Policy, userID snowflake.ID) error {
	role, ok, err := s.resolver.RoleOf(ctx, scope, userID)
	if err != nil {
		return err
	}
	return s.canManage(ctx, scope, policy, role, ok)
}

// lockedManagerRole re-reads the actor's effective role through repo, locking
// the direct membership rows it depends on for the rest of the transaction.
func (s *Service) lockedManagerRole(ctx context.Context, repo domain.Repository, scope *scopedomain.Scope, policy domain.Policy, userID snowflake.ID) (domain.Role, error) {
	role, ok, err := lockedRoleOf(ctx, repo, scope, userID)
	if err != nil {
		return "", err
	}
	if err := s.canManage(ctx, scope, policy, role, ok); err != nil {
		return "", err
	}
	return role, nil
}

func (s *Service) canManage(ctx context.Context, scope *scopedomain.Scope, policy domain.Policy, role domain.Role, ok bool) error {
	if !ok || !policy.IsAdmin(role) {
		return domain.ErrNotAuthorized
	}
	if err := s.authz.Authorize(ctx, string(scope.Kind), string(role), authorization.ActionMemberManage); err != nil {
		if errors.Is(err, authorization.ErrForbidden) {
			return domain.ErrNotAuthorized
		}
		return err
	}
	return nil
}

// lockedRoleOf mirrors the resolver's RoleOf: the higher of the direct role
// and the role inherited from the parent chain.
func lockedRoleOf(ctx context.Context, repo domain.Repository, scope *scopedomain.Scope, userID snowflake.ID) (domain.Role, bool, error) {
	policy, err := domain.PolicyFor(scope.Kind)
	if err != nil {
		return "", false, err
	}
	own, err := repo.LockMembership(ctx, scope.Kind, scope.ID, userID)
	if err != nil {
		return "", false, err
	}
	var (
		role domain.Role
		ok   bool
	)
	if own != nil && policy.HasRole(own.Role) {
		role, ok = own.Role, true
	}

	if policy.Inherits == nil || scope.Parent == nil || scope.Parent.Kind != policy.Inherits.Parent {
		return role, ok, nil
	}
	parentRole, parentOK, err := lockedRoleOf(ctx, repo, scope.Parent, userID)
	if err != nil || !parentOK {
		return role, ok, err
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

func scopedMembership(ctx context.Context, repo domain.Repository, scope *scopedomain.Scope, id snowflake.ID) (*domain.Membership, error) {
	m, err := repo.GetMembershipByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil || m.ScopeKind != scope.Kind || m.ScopeID != scope.ID {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func othersThan(ids []snowflake.ID, exclude snowflake.ID) int64 {
	var n int64
	for _, id := range ids {
		if id != exclude {
			n++
		}
	}
	return n
}
