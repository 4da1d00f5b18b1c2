package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
)

// GetInvitePageData describes a token for its landing page. It never fails on
// a bad token; the state field carries the outcome instead.
func (s *Service) GetInvitePageData(ctx context.Context, actor *domain.Actor, tokenValue string) (resp *domain.InvitePageData, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opInvitePage, actor)
	defer s.done(ctx, opInvitePage, &kind, end, &err)
	if err != nil {
		return nil, err
	}

	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return &domain.InvitePageData{State: domain.PageStateInvalid}, nil
	}
	now := s.clock.Now()

	invite, err := s.repo.GetInviteByToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if invite != nil {
		kind = invite.ScopeKind
		data := &domain.InvitePageData{
			Kind:      domain.TokenInvite,
			State:     inviteState(invite, now),
			Role:      invite.Role,
			ExpiresAt: invite.ExpiresAt,
		}
		if actor != nil && actor.UserID != 0 {
			matches := actor.EmailVerified && domain.NormalizeEmail(actor.Email) == invite.Email
			data.EmailMatches = &matches
		}
		return s.withScope(ctx, data, actor, invite.ScopeKind, invite.ScopeID)
	}

	link, err := s.repo.GetInviteLinkByToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if link != nil {
		kind = link.ScopeKind
		data := &domain.InvitePageData{
			Kind:      domain.TokenLink,
			State:     linkState(link, now),
			Role:      link.Role,
			ExpiresAt: link.ExpiresAt,
		}
		return s.withScope(ctx, data, actor, link.ScopeKind, link.ScopeID)
	}

	return &domain.InvitePageData{State: domain.PageStateInvalid}, nil
}

// withScope attaches the scope summary and, for a signed-in caller, whether
// they already belong to it. A vanished scope makes the token invalid.
func (s *Service) withScope(ctx context.Context, data *domain.InvitePageData, actor *domain.Actor, kind domain.ScopeKind, scopeID snowflake.ID) (*domain.InvitePageData, error) {
	scope, err := s.resolver.ResolveByID(ctx, kind, scopeID)
	if errors.Is(err, domain.ErrScopeNotFound) {
		return &domain.InvitePageData{Kind: data.Kind, State: domain.PageStateInvalid}, nil
	}
	if err != nil {
		return nil, err
	}
	data.Scope = scope.Summary()

	if actor != nil && actor.UserID != 0 {
		_, member, err := s.resolver.RoleOf(ctx, scope, actor.UserID)
		if err != nil {
			return nil, err
		}
		data.IsAlreadyMember = member
	}
	return data, nil
}

func inviteState(invite *domain.Invite, now time.Time) domain.PageState {
	switch invite.Status {
	case domain.InviteStatusAccepted:
		return domain.PageStateAccepted
	case domain.InviteStatusDeclined:
		return domain.PageStateDeclined
	case domain.InviteStatusRevoked:
		return domain.PageStateRevoked
	}
	if domain.Expired(invite.ExpiresAt, now) {
		return domain.PageStateExpired
	}
	return domain.PageStateValid
}

func linkState(link *domain.InviteLink, now time.Time) domain.PageState {
	switch {
	case link.Status == domain.LinkStatusRevoked:
		return domain.PageStateRevoked
	case domain.Expired(link.ExpiresAt, now):
		return domain.PageStateExpired
	case link.Exhausted():
		return domain.PageStateMaxUsesReached
	default:
		return domain.PageStateValid
	}
}
