package service

import (
	"context"
	"strings"
	"time"

	"github.com/ramonsarchive/ascend/internal/authorization"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/ramonsarchive/ascend/internal/membership/token"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
	"gorm.io/gorm"
)

func (s *Service) CreateInviteLink(ctx context.Context, actor *domain.Actor, req domain.CreateLinkRequest) (resp *domain.CreateLinkResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opLinkCreate, actor)
	defer s.done(ctx, opLinkCreate, &kind, end, &err)
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
	role, err := policy.ParseInvitableRole(req.Role)
	if err != nil {
		return nil, err
	}

	cfg := s.rules.Get()
	if req.MaxUses != nil && (*req.MaxUses <= 0 || *req.MaxUses > cfg.MaxLinkUses) {
		return nil, domain.InvalidRequest("max_uses must be between 1 and the configured cap")
	}
	note, err := optionalText(req.Note, maxNoteLength, "note")
	if err != nil {
		return nil, err
	}

	scope, err := s.resolver.Resolve(ctx, kind, req.Scope.Identifier)
	if err != nil {
		return nil, err
	}
	actorRole, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionLinkCreate)
	if err != nil {
		return nil, err
	}
	if policy.IsTopTier(role) && !policy.IsTopTier(actorRole) {
		return nil, domain.ErrGuardrailHierarchy
	}

	now := s.clock.Now()
	link := &domain.InviteLink{
		ID:        s.genID.Generate(),
		ScopeKind: kind,
		ScopeID:   scope.ID,
		Role:      role,
		Status:    domain.LinkStatusPending,
		MaxUses:   req.MaxUses,
		ExpiresAt: timePtr(now.Add(cfg.ClampExpiry(req.ExpiryMinutes))),
		CreatedBy: actor.UserID,
		Note:      note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = token.IssueUnique(cfg.TokenBytes, token.DefaultAttempts, func(value string) error {
		link.Token = value
		return s.repo.CreateInviteLink(ctx, link)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kind, scope.ID, event.LinkCreated, link.ID, actor.UserID)
	return &domain.CreateLinkResponse{
		LinkID:    link.ID.String(),
		ShareURL:  s.baseURL + joinLinkPathPrefix + link.Token,
		ExpiresAt: link.ExpiresAt,
	}, nil
}

func (s *Service) AcceptInviteLink(ctx context.Context, actor *domain.Actor, tokenValue string) (resp *domain.AcceptResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opLinkAccept, actor)
	defer s.done(ctx, opLinkAccept, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return nil, domain.ErrLinkInvalid
	}
	link, err := s.repo.GetInviteLinkByToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrLinkInvalid
	}
	kind = link.ScopeKind
	now := s.clock.Now()
	if err := classifyLink(link, now); err != nil {
		return nil, err
	}
	policy, err := domain.PolicyFor(link.ScopeKind)
	if err != nil {
		return nil, err
	}

	var (
		membership       *domain.Membership
		created, changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.ConsumeInviteLink(ctx, link.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := repo.GetInviteLinkByID(ctx, link.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrLinkInvalid
			}
			if err := classifyLink(current, now); err != nil {
				return err
			}
			return domain.ErrLinkMaxUsesReached
		}

		membership, created, changed, err = s.upsertMembership(ctx, repo, policy, link.ScopeID, actor.UserID, link.Role, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, link.ScopeKind, link.ScopeID, event.LinkAccepted, link.ID, actor.UserID)
	s.publishMembership(ctx, membership, created, changed, actor.UserID)

	return &domain.AcceptResponse{
		ScopeKind: link.ScopeKind,
		ScopeID:   link.ScopeID.String(),
		Role:      membership.Role,
	}, nil
}

// classifyLink returns the reason a link cannot be used right now.
func classifyLink(link *domain.InviteLink, now time.Time) error {
	switch {
	case link.Status != domain.LinkStatusPending:
		return domain.ErrLinkInvalid
	case domain.Expired(link.ExpiresAt, now):
		return domain.ErrLinkExpired
	case link.Exhausted():
		return domain.ErrLinkMaxUsesReached
	default:
		return nil
	}
}

func (s *Service) RevokeInviteLink(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef, linkID string) (resp *domain.StatusResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opLinkRevoke, actor)
	defer s.done(ctx, opLinkRevoke, &kind, end, &err)
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
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionLinkRevoke); err != nil {
		return nil, err
	}

	id, err := parseID(linkID)
	if err != nil {
		return nil, err
	}
	link, err := s.repo.GetInviteLinkByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if link == nil || link.ScopeKind != scope.Kind || link.ScopeID != scope.ID {
		return nil, domain.ErrNotFound
	}

	ok, err := s.repo.RevokeInviteLink(ctx, link.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrLinkInvalid
	}

	s.publish(ctx, scope.Kind, scope.ID, event.LinkRevoked, link.ID, actor.UserID)
	return &domain.StatusResponse{ID: link.ID.String(), Status: string(domain.LinkStatusRevoked)}, nil
}

func (s *Service) ListInviteLinks(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef, page pagination.Pagination) (resp *domain.ListLinksResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opLinkList, actor)
	defer s.done(ctx, opLinkList, &kind, end, &err)
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
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionLinkList); err != nil {
		return nil, err
	}

	after, err := pageAfter(page)
	if err != nil {
		return nil, err
	}
	limit := page.Limit()
	rows, err := s.repo.ListInviteLinks(ctx, scope.Kind, scope.ID, after, limit+1)
	if err != nil {
		return nil, err
	}
	rows, info, err := pagination.Trim(rows, limit, func(l domain.InviteLink) string { return l.ID.String() })
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	views := make([]domain.LinkView, 0, len(rows))
	for _, row := range rows {
		views = append(views, domain.LinkView{
			ID:        row.ID.String(),
			Role:      row.Role,
			Status:    row.Status,
			MaxUses:   row.MaxUses,
			Uses:      row.Uses,
			Expired:   domain.Expired(row.ExpiresAt, now),
			ExpiresAt: row.ExpiresAt,
			Note:      row.Note,
			CreatedAt: row.CreatedAt,
		})
	}
	return &domain.ListLinksResponse{Links: views, PageInfo: info}, nil
}
