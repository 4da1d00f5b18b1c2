package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/ramonsarchive/ascend/internal/authorization"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/ramonsarchive/ascend/internal/membership/token"
	"github.com/ramonsarchive/ascend/pkg/db"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) CreateEmailInvite(ctx context.Context, actor *domain.Actor, req domain.CreateInviteRequest) (resp *domain.CreateInviteResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opInviteCreate, actor)
	defer s.done(ctx, opInviteCreate, &kind, end, &err)
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
	email, err := parseEmail(req.Email)
	if err != nil {
		return nil, err
	}
	message, err := optionalText(req.Message, maxMessageLength, "message")
	if err != nil {
		return nil, err
	}

	scope, err := s.resolver.Resolve(ctx, kind, req.Scope.Identifier)
	if err != nil {
		return nil, err
	}
	actorRole, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionInviteCreate)
	if err != nil {
		return nil, err
	}
	if policy.IsTopTier(role) && !policy.IsTopTier(actorRole) {
		return nil, domain.ErrGuardrailHierarchy
	}

	cfg := s.rules.Get()
	now := s.clock.Now()
	invite := &domain.Invite{
		ID:        s.genID.Generate(),
		ScopeKind: kind,
		ScopeID:   scope.ID,
		Email:     email,
		Role:      role,
		Status:    domain.InviteStatusPending,
		ExpiresAt: timePtr(now.Add(cfg.ClampExpiry(req.ExpiryMinutes))),
		CreatedBy: actor.UserID,
		Message:   message,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		member, err := repo.IsEmailMember(ctx, kind, scope.ID, email)
		if err != nil {
			return err
		}
		if member {
			return domain.ErrAlreadyMember
		}

		pending, err := repo.FindPendingInvite(ctx, kind, scope.ID, email)
		if err != nil {
			return err
		}
		if pending != nil {
			if !domain.Expired(pending.ExpiresAt, now) {
				return domain.ErrInviteAlreadyPending
			}
			// A lapsed invite still holds the pending slot for this email.
			if _, err := repo.TransitionInvite(ctx, pending.ID, domain.InviteStatusRevoked, nil, now); err != nil {
				return err
			}
		}

		_, err = token.IssueUnique(cfg.TokenBytes, token.DefaultAttempts, func(value string) error {
			invite.Token = value
			return repo.CreateInvite(ctx, invite)
		})
		if err != nil && db.IsDuplicateKeyErr(err) {
			raced, findErr := repo.FindPendingInvite(ctx, kind, scope.ID, email)
			if findErr != nil {
				return findErr
			}
			if raced != nil {
				return domain.ErrInviteAlreadyPending
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kind, scope.ID, event.InviteCreated, invite.ID, actor.UserID)
	s.sendInviteEmail(ctx, domain.InviteEmail{
		ToEmail:   email,
		ScopeKind: kind,
		ScopeName: scope.Name,
		Role:      role,
		JoinURL:   s.baseURL + invitePathPrefix + invite.Token,
		Message:   message,
		ExpiresAt: invite.ExpiresAt,
	})

	return &domain.CreateInviteResponse{
		InviteID:  invite.ID.String(),
		ExpiresAt: invite.ExpiresAt,
	}, nil
}

// sendInviteEmail is best-effort: the invite stays valid when delivery fails.
func (s *Service) sendInviteEmail(ctx context.Context, email domain.InviteEmail) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendInviteEmail(ctx, email); err != nil {
		s.metrics.RecordNotifierFailure(ctx, string(email.ScopeKind))
		s.log.Warn("failed to send invite email",
			zap.String("scope_kind", string(email.ScopeKind)),
			zap.Error(err),
		)
	}
}

func (s *Service) AcceptEmailInvite(ctx context.Context, actor *domain.Actor, tokenValue string) (resp *domain.AcceptResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opInviteAccept, actor)
	defer s.done(ctx, opInviteAccept, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.EmailVerified {
		return nil, domain.ErrEmailMismatch
	}

	invite, err := s.pendingInvite(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	kind = invite.ScopeKind
	if domain.NormalizeEmail(actor.Email) != invite.Email {
		return nil, domain.ErrEmailMismatch
	}
	policy, err := domain.PolicyFor(invite.ScopeKind)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		membership       *domain.Membership
		created, changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.TransitionInvite(ctx, invite.ID, domain.InviteStatusAccepted, &actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInviteInvalid
		}

		membership, created, changed, err = s.upsertMembership(ctx, repo, policy, invite.ScopeID, actor.UserID, invite.Role, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, invite.ScopeKind, invite.ScopeID, event.InviteAccepted, invite.ID, actor.UserID)
	s.publishMembership(ctx, membership, created, changed, actor.UserID)

	return &domain.AcceptResponse{
		ScopeKind: invite.ScopeKind,
		ScopeID:   invite.ScopeID.String(),
		Role:      membership.Role,
	}, nil
}

func (s *Service) DeclineEmailInvite(ctx context.Context, actor *domain.Actor, tokenValue string) (resp *domain.StatusResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opInviteDecline, actor)
	defer s.done(ctx, opInviteDecline, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.EmailVerified {
		return nil, domain.ErrEmailMismatch
	}

	invite, err := s.pendingInvite(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	kind = invite.ScopeKind
	if domain.NormalizeEmail(actor.Email) != invite.Email {
		return nil, domain.ErrEmailMismatch
	}

	ok, err := s.repo.TransitionInvite(ctx, invite.ID, domain.InviteStatusDeclined, nil, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInviteInvalid
	}

	s.publish(ctx, invite.ScopeKind, invite.ScopeID, event.InviteDeclined, invite.ID, actor.UserID)
	return &domain.StatusResponse{ID: invite.ID.String(), Status: string(domain.InviteStatusDeclined)}, nil
}

// pendingInvite loads a token that can still be acted upon.
func (s *Service) pendingInvite(ctx context.Context, tokenValue string) (*domain.Invite, error) {
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return nil, domain.ErrInviteInvalid
	}
	invite, err := s.repo.GetInviteByToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	if invite == nil || invite.Status != domain.InviteStatusPending {
		return nil, domain.ErrInviteInvalid
	}
	if domain.Expired(invite.ExpiresAt, s.clock.Now()) {
		return nil, domain.ErrInviteExpired
	}
	return invite, nil
}

func (s *Service) RevokeEmailInvite(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef, inviteID string) (resp *domain.StatusResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opInviteRevoke, actor)
	defer s.done(ctx, opInviteRevoke, &kind, end, &err)
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
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionInviteRevoke); err != nil {
		return nil, err
	}

	id, err := parseID(inviteID)
	if err != nil {
		return nil, err
	}
	invite, err := s.repo.GetInviteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invite == nil || invite.ScopeKind != scope.Kind || invite.ScopeID != scope.ID {
		return nil, domain.ErrNotFound
	}

	ok, err := s.repo.TransitionInvite(ctx, invite.ID, domain.InviteStatusRevoked, nil, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInviteInvalid
	}

	s.publish(ctx, scope.Kind, scope.ID, event.InviteRevoked, invite.ID, actor.UserID)
	return &domain.StatusResponse{ID: invite.ID.String(), Status: string(domain.InviteStatusRevoked)}, nil
}

func (s *Service) ListPendingInvites(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef, page pagination.Pagination) (resp *domain.ListInvitesResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opInviteList, actor)
	defer s.done(ctx, opInviteList, &kind, end, &err)
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
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionInviteList); err != nil {
		return nil, err
	}

	after, err := pageAfter(page)
	if err != nil {
		return nil, err
	}
	limit := page.Limit()
	rows, err := s.repo.ListPendingInvites(ctx, scope.Kind, scope.ID, s.clock.Now(), after, limit+1)
	if err != nil {
		return nil, err
	}
	rows, info, err := pagination.Trim(rows, limit, func(i domain.Invite) string { return i.ID.String() })
	if err != nil {
		return nil, err
	}

	views := make([]domain.InviteView, 0, len(rows))
	for _, row := range rows {
		views = append(views, domain.InviteView{
			ID:        row.ID.String(),
			Email:     row.Email,
			Role:      row.Role,
			ExpiresAt: row.ExpiresAt,
			CreatedBy: row.CreatedBy.String(),
			CreatedAt: row.CreatedAt,
		})
	}
	return &domain.ListInvitesResponse{Invites: views, PageInfo: info}, nil
}

// parseEmail normalizes a bare address; display names are rejected.
func parseEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", domain.InvalidRequest("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", domain.InvalidRequest("email is invalid")
	}
	return email, nil
}
