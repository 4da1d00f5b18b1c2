package service

import (
	"context"
	"strings"

	"github.com/ramonsarchive/ascend/internal/authorization"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/ramonsarchive/ascend/pkg/db"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
	"gorm.io/gorm"
)

func (s *Service) CreateJoinRequest(ctx context.Context, actor *domain.Actor, req domain.CreateJoinRequestRequest) (resp *domain.CreateJoinRequestResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opJoinRequestCreate, actor)
	defer s.done(ctx, opJoinRequestCreate, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	scope, policy, err := s.resolveScope(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	kind = scope.Kind
	if !policy.JoinRequests {
		return nil, domain.ErrJoinRequestsDisabled
	}
	if open, err := s.resolver.JoinRequestsOpen(ctx, scope); err != nil {
		return nil, err
	} else if !open {
		return nil, domain.ErrJoinRequestsDisabled
	}
	message, err := optionalText(req.Message, maxMessageLength, "message")
	if err != nil {
		return nil, err
	}

	if _, member, err := s.resolver.RoleOf(ctx, scope, actor.UserID); err != nil {
		return nil, err
	} else if member {
		return nil, domain.ErrAlreadyMember
	}

	now := s.clock.Now()
	request := &domain.JoinRequest{
		ID:        s.genID.Generate(),
		ScopeKind: scope.Kind,
		ScopeID:   scope.ID,
		UserID:    actor.UserID,
		Message:   message,
		Status:    domain.JoinRequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindPendingJoinRequest(ctx, scope.Kind, scope.ID, actor.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrRequestAlreadyExists
		}

		if err := repo.CreateJoinRequest(ctx, request); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrRequestAlreadyExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, scope.Kind, scope.ID, event.JoinRequestCreated, request.ID, actor.UserID)
	return &domain.CreateJoinRequestResponse{RequestID: request.ID.String()}, nil
}

func (s *Service) ReviewJoinRequest(ctx context.Context, actor *domain.Actor, req domain.ReviewJoinRequestRequest) (resp *domain.StatusResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opJoinRequestReview, actor)
	defer s.done(ctx, opJoinRequestReview, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	decision := domain.ReviewDecision(strings.ToUpper(strings.TrimSpace(req.Decision)))
	if decision != domain.DecisionApprove && decision != domain.DecisionDecline {
		return nil, domain.InvalidRequest("decision must be APPROVE or DECLINE")
	}

	scope, policy, err := s.resolveScope(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	kind = scope.Kind
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionJoinRequestReview); err != nil {
		return nil, err
	}

	id, err := parseID(req.RequestID)
	if err != nil {
		return nil, err
	}
	request, err := s.repo.GetJoinRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil || request.ScopeKind != scope.Kind || request.ScopeID != scope.ID {
		return nil, domain.ErrNotFound
	}
	if request.Status != domain.JoinRequestPending {
		return nil, domain.ErrRequestAlreadyReviewed
	}

	target := domain.JoinRequestDeclined
	if decision == domain.DecisionApprove {
		target = domain.JoinRequestAccepted
	}

	now := s.clock.Now()
	var (
		membership       *domain.Membership
		created, changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.TransitionJoinRequest(ctx, request.ID, target, &actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrRequestAlreadyReviewed
		}
		if target != domain.JoinRequestAccepted {
			return nil
		}

		membership, created, changed, err = s.upsertMembership(ctx, repo, policy, scope.ID, request.UserID, policy.DefaultRole, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, scope.Kind, scope.ID, event.JoinRequestReviewed, request.ID, actor.UserID)
	if membership != nil {
		s.publishMembership(ctx, membership, created, changed, actor.UserID)
	}
	return &domain.StatusResponse{ID: request.ID.String(), Status: string(target)}, nil
}

// CancelJoinRequest withdraws the caller's own pending request.
func (s *Service) CancelJoinRequest(ctx context.Context, actor *domain.Actor, ref domain.ScopeRef) (resp *domain.StatusResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opJoinRequestCancel, actor)
	defer s.done(ctx, opJoinRequestCancel, &kind, end, &err)
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

	request, err := s.repo.FindPendingJoinRequest(ctx, scope.Kind, scope.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}
	ok, err := s.repo.TransitionJoinRequest(ctx, request.ID, domain.JoinRequestDeclined, nil, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrRequestAlreadyReviewed
	}

	s.publish(ctx, scope.Kind, scope.ID, event.JoinRequestCancelled, request.ID, actor.UserID)
	return &domain.StatusResponse{ID: request.ID.String(), Status: string(domain.JoinRequestDeclined)}, nil
}

func (s *Service) ListJoinRequests(ctx context.Context, actor *domain.Actor, req domain.ListJoinRequestsRequest) (resp *domain.ListJoinRequestsResponse, err error) {
	var kind domain.ScopeKind
	ctx, end, err := s.begin(ctx, opJoinRequestList, actor)
	defer s.done(ctx, opJoinRequestList, &kind, end, &err)
	if err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	status := domain.JoinRequestStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	switch status {
	case "":
		status = domain.JoinRequestPending
	case domain.JoinRequestPending, domain.JoinRequestAccepted, domain.JoinRequestDeclined:
	default:
		return nil, domain.InvalidRequest("unknown join request status")
	}

	scope, _, err := s.resolveScope(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	kind = scope.Kind
	if _, err := s.authorize(ctx, scope, actor.UserID, authorization.ActionJoinRequestList); err != nil {
		return nil, err
	}

	after, err := pageAfter(req.Pagination)
	if err != nil {
		return nil, err
	}
	limit := req.Pagination.Limit()
	rows, err := s.repo.ListJoinRequests(ctx, scope.Kind, scope.ID, status, after, limit+1)
	if err != nil {
		return nil, err
	}
	rows, info, err := pagination.Trim(rows, limit, func(r domain.JoinRequest) string { return r.ID.String() })
	if err != nil {
		return nil, err
	}

	views := make([]domain.JoinRequestView, 0, len(rows))
	for _, row := range rows {
		view := domain.JoinRequestView{
			ID:         row.ID.String(),
			UserID:     row.UserID.String(),
			Message:    row.Message,
			Status:     row.Status,
			ReviewedAt: row.ReviewedAt,
			CreatedAt:  row.CreatedAt,
		}
		if row.ReviewedBy != nil {
			reviewer := row.ReviewedBy.String()
			view.ReviewedBy = &reviewer
		}
		views = append(views, view)
	}
	return &domain.ListJoinRequestsResponse{Requests: views, PageInfo: info}, nil
}
