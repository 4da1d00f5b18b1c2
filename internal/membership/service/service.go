package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/authorization"
	"github.com/ramonsarchive/ascend/internal/clock"
	"github.com/ramonsarchive/ascend/internal/config"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/ramonsarchive/ascend/internal/observability/metrics"
	"github.com/ramonsarchive/ascend/internal/observability/tracing"
	"github.com/ramonsarchive/ascend/internal/ratelimit"
	scopedomain "github.com/ramonsarchive/ascend/internal/scope/domain"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
	pkglog "github.com/ramonsarchive/ascend/pkg/log"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Operation names double as rate limit buckets and metric labels.
const (
	opInviteCreate      = "invite.create"
	opInviteAccept      = "invite.accept"
	opInviteDecline     = "invite.decline"
	opInviteRevoke      = "invite.revoke"
	opInviteList        = "invite.list"
	opLinkCreate        = "link.create"
	opLinkAccept        = "link.accept"
	opLinkRevoke        = "link.revoke"
	opLinkList          = "link.list"
	opJoinRequestCreate = "join_request.create"
	opJoinRequestReview = "join_request.review"
	opJoinRequestCancel = "join_request.cancel"
	opJoinRequestList   = "join_request.list"
	opMemberChangeRole  = "member.change_role"
	opMemberRemove      = "member.remove"
	opMemberLeave       = "member.leave"
	opMemberList        = "member.list"
	opInvitePage        = "invite.page"
)

const (
	maxMessageLength   = 1000
	maxNoteLength      = 280
	invitePathPrefix   = "/invite/"
	joinLinkPathPrefix = "/join/"
	resultOK           = "OK"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Resolver  scopedomain.Resolver
	Authz     authorization.Service
	Limiter   ratelimit.Limiter
	Publisher event.Publisher
	Notifier  domain.Notifier  `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
	Clock     clock.Clock
	GenID     *snowflake.Node
	Rules     *config.MembershipConfigHolder
	AppCfg    config.Config
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	resolver  scopedomain.Resolver
	authz     authorization.Service
	limiter   ratelimit.Limiter
	publisher event.Publisher
	notifier  domain.Notifier
	metrics   *metrics.Metrics
	clock     clock.Clock
	genID     *snowflake.Node
	rules     *config.MembershipConfigHolder
	baseURL   string
}

func NewService(p Params) domain.Service {
	limiter := p.Limiter
	if limiter == nil {
		limiter = ratelimit.NewNoop()
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = event.NewNoopPublisher()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("membership.service"),
		repo:      p.Repo,
		resolver:  p.Resolver,
		authz:     p.Authz,
		limiter:   limiter,
		publisher: publisher,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
		clock:     p.Clock,
		genID:     p.GenID,
		rules:     p.Rules,
		baseURL:   strings.TrimRight(p.AppCfg.PublicBaseURL, "/"),
	}
}

// begin opens the operation span and applies the rate limit. Every entry
// point calls it before touching the store.
func (s *Service) begin(ctx context.Context, op string, actor *domain.Actor) (context.Context, func(*error), error) {
	ctx, span := tracing.StartSpan(ctx, "membership."+op, attribute.String("operation", op))
	end := func(errp *error) {
		if errp != nil && *errp != nil {
			span.SetAttributes(attribute.String("error_kind", string(domain.KindOf(*errp))))
		}
		span.End()
	}

	subject := rateSubject(op, actor)
	allowed, err := s.limiter.Allow(ctx, op, subject)
	if err != nil {
		pkglog.With(ctx, s.log).Warn("rate limiter unavailable, allowing request",
			zap.String("operation", op),
			zap.Error(err),
		)
		return ctx, end, nil
	}
	if !allowed {
		s.metrics.RecordRateLimitDenied(ctx, op)
		return ctx, end, domain.ErrRateLimited
	}
	return ctx, end, nil
}

// rateSubject keys authenticated callers by user and the landing page by IP.
func rateSubject(op string, actor *domain.Actor) string {
	if actor == nil {
		return ""
	}
	if op == opInvitePage || actor.UserID == 0 {
		return actor.IP
	}
	return actor.UserID.String()
}

// finish maps untyped failures to INTERNAL_ERROR after logging them and
// records the outcome.
func (s *Service) finish(ctx context.Context, op string, kind domain.ScopeKind, err error) error {
	if err == nil {
		s.metrics.RecordOperation(ctx, op, string(kind), resultOK)
		return nil
	}
	if typed, ok := domain.AsError(err); ok {
		s.metrics.RecordOperation(ctx, op, string(kind), string(typed.Kind))
		return typed
	}
	log := pkglog.With(ctx, s.log)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info("operation cancelled", zap.String("operation", op), zap.Error(err))
	} else {
		log.Error("operation failed",
			zap.String("operation", op),
			zap.String("scope_kind", string(kind)),
			zap.Error(err),
		)
	}
	s.metrics.RecordOperation(ctx, op, string(kind), string(domain.KindInternal))
	return domain.ErrInternal
}

func requireActor(actor *domain.Actor) error {
	if actor == nil || actor.UserID == 0 {
		return domain.ErrAuthRequired
	}
	return nil
}

// resolveScope parses the kind and looks the scope up.
func (s *Service) resolveScope(ctx context.Context, ref domain.ScopeRef) (*scopedomain.Scope, domain.Policy, error) {
	kind, err := domain.ParseScopeKind(ref.Kind)
	if err != nil {
		return nil, domain.Policy{}, err
	}
	policy, err := domain.PolicyFor(kind)
	if err != nil {
		return nil, domain.Policy{}, err
	}
	scope, err := s.resolver.Resolve(ctx, kind, ref.Identifier)
	if err != nil {
		return nil, domain.Policy{}, err
	}
	return scope, policy, nil
}

// authorize checks the actor's effective role against a capability.
func (s *Service) authorize(ctx context.Context, scope *scopedomain.Scope, userID snowflake.ID, action string) (domain.Role, error) {
	role, ok, err := s.resolver.RoleOf(ctx, scope, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotAuthorized
	}
	if err := s.authz.Authorize(ctx, string(scope.Kind), string(role), action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) {
			return "", domain.ErrNotAuthorized
		}
		return "", err
	}
	return role, nil
}

// upsertMembership grants role without ever duplicating a row or lowering an
// existing higher role. created reports a new row; changed a role upgrade.
func (s *Service) upsertMembership(ctx context.Context, repo domain.Repository, policy domain.Policy, scopeID, userID snowflake.ID, role domain.Role, now time.Time) (m *domain.Membership, created bool, changed bool, err error) {
	row := &domain.Membership{
		ID:        s.genID.Generate(),
		ScopeKind: policy.Kind,
		ScopeID:   scopeID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := repo.InsertMembershipIfAbsent(ctx, row)
	if err != nil {
		return nil, false, false, err
	}
	if inserted {
		return row, true, false, nil
	}

	existing, err := repo.GetMembership(ctx, policy.Kind, scopeID, userID)
	if err != nil {
		return nil, false, false, err
	}
	if existing == nil {
		return nil, false, false, errors.New("membership vanished during upsert")
	}
	if !policy.Outranks(role, existing.Role) {
		return existing, false, false, nil
	}
	if err := repo.UpdateMembershipRole(ctx, existing.ID, role, now); err != nil {
		return nil, false, false, err
	}
	existing.Role = role
	existing.UpdatedAt = now
	return existing, false, true, nil
}

// publish emits after commit; failures are logged only.
func (s *Service) publish(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, changeType event.ChangeType, subjectID, actorID snowflake.ID) {
	evt := event.ChangeEvent{
		ScopeKind:  kind,
		ScopeID:    scopeID,
		ChangeType: changeType,
		SubjectID:  subjectID,
		ActorID:    actorID,
		OccurredAt: s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("failed to publish membership change",
			zap.String("scope_kind", string(kind)),
			zap.String("scope_id", scopeID.String()),
			zap.String("change_type", string(changeType)),
			zap.Error(err),
		)
	}
}

// publishMembership emits the membership-level event that follows an upsert.
func (s *Service) publishMembership(ctx context.Context, m *domain.Membership, created, changed bool, actorID snowflake.ID) {
	switch {
	case created:
		s.metrics.RecordMembershipChange(ctx, string(m.ScopeKind), string(event.MemberAdded))
		s.publish(ctx, m.ScopeKind, m.ScopeID, event.MemberAdded, m.ID, actorID)
	case changed:
		s.metrics.RecordMembershipChange(ctx, string(m.ScopeKind), string(event.MemberRoleChanged))
		s.publish(ctx, m.ScopeKind, m.ScopeID, event.MemberRoleChanged, m.ID, actorID)
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

// pageAfter decodes the keyset cursor of a listing.
func pageAfter(page pagination.Pagination) (snowflake.ID, error) {
	if strings.TrimSpace(page.PageToken) == "" {
		return 0, nil
	}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return 0, domain.InvalidRequest("invalid page token")
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return 0, domain.InvalidRequest("invalid page token")
	}
	return id, nil
}

func optionalText(value *string, limit int, field string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > limit {
		return nil, domain.InvalidRequest(field + " is too long")
	}
	return &trimmed, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// done is deferred by every entry point to normalize and record its outcome.
func (s *Service) done(ctx context.Context, op string, kind *domain.ScopeKind, end func(*error), errp *error) {
	*errp = s.finish(ctx, op, *kind, *errp)
	end(errp)
}
