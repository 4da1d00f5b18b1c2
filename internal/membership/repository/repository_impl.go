package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

// forUpdate adds a row lock on stores that support it. sqlite serializes
// writers on its own.
func (r *repository) forUpdate(q *gorm.DB) *gorm.DB {
	if db.SupportsRowLocking(r.db) {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func first[T any](q *gorm.DB) (*T, error) {
	var out T
	err := q.Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repository) GetMembership(ctx context.Context, kind domain.ScopeKind, scopeID, userID snowflake.ID) (*domain.Membership, error) {
	return first[domain.Membership](r.db.WithContext(ctx).
		Where("scope_kind = ? AND scope_id = ? AND user_id = ?", kind, scopeID, userID))
}

func (r *repository) GetMembershipByID(ctx context.Context, id snowflake.ID) (*domain.Membership, error) {
	return first[domain.Membership](r.forUpdate(r.db.WithContext(ctx).Where("id = ?", id)))
}

// LockMembership reads a user's direct membership and holds its row lock
// until the surrounding transaction ends.
func (r *repository) LockMembership(ctx context.Context, kind domain.ScopeKind, scopeID, userID snowflake.ID) (*domain.Membership, error) {
	return first[domain.Membership](r.forUpdate(r.db.WithContext(ctx).
		Where("scope_kind = ? AND scope_id = ? AND user_id = ?", kind, scopeID, userID)))
}

// InsertMembershipIfAbsent reports false when a row for the same scope and
// user already exists.
func (r *repository) InsertMembershipIfAbsent(ctx context.Context, m *domain.Membership) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateMembershipRole(ctx context.Context, id snowflake.ID, role domain.Role, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteMembership(ctx context.Context, id snowflake.ID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Membership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LockRoleHolders returns the ids holding role in the scope, locked in id
// order so concurrent guardrail checks on one scope serialize.
func (r *repository) LockRoleHolders(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, role domain.Role) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	q := r.db.WithContext(ctx).Model(&domain.Membership{}).
		Where("scope_kind = ? AND scope_id = ? AND role = ?", kind, scopeID, role).
		Order("id ASC")
	if err := r.forUpdate(q).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListMemberships(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, after snowflake.ID, limit int) ([]domain.Membership, error) {
	var items []domain.Membership
	q := r.db.WithContext(ctx).Where("scope_kind = ? AND scope_id = ?", kind, scopeID)
	if after != 0 {
		q = q.Where("id > ?", after)
	}
	if err := q.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) IsEmailMember(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.scope_kind = ? AND m.scope_id = ? AND LOWER(u.email) = ?`,
		kind,
		scopeID,
		domain.NormalizeEmail(email),
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateInvite runs in a savepoint so a token collision can be retried
// without aborting the surrounding transaction.
func (r *repository) CreateInvite(ctx context.Context, invite *domain.Invite) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(invite).Error
	})
}

func (r *repository) GetInviteByToken(ctx context.Context, token string) (*domain.Invite, error) {
	return first[domain.Invite](r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *repository) GetInviteByID(ctx context.Context, id snowflake.ID) (*domain.Invite, error) {
	return first[domain.Invite](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindPendingInvite(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, email string) (*domain.Invite, error) {
	return first[domain.Invite](r.forUpdate(r.db.WithContext(ctx).
		Where("scope_kind = ? AND scope_id = ? AND email = ? AND status = ?", kind, scopeID, domain.NormalizeEmail(email), domain.InviteStatusPending)))
}

// TransitionInvite moves a PENDING invite to another status. It reports false
// when the invite was no longer pending.
func (r *repository) TransitionInvite(ctx context.Context, id snowflake.ID, to domain.InviteStatus, acceptedBy *snowflake.ID, now time.Time) (bool, error) {
	fields := map[string]any{
		"status":     to,
		"updated_at": now,
	}
	if acceptedBy != nil {
		fields["accepted_by"] = *acceptedBy
		fields["accepted_at"] = now
	}

	res := r.db.WithContext(ctx).Model(&domain.Invite{}).
		Where("id = ? AND status = ?", id, domain.InviteStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListPendingInvites(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, now time.Time, after snowflake.ID, limit int) ([]domain.Invite, error) {
	var items []domain.Invite
	q := r.db.WithContext(ctx).
		Where("scope_kind = ? AND scope_id = ? AND status = ?", kind, scopeID, domain.InviteStatusPending).
		Where("expires_at IS NULL OR expires_at >= ?", now)
	if after != 0 {
		q = q.Where("id > ?", after)
	}
	if err := q.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateInviteLink(ctx context.Context, link *domain.InviteLink) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(link).Error
	})
}

func (r *repository) GetInviteLinkByToken(ctx context.Context, token string) (*domain.InviteLink, error) {
	return first[domain.InviteLink](r.db.WithContext(ctx).Where("token = ?", token))
}

func (r *repository) GetInviteLinkByID(ctx context.Context, id snowflake.ID) (*domain.InviteLink, error) {
	return first[domain.InviteLink](r.db.WithContext(ctx).Where("id = ?", id))
}

// ConsumeInviteLink spends one use of a link. Capacity, status and expiry are
// all part of the predicate, so the check and the increment are one atomic
// statement. It reports false when no use could be taken.
func (r *repository) ConsumeInviteLink(ctx context.Context, id snowflake.ID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invite_links
		 SET uses = uses + 1, updated_at = ?
		 WHERE id = ?
		   AND status = ?
		   AND (max_uses IS NULL OR uses < max_uses)
		   AND (expires_at IS NULL OR expires_at >= ?)`,
		now,
		id,
		domain.LinkStatusPending,
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RevokeInviteLink(ctx context.Context, id snowflake.ID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.InviteLink{}).
		Where("id = ? AND status = ?", id, domain.LinkStatusPending).
		Updates(map[string]any{"status": domain.LinkStatusRevoked, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListInviteLinks(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, after snowflake.ID, limit int) ([]domain.InviteLink, error) {
	var items []domain.InviteLink
	q := r.db.WithContext(ctx).
		Where("scope_kind = ? AND scope_id = ? AND status = ?", kind, scopeID, domain.LinkStatusPending)
	if after != 0 {
		q = q.Where("id > ?", after)
	}
	if err := q.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateJoinRequest(ctx context.Context, req *domain.JoinRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) GetJoinRequestByID(ctx context.Context, id snowflake.ID) (*domain.JoinRequest, error) {
	return first[domain.JoinRequest](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindPendingJoinRequest(ctx context.Context, kind domain.ScopeKind, scopeID, userID snowflake.ID) (*domain.JoinRequest, error) {
	return first[domain.JoinRequest](r.db.WithContext(ctx).
		Where("scope_kind = ? AND scope_id = ? AND user_id = ? AND status = ?", kind, scopeID, userID, domain.JoinRequestPending))
}

// TransitionJoinRequest decides a PENDING request. It reports false when the
// request had already been decided.
func (r *repository) TransitionJoinRequest(ctx context.Context, id snowflake.ID, to domain.JoinRequestStatus, reviewedBy *snowflake.ID, now time.Time) (bool, error) {
	fields := map[string]any{
		"status":      to,
		"reviewed_by": reviewedBy,
		"reviewed_at": now,
		"updated_at":  now,
	}
	res := r.db.WithContext(ctx).Model(&domain.JoinRequest{}).
		Where("id = ? AND status = ?", id, domain.JoinRequestPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListJoinRequests(ctx context.Context, kind domain.ScopeKind, scopeID snowflake.ID, status domain.JoinRequestStatus, after snowflake.ID, limit int) ([]domain.JoinRequest, error) {
	var items []domain.JoinRequest
	q := r.db.WithContext(ctx).Where("scope_kind = ? AND scope_id = ?", kind, scopeID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if after != 0 {
		q = q.Where("id > ?", after)
	}
	if err := q.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
