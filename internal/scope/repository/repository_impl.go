package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/scope/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func take[T any](q *gorm.DB) (*T, error) {
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

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return take[domain.Organization](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	return take[domain.Organization](r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *repository) GetEvent(ctx context.Context, id snowflake.ID) (*domain.Event, error) {
	return take[domain.Event](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) GetEventBySlug(ctx context.Context, slug string) (*domain.Event, error) {
	return take[domain.Event](r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *repository) GetTeam(ctx context.Context, id snowflake.ID) (*domain.Team, error) {
	return take[domain.Team](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	return take[domain.Team](r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *repository) DirectRole(ctx context.Context, kind membershipdomain.ScopeKind, scopeID, userID snowflake.ID) (membershipdomain.Role, bool, error) {
	var roles []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM memberships
		 WHERE scope_kind = ? AND scope_id = ? AND user_id = ?
		 LIMIT 1`,
		kind,
		scopeID,
		userID,
	).Scan(&roles).Error
	if err != nil {
		return "", false, err
	}
	if len(roles) == 0 || roles[0] == "" {
		return "", false, nil
	}
	return membershipdomain.Role(roles[0]), true, nil
}
