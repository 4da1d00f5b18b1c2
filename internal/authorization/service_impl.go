package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// adminActions are granted to the lowest admin-equivalent role of each kind
// and inherited upwards through the role ranking.
var adminActions = []string{
	ActionInviteCreate,
	ActionInviteList,
	ActionInviteRevoke,
	ActionLinkCreate,
	ActionLinkList,
	ActionLinkRevoke,
	ActionMemberManage,
	ActionJoinRequestList,
	ActionJoinRequestReview,
}

// memberActions are granted to every role of a kind.
var memberActions = []string{
	ActionMemberList,
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists policies through the gorm adapter and reseeds them
// from the membership policy table on boot.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds a seeded enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, kind string, role string, action string) error {
	kind = strings.TrimSpace(kind)
	role = strings.TrimSpace(role)
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}
	if kind == "" || role == "" {
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(subject(kind, role), kind, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("scope_kind", kind),
			zap.String("role", role),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subject(kind, role string) string {
	return fmt.Sprintf("role:%s:%s", strings.ToLower(kind), strings.ToLower(role))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for _, kind := range domain.ScopeKinds {
		policy, err := domain.PolicyFor(kind)
		if err != nil {
			return err
		}

		for i := 0; i+1 < len(policy.Roles); i++ {
			higher := subject(string(kind), string(policy.Roles[i]))
			lower := subject(string(kind), string(policy.Roles[i+1]))
			if _, err := enforcer.AddGroupingPolicy(higher, lower); err != nil {
				return err
			}
		}

		lowestAdmin := policy.AdminRoles[len(policy.AdminRoles)-1]
		for _, r := range policy.AdminRoles {
			if policy.Outranks(lowestAdmin, r) {
				lowestAdmin = r
			}
		}
		for _, action := range adminActions {
			if _, err := enforcer.AddPolicy(subject(string(kind), string(lowestAdmin)), string(kind), action); err != nil {
				return err
			}
		}

		lowest := policy.Roles[len(policy.Roles)-1]
		for _, action := range memberActions {
			if _, err := enforcer.AddPolicy(subject(string(kind), string(lowest)), string(kind), action); err != nil {
				return err
			}
		}
	}
	return nil
}
