// Package guardrail validates role changes and removals against the
// membership invariants of a scope kind.
package guardrail

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
)

// Mutation describes a role change (DesiredRole set) or a removal (nil).
type Mutation struct {
	ActorUserID   snowflake.ID
	ActorRole     domain.Role
	ActorIsMember bool
	Target        domain.Membership
	DesiredRole   *domain.Role
}

// Check applies the actor-facing rules in order. It does not look at other
// members; the last-admin rule needs a count and lives in CheckLastAdmin.
func Check(policy domain.Policy, m Mutation) error {
	if !m.ActorIsMember || !policy.IsAdmin(m.ActorRole) {
		return domain.ErrNotAuthorized
	}
	if m.Target.UserID == m.ActorUserID {
		return domain.ErrGuardrailSelfModify
	}

	actorIsTop := policy.IsTopTier(m.ActorRole)
	if m.DesiredRole != nil && policy.IsTopTier(*m.DesiredRole) {
		return domain.ErrGuardrailHierarchy
	}
	if policy.IsTopTier(m.Target.Role) && !actorIsTop {
		return domain.ErrGuardrailHierarchy
	}
	if policy.IsSecondTier(m.Target.Role) && !actorIsTop {
		return domain.ErrGuardrailHierarchy
	}

	if m.DesiredRole != nil && !policy.HasRole(*m.DesiredRole) {
		return domain.ErrRoleNotAllowed
	}
	return nil
}

// CheckLastAdmin rejects a mutation that would leave a scope without a
// top-tier holder. remaining counts top-tier holders other than target and
// must be read in the transaction that applies the mutation.
func CheckLastAdmin(policy domain.Policy, target domain.Membership, desired *domain.Role, remaining int64) error {
	if !policy.RequiresTopTier || !policy.IsTopTier(target.Role) {
		return nil
	}
	if desired != nil && policy.IsTopTier(*desired) {
		return nil
	}
	if remaining > 0 {
		return nil
	}
	return domain.ErrGuardrailLastAdmin
}
