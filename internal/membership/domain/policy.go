package domain

import "strings"

// ScopeKind tags the entity a membership grants access to.
type ScopeKind string

const (
	ScopeOrganization ScopeKind = "ORGANIZATION"
	ScopeEvent        ScopeKind = "EVENT"
	ScopeEventStaff   ScopeKind = "EVENT_STAFF"
	ScopeTeam         ScopeKind = "TEAM"
)

// ScopeKinds lists every supported kind in resolution order.
var ScopeKinds = []ScopeKind{ScopeOrganization, ScopeEvent, ScopeEventStaff, ScopeTeam}

// ParseScopeKind accepts the canonical name or its lower/kebab-case URL form.
func ParseScopeKind(raw string) (ScopeKind, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch ScopeKind(value) {
	case ScopeOrganization, ScopeEvent, ScopeEventStaff, ScopeTeam:
		return ScopeKind(value), nil
	case "ORG", "ORGANIZATIONS":
		return ScopeOrganization, nil
	case "EVENTS":
		return ScopeEvent, nil
	case "STAFF":
		return ScopeEventStaff, nil
	case "TEAMS":
		return ScopeTeam, nil
	default:
		return "", ErrScopeNotFound
	}
}

type Role string

const (
	RoleOwner       Role = "OWNER"
	RoleAdmin       Role = "ADMIN"
	RoleMember      Role = "MEMBER"
	RoleOrganizer   Role = "ORGANIZER"
	RoleParticipant Role = "PARTICIPANT"
	RoleJudge       Role = "JUDGE"
	RoleStaff       Role = "STAFF"
	RoleLeader      Role = "LEADER"
)

// Inheritance grants a role in a child scope to holders of roles in its parent.
type Inheritance struct {
	Parent ScopeKind
	From   []Role
	Grants Role
}

// Policy captures everything that differs between scope kinds.
type Policy struct {
	Kind ScopeKind
	// Roles ordered from highest to lowest rank.
	Roles           []Role
	TopTier         Role
	SecondTier      Role
	AdminRoles      []Role
	InvitableRoles  []Role
	DefaultRole     Role
	JoinRequests    bool
	RequiresTopTier bool
	Inherits        *Inheritance
}

var policies = map[ScopeKind]Policy{
	ScopeOrganization: {
		Kind:            ScopeOrganization,
		Roles:           []Role{RoleOwner, RoleAdmin, RoleMember},
		TopTier:         RoleOwner,
		SecondTier:      RoleAdmin,
		AdminRoles:      []Role{RoleOwner, RoleAdmin},
		InvitableRoles:  []Role{RoleAdmin, RoleMember},
		DefaultRole:     RoleMember,
		JoinRequests:    true,
		RequiresTopTier: true,
	},
	ScopeEvent: {
		Kind:            ScopeEvent,
		Roles:           []Role{RoleAdmin, RoleOrganizer, RoleParticipant},
		TopTier:         RoleAdmin,
		SecondTier:      RoleOrganizer,
		AdminRoles:      []Role{RoleAdmin, RoleOrganizer},
		InvitableRoles:  []Role{RoleAdmin, RoleOrganizer, RoleParticipant},
		DefaultRole:     RoleParticipant,
		JoinRequests:    true,
		RequiresTopTier: true,
		Inherits: &Inheritance{
			Parent: ScopeOrganization,
			From:   []Role{RoleOwner, RoleAdmin},
			Grants: RoleAdmin,
		},
	},
	ScopeEventStaff: {
		Kind:           ScopeEventStaff,
		Roles:          []Role{RoleAdmin, RoleJudge, RoleStaff},
		TopTier:        RoleAdmin,
		AdminRoles:     []Role{RoleAdmin},
		InvitableRoles: []Role{RoleAdmin, RoleJudge, RoleStaff},
		DefaultRole:    RoleStaff,
		Inherits: &Inheritance{
			Parent: ScopeEvent,
			From:   []Role{RoleAdmin},
			Grants: RoleAdmin,
		},
	},
	ScopeTeam: {
		Kind:           ScopeTeam,
		Roles:          []Role{RoleLeader, RoleMember},
		TopTier:        RoleLeader,
		AdminRoles:     []Role{RoleLeader},
		InvitableRoles: []Role{RoleMember},
		DefaultRole:    RoleMember,
		JoinRequests:   true,
	},
}

// PolicyFor returns the policy of a kind. Unknown kinds yield ErrScopeNotFound.
func PolicyFor(kind ScopeKind) (Policy, error) {
	p, ok := policies[kind]
	if !ok {
		return Policy{}, ErrScopeNotFound
	}
	return p, nil
}

// ParseRole validates a raw role against the closed role set of the kind.
func (p Policy) ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !p.HasRole(role) {
		return "", ErrRoleNotAllowed
	}
	return role, nil
}

// ParseInvitableRole is ParseRole restricted to roles that may be granted by token.
func (p Policy) ParseInvitableRole(raw string) (Role, error) {
	role, err := p.ParseRole(raw)
	if err != nil {
		return "", err
	}
	if !containsRole(p.InvitableRoles, role) {
		return "", ErrRoleNotAllowed
	}
	return role, nil
}

func (p Policy) HasRole(role Role) bool {
	return containsRole(p.Roles, role)
}

func (p Policy) IsAdmin(role Role) bool {
	return containsRole(p.AdminRoles, role)
}

func (p Policy) IsTopTier(role Role) bool {
	return role != "" && role == p.TopTier
}

func (p Policy) IsSecondTier(role Role) bool {
	return p.SecondTier != "" && role == p.SecondTier
}

// Rank returns 0 for the highest role; unknown roles rank below every known one.
func (p Policy) Rank(role Role) int {
	for i, r := range p.Roles {
		if r == role {
			return i
		}
	}
	return len(p.Roles)
}

// Outranks reports whether a is strictly higher than b.
func (p Policy) Outranks(a, b Role) bool {
	return p.Rank(a) < p.Rank(b)
}

// InheritedRole maps a parent-scope role to the role it grants in this kind.
func (p Policy) InheritedRole(parentKind ScopeKind, parentRole Role) (Role, bool) {
	if p.Inherits == nil || p.Inherits.Parent != parentKind {
		return "", false
	}
	if !containsRole(p.Inherits.From, parentRole) {
		return "", false
	}
	return p.Inherits.Grants, true
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
