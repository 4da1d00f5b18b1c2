package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScopeKind(t *testing.T) {
	cases := map[string]ScopeKind{
		"organization": ScopeOrganization,
		"ORG":          ScopeOrganization,
		"events":       ScopeEvent,
		"event-staff":  ScopeEventStaff,
		"staff":        ScopeEventStaff,
		" team ":       ScopeTeam,
	}
	for raw, want := range cases {
		got, err := ParseScopeKind(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseScopeKind("sponsor")
	assert.ErrorIs(t, err, ErrScopeNotFound)
}

func TestParseRoleIsClosedPerKind(t *testing.T) {
	org, err := PolicyFor(ScopeOrganization)
	require.NoError(t, err)

	role, err := org.ParseRole(" admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = org.ParseRole("JUDGE")
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = org.ParseInvitableRole("OWNER")
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	team, err := PolicyFor(ScopeTeam)
	require.NoError(t, err)
	_, err = team.ParseInvitableRole("LEADER")
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestPolicyTiers(t *testing.T) {
	event, err := PolicyFor(ScopeEvent)
	require.NoError(t, err)

	assert.True(t, event.IsTopTier(RoleAdmin))
	assert.True(t, event.IsSecondTier(RoleOrganizer))
	assert.True(t, event.IsAdmin(RoleOrganizer))
	assert.False(t, event.IsAdmin(RoleParticipant))
	assert.True(t, event.Outranks(RoleAdmin, RoleParticipant))
	assert.False(t, event.Outranks(RoleParticipant, RoleOrganizer))

	role, ok := event.InheritedRole(ScopeOrganization, RoleOwner)
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = event.InheritedRole(ScopeOrganization, RoleMember)
	assert.False(t, ok)

	staff, err := PolicyFor(ScopeEventStaff)
	require.NoError(t, err)
	assert.False(t, staff.IsSecondTier(""))
	assert.False(t, staff.JoinRequests)
	assert.False(t, staff.RequiresTopTier)
}

func TestExpiredIsStrict(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	at := now

	assert.False(t, Expired(nil, now))
	assert.False(t, Expired(&at, now))
	assert.True(t, Expired(&at, now.Add(time.Millisecond)))
}

func TestErrorKinds(t *testing.T) {
	wrapped := InvalidRequest("email is required")
	assert.ErrorIs(t, wrapped, ErrInvalidRequest)
	assert.Equal(t, KindInvalidRequest, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
}
