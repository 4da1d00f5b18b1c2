package service

import (
	"context"
	"testing"
	"time"

	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitePageDataForEmailInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	invitee := h.user("u2@x.com")
	other := h.user("u3@x.com")
	anonymous := &domain.Actor{IP: "198.51.100.1"}

	token, _ := h.invite(owner, orgRef, "u2@x.com", domain.RoleAdmin, intPtr(60))

	data, err := h.svc.GetInvitePageData(ctx, anonymous, token)
	require.NoError(t, err)
	assert.Equal(t, domain.PageStateValid, data.State)
	assert.Equal(t, domain.TokenInvite, data.Kind)
	assert.Equal(t, domain.RoleAdmin, data.Role)
	require.NotNil(t, data.Scope)
	assert.Equal(t, "Acme", data.Scope.Name)
	assert.Equal(t, domain.ScopeOrganization, data.Scope.Kind)
	assert.Nil(t, data.EmailMatches)
	assert.False(t, data.IsAlreadyMember)

	data, err = h.svc.GetInvitePageData(ctx, other, token)
	require.NoError(t, err)
	require.NotNil(t, data.EmailMatches)
	assert.False(t, *data.EmailMatches)

	data, err = h.svc.GetInvitePageData(ctx, invitee, token)
	require.NoError(t, err)
	require.NotNil(t, data.EmailMatches)
	assert.True(t, *data.EmailMatches)

	_, err = h.svc.AcceptEmailInvite(ctx, invitee, token)
	require.NoError(t, err)
	data, err = h.svc.GetInvitePageData(ctx, invitee, token)
	require.NoError(t, err)
	assert.Equal(t, domain.PageStateAccepted, data.State)
	assert.True(t, data.IsAlreadyMember)
}

func TestInvitePageDataStates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	decliner := h.user("decline@x.com")

	declined, _ := h.invite(owner, orgRef, "decline@x.com", domain.RoleMember, nil)
	_, err := h.svc.DeclineEmailInvite(ctx, decliner, declined)
	require.NoError(t, err)

	revoked, revokedResp := h.invite(owner, orgRef, "revoke@x.com", domain.RoleMember, nil)
	_, err = h.svc.RevokeEmailInvite(ctx, owner, orgRef, revokedResp.InviteID)
	require.NoError(t, err)

	expiring, _ := h.invite(owner, orgRef, "late@x.com", domain.RoleMember, intPtr(15))

	full, _ := h.link(owner, orgRef, domain.RoleMember, intPtr(1), nil)
	_, err = h.svc.AcceptInviteLink(ctx, h.user("first@x.com"), full)
	require.NoError(t, err)

	revokedLink, revokedLinkResp := h.link(owner, orgRef, domain.RoleMember, nil, nil)
	_, err = h.svc.RevokeInviteLink(ctx, owner, orgRef, revokedLinkResp.LinkID)
	require.NoError(t, err)

	openLink, _ := h.link(owner, orgRef, domain.RoleMember, nil, intPtr(24*60))

	h.clock.Advance(time.Hour)

	cases := []struct {
		name  string
		token string
		kind  domain.TokenKind
		state domain.PageState
	}{
		{"declined invite", declined, domain.TokenInvite, domain.PageStateDeclined},
		{"revoked invite", revoked, domain.TokenInvite, domain.PageStateRevoked},
		{"expired invite", expiring, domain.TokenInvite, domain.PageStateExpired},
		{"exhausted link", full, domain.TokenLink, domain.PageStateMaxUsesReached},
		{"revoked link", revokedLink, domain.TokenLink, domain.PageStateRevoked},
		{"open link", openLink, domain.TokenLink, domain.PageStateValid},
		{"unknown token", "nothing-here", "", domain.PageStateInvalid},
		{"blank token", "   ", "", domain.PageStateInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := h.svc.GetInvitePageData(ctx, nil, tc.token)
			require.NoError(t, err)
			assert.Equal(t, tc.state, data.State)
			assert.Equal(t, tc.kind, data.Kind)
		})
	}
}

func TestInvitePageDataShowsParentForTeam(t *testing.T) {
	h := newHarness(t)
	leader := h.user("leader@x.com")
	h.member(leader, domain.ScopeTeam, teamID, domain.RoleLeader)

	token, _ := h.link(leader, teamRef, domain.RoleMember, nil, nil)
	data, err := h.svc.GetInvitePageData(context.Background(), leader, token)
	require.NoError(t, err)
	require.NotNil(t, data.Scope)
	assert.Equal(t, "Blue", data.Scope.Name)
	assert.Equal(t, "Hack Week", data.Scope.ParentName)
	assert.True(t, data.IsAlreadyMember)
	assert.Nil(t, data.EmailMatches)
}
