package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptEmailInviteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	invitee := h.user("u2@x.com")

	token, _ := h.invite(owner, orgRef, "u2@x.com", domain.RoleAdmin, nil)
	first, err := h.svc.AcceptEmailInvite(ctx, invitee, token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, first.Role)

	for i := 0; i < 3; i++ {
		_, err = h.svc.AcceptEmailInvite(ctx, invitee, token)
		assertKind(t, err, domain.KindInviteInvalid)
	}

	var count int64
	require.NoError(t, h.db.Model(&domain.Membership{}).
		Where("scope_kind = ? AND scope_id = ? AND user_id = ?", domain.ScopeOrganization, orgID, invitee.UserID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAcceptEmailInviteMatchesEmailCaseInsensitively(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	alice := h.user("Alice@Example.com")
	bob := h.user("bob@example.com")

	token, _ := h.invite(owner, orgRef, " alice@example.com ", domain.RoleMember, nil)
	assert.Equal(t, "alice@example.com", h.notifier.last(t).ToEmail)

	_, err := h.svc.AcceptEmailInvite(ctx, bob, token)
	assertKind(t, err, domain.KindEmailMismatch)
	assert.Nil(t, h.membership(domain.ScopeOrganization, orgID, bob.UserID))

	_, err = h.svc.AcceptEmailInvite(ctx, alice, token)
	require.NoError(t, err)
	assert.NotNil(t, h.membership(domain.ScopeOrganization, orgID, alice.UserID))
}

func TestAcceptEmailInviteRequiresVerifiedEmail(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	invitee := h.user("u2@x.com")
	invitee.EmailVerified = false

	token, _ := h.invite(owner, orgRef, "u2@x.com", domain.RoleMember, nil)
	_, err := h.svc.AcceptEmailInvite(context.Background(), invitee, token)
	assertKind(t, err, domain.KindEmailMismatch)
}

func TestEmailInviteExpiryBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	onTime := h.user("ontime@x.com")
	late := h.user("late@x.com")
	start := h.clock.Now()

	onTimeToken, _ := h.invite(owner, orgRef, "ontime@x.com", domain.RoleMember, intPtr(60))
	lateToken, _ := h.invite(owner, orgRef, "late@x.com", domain.RoleMember, intPtr(60))

	h.clock.Set(start.Add(time.Hour))
	_, err := h.svc.AcceptEmailInvite(ctx, onTime, onTimeToken)
	require.NoError(t, err, "the exact expiry instant is still valid")

	h.clock.Set(start.Add(time.Hour + time.Millisecond))
	_, err = h.svc.AcceptEmailInvite(ctx, late, lateToken)
	assertKind(t, err, domain.KindInviteExpired)
	assert.Nil(t, h.membership(domain.ScopeOrganization, orgID, late.UserID))
}

func TestInviteExpiryIsClamped(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	now := h.clock.Now()

	_, short := h.invite(owner, orgRef, "a@x.com", domain.RoleMember, intPtr(1))
	assert.Equal(t, now.Add(15*time.Minute), *short.ExpiresAt)

	_, long := h.invite(owner, orgRef, "b@x.com", domain.RoleMember, intPtr(90*24*60))
	assert.Equal(t, now.Add(30*24*time.Hour), *long.ExpiresAt)

	_, def := h.invite(owner, orgRef, "c@x.com", domain.RoleMember, nil)
	assert.Equal(t, now.Add(7*24*time.Hour), *def.ExpiresAt)
}

func TestCreateEmailInviteRejections(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	admin := h.user("admin@x.com")
	h.member(admin, domain.ScopeOrganization, orgID, domain.RoleAdmin)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)
	outsider := h.user("outsider@x.com")
	h.invite(owner, orgRef, "pending@x.com", domain.RoleMember, nil)

	cases := []struct {
		name  string
		actor *domain.Actor
		req   domain.CreateInviteRequest
		kind  domain.Kind
	}{
		{"member cannot invite", plain, domain.CreateInviteRequest{Scope: orgRef, Email: "n@x.com", Role: "MEMBER"}, domain.KindNotAuthorized},
		{"outsider cannot invite", outsider, domain.CreateInviteRequest{Scope: orgRef, Email: "n@x.com", Role: "MEMBER"}, domain.KindNotAuthorized},
		{"owner role is not invitable", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "n@x.com", Role: "OWNER"}, domain.KindRoleNotAllowed},
		{"role from another kind", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "n@x.com", Role: "JUDGE"}, domain.KindRoleNotAllowed},
		{"unknown role", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "n@x.com", Role: "WIZARD"}, domain.KindRoleNotAllowed},
		{"malformed email", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "not-an-email", Role: "MEMBER"}, domain.KindInvalidRequest},
		{"display name email", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "N <n@x.com>", Role: "MEMBER"}, domain.KindInvalidRequest},
		{"message too long", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "n@x.com", Role: "MEMBER", Message: strPtr(strings.Repeat("a", maxMessageLength+1))}, domain.KindInvalidRequest},
		{"unknown scope", owner, domain.CreateInviteRequest{Scope: domain.ScopeRef{Kind: "organization", Identifier: "nope"}, Email: "n@x.com", Role: "MEMBER"}, domain.KindScopeNotFound},
		{"already pending", admin, domain.CreateInviteRequest{Scope: orgRef, Email: "PENDING@x.com", Role: "MEMBER"}, domain.KindInviteAlreadyPending},
		{"already a member", owner, domain.CreateInviteRequest{Scope: orgRef, Email: "Member@X.com", Role: "MEMBER"}, domain.KindAlreadyMember},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateEmailInvite(context.Background(), tc.actor, tc.req)
			assertKind(t, err, tc.kind)
		})
	}
}

func TestCreateEmailInviteReplacesLapsedPendingInvite(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)

	_, first := h.invite(owner, orgRef, "u2@x.com", domain.RoleMember, intPtr(60))
	h.clock.Advance(2 * time.Hour)
	_, second := h.invite(owner, orgRef, "u2@x.com", domain.RoleMember, intPtr(60))
	assert.NotEqual(t, first.InviteID, second.InviteID)

	var old domain.Invite
	require.NoError(t, h.db.Where("id = ?", first.InviteID).First(&old).Error)
	assert.Equal(t, domain.InviteStatusRevoked, old.Status)
}

func TestNotifierFailureDoesNotFailInvite(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	invitee := h.user("u2@x.com")
	h.notifier.err = errors.New("smtp unreachable")

	token, resp := h.invite(owner, orgRef, "u2@x.com", domain.RoleMember, nil)
	require.NotEmpty(t, resp.InviteID)

	sent := h.notifier.last(t)
	assert.Equal(t, "Acme", sent.ScopeName)
	assert.Equal(t, domain.RoleMember, sent.Role)

	_, err := h.svc.AcceptEmailInvite(context.Background(), invitee, token)
	require.NoError(t, err)
}

func TestDeclineEmailInvite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	invitee := h.user("u2@x.com")
	stranger := h.user("u3@x.com")

	token, _ := h.invite(owner, orgRef, "u2@x.com", domain.RoleMember, nil)

	_, err := h.svc.DeclineEmailInvite(ctx, stranger, token)
	assertKind(t, err, domain.KindEmailMismatch)

	resp, err := h.svc.DeclineEmailInvite(ctx, invitee, token)
	require.NoError(t, err)
	assert.Equal(t, string(domain.InviteStatusDeclined), resp.Status)

	_, err = h.svc.AcceptEmailInvite(ctx, invitee, token)
	assertKind(t, err, domain.KindInviteInvalid)
	assert.Nil(t, h.membership(domain.ScopeOrganization, orgID, invitee.UserID))
	assert.Contains(t, h.events.types(), event.InviteDeclined)
}

func TestRevokeAndListPendingInvites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)
	invitee := h.user("keep@x.com")

	_, keep := h.invite(owner, orgRef, "keep@x.com", domain.RoleMember, intPtr(24*60))
	revokedToken, revoke := h.invite(owner, orgRef, "revoke@x.com", domain.RoleMember, intPtr(24*60))
	_, _ = h.invite(owner, orgRef, "lapse@x.com", domain.RoleMember, intPtr(30))

	_, err := h.svc.RevokeEmailInvite(ctx, plain, orgRef, revoke.InviteID)
	assertKind(t, err, domain.KindNotAuthorized)

	resp, err := h.svc.RevokeEmailInvite(ctx, owner, orgRef, revoke.InviteID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.InviteStatusRevoked), resp.Status)

	_, err = h.svc.RevokeEmailInvite(ctx, owner, orgRef, revoke.InviteID)
	assertKind(t, err, domain.KindInviteInvalid)
	_, err = h.svc.RevokeEmailInvite(ctx, owner, eventRef, keep.InviteID)
	assertKind(t, err, domain.KindNotFound)
	_, err = h.svc.RevokeEmailInvite(ctx, owner, orgRef, "garbage")
	assertKind(t, err, domain.KindNotFound)

	revokedUser := h.user("revoke@x.com")
	_, err = h.svc.AcceptEmailInvite(ctx, revokedUser, revokedToken)
	assertKind(t, err, domain.KindInviteInvalid)

	h.clock.Advance(time.Hour)
	list, err := h.svc.ListPendingInvites(ctx, owner, orgRef, pageOf(0))
	require.NoError(t, err)
	require.Len(t, list.Invites, 1)
	assert.Equal(t, keep.InviteID, list.Invites[0].ID)
	assert.Equal(t, "keep@x.com", list.Invites[0].Email)
	assert.False(t, list.PageInfo.HasMore)

	_, err = h.svc.ListPendingInvites(ctx, invitee, orgRef, pageOf(0))
	assertKind(t, err, domain.KindNotAuthorized)
}

func TestEventInvitesHonourInheritanceAndHierarchy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	orgOwner := h.user("owner@x.com")
	h.member(orgOwner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	organizer := h.user("organizer@x.com")
	h.member(organizer, domain.ScopeEvent, eventID, domain.RoleOrganizer)
	h.user("a@x.com")

	_, err := h.svc.CreateEmailInvite(ctx, organizer, domain.CreateInviteRequest{Scope: eventRef, Email: "a@x.com", Role: "ADMIN"})
	assertKind(t, err, domain.KindGuardrailHierarchy)

	_, err = h.svc.CreateEmailInvite(ctx, organizer, domain.CreateInviteRequest{Scope: eventRef, Email: "p@x.com", Role: "PARTICIPANT"})
	require.NoError(t, err)

	// Org owners act as event admins without a direct membership.
	_, err = h.svc.CreateEmailInvite(ctx, orgOwner, domain.CreateInviteRequest{Scope: eventRef, Email: "a@x.com", Role: "ADMIN"})
	require.NoError(t, err)

	_, err = h.svc.CreateEmailInvite(ctx, organizer, domain.CreateInviteRequest{Scope: staffRef, Email: "j@x.com", Role: "JUDGE"})
	assertKind(t, err, domain.KindNotAuthorized)
	_, err = h.svc.CreateEmailInvite(ctx, orgOwner, domain.CreateInviteRequest{Scope: staffRef, Email: "j@x.com", Role: "JUDGE"})
	require.NoError(t, err, "org owners reach the staff roster through the event")
}

func TestTeamInvitesRequireLeader(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	orgOwner := h.user("owner@x.com")
	h.member(orgOwner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	eventAdmin := h.user("eventadmin@x.com")
	h.member(eventAdmin, domain.ScopeEvent, eventID, domain.RoleAdmin)
	leader := h.user("leader@x.com")
	h.member(leader, domain.ScopeTeam, teamID, domain.RoleLeader)
	teammate := h.user("mate@x.com")

	_, err := h.svc.CreateEmailInvite(ctx, eventAdmin, domain.CreateInviteRequest{Scope: teamRef, Email: "mate@x.com", Role: "MEMBER"})
	assertKind(t, err, domain.KindNotAuthorized)
	_, err = h.svc.CreateEmailInvite(ctx, orgOwner, domain.CreateInviteRequest{Scope: teamRef, Email: "mate@x.com", Role: "MEMBER"})
	assertKind(t, err, domain.KindNotAuthorized)
	_, err = h.svc.CreateEmailInvite(ctx, leader, domain.CreateInviteRequest{Scope: teamRef, Email: "mate@x.com", Role: "LEADER"})
	assertKind(t, err, domain.KindRoleNotAllowed)

	token, _ := h.invite(leader, teamRef, "mate@x.com", domain.RoleMember, nil)
	resp, err := h.svc.AcceptEmailInvite(ctx, teammate, token)
	require.NoError(t, err)
	assert.Equal(t, domain.ScopeTeam, resp.ScopeKind)
	assert.Equal(t, teamID.String(), resp.ScopeID)
}
