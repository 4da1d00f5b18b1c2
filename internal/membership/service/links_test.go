package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The test database pins one connection, so these accepts serialize. The
// atomic use counter itself is checked by TestConsumeInviteLinkStopsAtMaxUses
// in the repository package.
func TestInviteLinkCapacityUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	token, created := h.link(owner, orgRef, domain.RoleMember, intPtr(3), nil)

	users := make([]*domain.Actor, 10)
	for i := range users {
		users[i] = h.user(fmt.Sprintf("user%d@x.com", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		maxedAt int
		other   []error
	)
	for _, u := range users {
		wg.Add(1)
		go func(actor *domain.Actor) {
			defer wg.Done()
			_, err := h.svc.AcceptInviteLink(context.Background(), actor, token)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case domain.KindOf(err) == domain.KindLinkMaxUsesReached:
				maxedAt++
			default:
				other = append(other, err)
			}
		}(u)
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, maxedAt)

	var stored domain.InviteLink
	require.NoError(t, h.db.Where("id = ?", created.LinkID).First(&stored).Error)
	assert.Equal(t, 3, stored.Uses)
	assert.Len(t, h.memberships(domain.ScopeOrganization, orgID), 4)
}

func TestAcceptInviteLinkErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	joiner := h.user("joiner@x.com")

	_, err := h.svc.AcceptInviteLink(ctx, joiner, "")
	assertKind(t, err, domain.KindLinkInvalid)
	_, err = h.svc.AcceptInviteLink(ctx, joiner, "unknown-token")
	assertKind(t, err, domain.KindLinkInvalid)

	revokedToken, revoked := h.link(owner, orgRef, domain.RoleMember, nil, nil)
	_, err = h.svc.RevokeInviteLink(ctx, owner, orgRef, revoked.LinkID)
	require.NoError(t, err)
	_, err = h.svc.AcceptInviteLink(ctx, joiner, revokedToken)
	assertKind(t, err, domain.KindLinkInvalid)

	_, err = h.svc.RevokeInviteLink(ctx, owner, orgRef, revoked.LinkID)
	assertKind(t, err, domain.KindLinkInvalid)
	_, err = h.svc.RevokeInviteLink(ctx, owner, eventRef, revoked.LinkID)
	assertKind(t, err, domain.KindNotFound)

	assert.Nil(t, h.membership(domain.ScopeOrganization, orgID, joiner.UserID))
}

func TestInviteLinkExpiryBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	first := h.user("first@x.com")
	second := h.user("second@x.com")
	start := h.clock.Now()

	token, _ := h.link(owner, orgRef, domain.RoleMember, nil, intPtr(60))

	h.clock.Set(start.Add(time.Hour))
	_, err := h.svc.AcceptInviteLink(ctx, first, token)
	require.NoError(t, err)

	h.clock.Set(start.Add(time.Hour + time.Millisecond))
	_, err = h.svc.AcceptInviteLink(ctx, second, token)
	assertKind(t, err, domain.KindLinkExpired)
	assert.Nil(t, h.membership(domain.ScopeOrganization, orgID, second.UserID))
}

func TestAcceptInviteLinkNeverDowngrades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	admin := h.user("admin@x.com")
	h.member(admin, domain.ScopeOrganization, orgID, domain.RoleAdmin)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)

	memberToken, memberLink := h.link(owner, orgRef, domain.RoleMember, intPtr(5), nil)
	resp, err := h.svc.AcceptInviteLink(ctx, admin, memberToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)
	assert.Equal(t, domain.RoleAdmin, h.membership(domain.ScopeOrganization, orgID, admin.UserID).Role)

	var stored domain.InviteLink
	require.NoError(t, h.db.Where("id = ?", memberLink.LinkID).First(&stored).Error)
	assert.Equal(t, 1, stored.Uses)

	adminToken, _ := h.link(owner, orgRef, domain.RoleAdmin, nil, nil)
	resp, err = h.svc.AcceptInviteLink(ctx, plain, adminToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.Role)
	assert.Len(t, h.memberships(domain.ScopeOrganization, orgID), 3)

	types := h.events.types()
	assert.Contains(t, types, event.MemberRoleChanged)
	assert.NotContains(t, types, event.MemberAdded)
}

func TestCreateInviteLinkValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)

	cases := []struct {
		name  string
		actor *domain.Actor
		req   domain.CreateLinkRequest
		kind  domain.Kind
	}{
		{"zero uses", owner, domain.CreateLinkRequest{Scope: orgRef, Role: "MEMBER", MaxUses: intPtr(0)}, domain.KindInvalidRequest},
		{"over the cap", owner, domain.CreateLinkRequest{Scope: orgRef, Role: "MEMBER", MaxUses: intPtr(1001)}, domain.KindInvalidRequest},
		{"note too long", owner, domain.CreateLinkRequest{Scope: orgRef, Role: "MEMBER", Note: strPtr(strings.Repeat("n", maxNoteLength+1))}, domain.KindInvalidRequest},
		{"top tier role", owner, domain.CreateLinkRequest{Scope: orgRef, Role: "OWNER"}, domain.KindRoleNotAllowed},
		{"member cannot create", plain, domain.CreateLinkRequest{Scope: orgRef, Role: "MEMBER"}, domain.KindNotAuthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.CreateInviteLink(ctx, tc.actor, tc.req)
			assertKind(t, err, tc.kind)
		})
	}

	resp, err := h.svc.CreateInviteLink(ctx, owner, domain.CreateLinkRequest{
		Scope: orgRef, Role: "member", MaxUses: intPtr(1000), Note: strPtr("  launch party  "),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.ShareURL, "https://app.test/join/"))

	var stored domain.InviteLink
	require.NoError(t, h.db.Where("id = ?", resp.LinkID).First(&stored).Error)
	require.NotNil(t, stored.Note)
	assert.Equal(t, "launch party", *stored.Note)
	assert.Equal(t, domain.RoleMember, stored.Role)
}

func TestListInviteLinks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)

	_, active := h.link(owner, orgRef, domain.RoleMember, intPtr(2), intPtr(24*60))
	_, lapsing := h.link(owner, orgRef, domain.RoleMember, nil, intPtr(15))
	_, revoked := h.link(owner, orgRef, domain.RoleMember, nil, nil)
	_, err := h.svc.RevokeInviteLink(ctx, owner, orgRef, revoked.LinkID)
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	list, err := h.svc.ListInviteLinks(ctx, owner, orgRef, pageOf(0))
	require.NoError(t, err)
	require.Len(t, list.Links, 2)

	byID := map[string]domain.LinkView{}
	for _, l := range list.Links {
		byID[l.ID] = l
	}
	assert.False(t, byID[active.LinkID].Expired)
	assert.Equal(t, 2, *byID[active.LinkID].MaxUses)
	assert.True(t, byID[lapsing.LinkID].Expired)
	assert.NotContains(t, byID, revoked.LinkID)

	_, err = h.svc.ListInviteLinks(ctx, plain, orgRef, pageOf(0))
	assertKind(t, err, domain.KindNotAuthorized)
}
