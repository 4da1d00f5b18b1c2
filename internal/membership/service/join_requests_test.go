package service

import (
	"context"
	"testing"

	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRequestUniquenessAndReRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	requester := h.user("req@x.com")

	first, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef, Message: strPtr("let me in")})
	require.NoError(t, err)

	_, err = h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef})
	assertKind(t, err, domain.KindRequestAlreadyExists)

	_, err = h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: first.RequestID, Decision: "decline"})
	require.NoError(t, err)
	assert.Nil(t, h.membership(domain.ScopeOrganization, orgID, requester.UserID))

	second, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef})
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestApproveJoinRequestGrantsDefaultRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	requester := h.user("req@x.com")

	created, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef})
	require.NoError(t, err)

	resp, err := h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: created.RequestID, Decision: "APPROVE"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.JoinRequestAccepted), resp.Status)

	m := h.membership(domain.ScopeOrganization, orgID, requester.UserID)
	require.NotNil(t, m)
	assert.Equal(t, domain.RoleMember, m.Role)

	var stored domain.JoinRequest
	require.NoError(t, h.db.Where("id = ?", created.RequestID).First(&stored).Error)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, owner.UserID, *stored.ReviewedBy)

	_, err = h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: created.RequestID, Decision: "DECLINE"})
	assertKind(t, err, domain.KindRequestAlreadyReviewed)

	_, err = h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef})
	assertKind(t, err, domain.KindAlreadyMember)

	assert.Equal(t, []event.ChangeType{event.JoinRequestCreated, event.JoinRequestReviewed, event.MemberAdded}, h.events.types())
}

func TestReviewJoinRequestRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)
	requester := h.user("req@x.com")
	created, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef})
	require.NoError(t, err)

	_, err = h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: created.RequestID, Decision: "maybe"})
	assertKind(t, err, domain.KindInvalidRequest)
	_, err = h.svc.ReviewJoinRequest(ctx, plain, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: created.RequestID, Decision: "APPROVE"})
	assertKind(t, err, domain.KindNotAuthorized)
	_, err = h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: "404", Decision: "APPROVE"})
	assertKind(t, err, domain.KindNotFound)
	_, err = h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: teamRef, RequestID: created.RequestID, Decision: "APPROVE"})
	assertKind(t, err, domain.KindNotAuthorized)
}

func TestJoinRequestsDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	requester := h.user("req@x.com")

	_, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: eventRef})
	assertKind(t, err, domain.KindJoinRequestsDisabled)
	_, err = h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: staffRef})
	assertKind(t, err, domain.KindJoinRequestsDisabled)

	_, err = h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: teamRef})
	require.NoError(t, err)
}

func TestJoinRequestSettingTakesEffectImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	requester := h.user("req@x.com")

	_, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: eventRef})
	assertKind(t, err, domain.KindJoinRequestsDisabled)

	require.NoError(t, h.db.Exec("UPDATE events SET allow_join_requests = ? WHERE id = ?", true, eventID).Error)
	_, err = h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: eventRef})
	require.NoError(t, err)

	require.NoError(t, h.db.Exec("UPDATE teams SET allow_join_requests = ? WHERE id = ?", false, teamID).Error)
	_, err = h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: teamRef})
	assertKind(t, err, domain.KindJoinRequestsDisabled)
}

func TestInheritedMembersCannotRequestToJoin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.db.Exec("UPDATE events SET allow_join_requests = ? WHERE id = ?", true, eventID).Error)
	orgAdmin := h.user("admin@x.com")
	h.member(orgAdmin, domain.ScopeOrganization, orgID, domain.RoleAdmin)

	_, err := h.svc.CreateJoinRequest(context.Background(), orgAdmin, domain.CreateJoinRequestRequest{Scope: eventRef})
	assertKind(t, err, domain.KindAlreadyMember)
}

func TestCancelJoinRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	requester := h.user("req@x.com")

	_, err := h.svc.CancelJoinRequest(ctx, requester, orgRef)
	assertKind(t, err, domain.KindNotFound)

	created, err := h.svc.CreateJoinRequest(ctx, requester, domain.CreateJoinRequestRequest{Scope: orgRef})
	require.NoError(t, err)

	resp, err := h.svc.CancelJoinRequest(ctx, requester, orgRef)
	require.NoError(t, err)
	assert.Equal(t, created.RequestID, resp.ID)
	assert.Equal(t, string(domain.JoinRequestDeclined), resp.Status)

	_, err = h.svc.CancelJoinRequest(ctx, requester, orgRef)
	assertKind(t, err, domain.KindNotFound)
}

func TestListJoinRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.user("owner@x.com")
	h.member(owner, domain.ScopeOrganization, orgID, domain.RoleOwner)
	plain := h.user("member@x.com")
	h.member(plain, domain.ScopeOrganization, orgID, domain.RoleMember)
	a := h.user("a@x.com")
	b := h.user("b@x.com")

	_, err := h.svc.CreateJoinRequest(ctx, a, domain.CreateJoinRequestRequest{Scope: orgRef, Message: strPtr("hi")})
	require.NoError(t, err)
	declined, err := h.svc.CreateJoinRequest(ctx, b, domain.CreateJoinRequestRequest{Scope: orgRef})
	require.NoError(t, err)
	_, err = h.svc.ReviewJoinRequest(ctx, owner, domain.ReviewJoinRequestRequest{Scope: orgRef, RequestID: declined.RequestID, Decision: "DECLINE"})
	require.NoError(t, err)

	pending, err := h.svc.ListJoinRequests(ctx, owner, domain.ListJoinRequestsRequest{Scope: orgRef})
	require.NoError(t, err)
	require.Len(t, pending.Requests, 1)
	assert.Equal(t, a.UserID.String(), pending.Requests[0].UserID)
	assert.Equal(t, "hi", *pending.Requests[0].Message)

	reviewed, err := h.svc.ListJoinRequests(ctx, owner, domain.ListJoinRequestsRequest{Scope: orgRef, Status: "declined"})
	require.NoError(t, err)
	require.Len(t, reviewed.Requests, 1)
	require.NotNil(t, reviewed.Requests[0].ReviewedBy)
	assert.Equal(t, owner.UserID.String(), *reviewed.Requests[0].ReviewedBy)

	_, err = h.svc.ListJoinRequests(ctx, owner, domain.ListJoinRequestsRequest{Scope: orgRef, Status: "lost"})
	assertKind(t, err, domain.KindInvalidRequest)
	_, err = h.svc.ListJoinRequests(ctx, plain, domain.ListJoinRequestsRequest{Scope: orgRef})
	assertKind(t, err, domain.KindNotAuthorized)
}
