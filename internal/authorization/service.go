package authorization

import (
	"context"
	"errors"
)

const (
	ActionInviteCreate      = "invite.create"
	ActionInviteList        = "invite.list"
	ActionInviteRevoke      = "invite.revoke"
	ActionLinkCreate        = "link.create"
	ActionLinkList          = "link.list"
	ActionLinkRevoke        = "link.revoke"
	ActionMemberList        = "member.list"
	ActionMemberManage      = "member.manage"
	ActionJoinRequestList   = "join_request.list"
	ActionJoinRequestReview = "join_request.review"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidAction = errors.New("invalid_action")
)

// Service answers whether a role in a scope kind may perform an action.
type Service interface {
	Authorize(ctx context.Context, kind string, role string, action string) error
}
