package domain

import "errors"

// Kind classifies a failure for callers; the HTTP layer maps kinds to status codes.
type Kind string

const (
	KindAuthRequired           Kind = "AUTH_REQUIRED"
	KindNotAuthorized          Kind = "NOT_AUTHORIZED"
	KindRateLimited            Kind = "RATE_LIMITED"
	KindScopeNotFound          Kind = "SCOPE_NOT_FOUND"
	KindInviteInvalid          Kind = "INVITE_INVALID"
	KindInviteExpired          Kind = "INVITE_EXPIRED"
	KindLinkInvalid            Kind = "LINK_INVALID"
	KindLinkExpired            Kind = "LINK_EXPIRED"
	KindLinkMaxUsesReached     Kind = "LINK_MAX_USES_REACHED"
	KindEmailMismatch          Kind = "EMAIL_MISMATCH"
	KindAlreadyMember          Kind = "ALREADY_MEMBER"
	KindInviteAlreadyPending   Kind = "INVITE_ALREADY_PENDING"
	KindRequestAlreadyExists   Kind = "REQUEST_ALREADY_EXISTS"
	KindRequestAlreadyReviewed Kind = "REQUEST_ALREADY_REVIEWED"
	KindRoleNotAllowed         Kind = "ROLE_NOT_ALLOWED"
	KindGuardrailLastAdmin     Kind = "GUARDRAIL_LAST_ADMIN"
	KindGuardrailSelfModify    Kind = "GUARDRAIL_SELF_MODIFY"
	KindGuardrailHierarchy     Kind = "GUARDRAIL_HIERARCHY"
	KindNotFound               Kind = "NOT_FOUND"
	KindJoinRequestsDisabled   Kind = "JOIN_REQUESTS_DISABLED"
	KindInvalidRequest         Kind = "INVALID_REQUEST"
	KindInternal               Kind = "INTERNAL_ERROR"
)

// Error is a user-actionable failure with a stable kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind so wrapped copies compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrAuthRequired           = newError(KindAuthRequired, "authentication required")
	ErrNotAuthorized          = newError(KindNotAuthorized, "not authorized for this scope")
	ErrRateLimited            = newError(KindRateLimited, "too many requests")
	ErrScopeNotFound          = newError(KindScopeNotFound, "scope not found")
	ErrInviteInvalid          = newError(KindInviteInvalid, "invite is invalid")
	ErrInviteExpired          = newError(KindInviteExpired, "invite has expired")
	ErrLinkInvalid            = newError(KindLinkInvalid, "invite link is invalid")
	ErrLinkExpired            = newError(KindLinkExpired, "invite link has expired")
	ErrLinkMaxUsesReached     = newError(KindLinkMaxUsesReached, "invite link has reached its maximum uses")
	ErrEmailMismatch          = newError(KindEmailMismatch, "invite was sent to a different email")
	ErrAlreadyMember          = newError(KindAlreadyMember, "user is already a member")
	ErrInviteAlreadyPending   = newError(KindInviteAlreadyPending, "an invite is already pending for this email")
	ErrRequestAlreadyExists   = newError(KindRequestAlreadyExists, "a join request is already pending")
	ErrRequestAlreadyReviewed = newError(KindRequestAlreadyReviewed, "join request was already reviewed")
	ErrRoleNotAllowed         = newError(KindRoleNotAllowed, "role is not allowed for this scope")
	ErrGuardrailLastAdmin     = newError(KindGuardrailLastAdmin, "scope must keep at least one top-tier member")
	ErrGuardrailSelfModify    = newError(KindGuardrailSelfModify, "cannot change your own membership")
	ErrGuardrailHierarchy     = newError(KindGuardrailHierarchy, "insufficient rank for this change")
	ErrNotFound               = newError(KindNotFound, "not found")
	ErrJoinRequestsDisabled   = newError(KindJoinRequestsDisabled, "join requests are disabled for this scope")
	ErrInvalidRequest         = newError(KindInvalidRequest, "invalid request")
	ErrInternal               = newError(KindInternal, "internal error")
)

// InvalidRequest builds an INVALID_REQUEST error with a specific message.
func InvalidRequest(message string) *Error {
	return newError(KindInvalidRequest, message)
}

// AsError extracts the typed error, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}
