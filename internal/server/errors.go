package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
)

const (
	statusSuccess = "SUCCESS"
	statusError   = "ERROR"
)

type errorPayload struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

// envelope is the body of every API response.
type envelope struct {
	Status string        `json:"status"`
	Error  *errorPayload `json:"error"`
	Data   any           `json:"data"`
}

var errInvalidBody = domain.InvalidRequest("invalid request body")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, envelope{Status: statusError, Error: &payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Status: statusSuccess, Data: data})
}

// mapError renders typed failures verbatim. Anything else is reported as an
// internal error without its message.
func mapError(err error) (int, errorPayload) {
	typed, ok := domain.AsError(err)
	if !ok || typed.Kind == domain.KindInternal {
		return http.StatusInternalServerError, errorPayload{
			Kind:    domain.KindInternal,
			Message: domain.ErrInternal.Message,
		}
	}
	return statusForKind(typed.Kind), errorPayload{Kind: typed.Kind, Message: typed.Message}
}

func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindAuthRequired:
		return http.StatusUnauthorized
	case domain.KindNotAuthorized,
		domain.KindEmailMismatch,
		domain.KindGuardrailSelfModify,
		domain.KindGuardrailHierarchy,
		domain.KindJoinRequestsDisabled:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindScopeNotFound,
		domain.KindNotFound,
		domain.KindInviteInvalid,
		domain.KindLinkInvalid:
		return http.StatusNotFound
	case domain.KindInviteExpired,
		domain.KindLinkExpired,
		domain.KindLinkMaxUsesReached:
		return http.StatusGone
	case domain.KindAlreadyMember,
		domain.KindInviteAlreadyPending,
		domain.KindRequestAlreadyExists,
		domain.KindRequestAlreadyReviewed,
		domain.KindGuardrailLastAdmin:
		return http.StatusConflict
	case domain.KindRoleNotAllowed:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func classifyErrorForLog(err error) string {
	if err == nil {
		return ""
	}
	return string(domain.KindOf(err))
}
