package server

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/ramonsarchive/ascend/internal/auth/domain"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

const contextIdentityKey = "identity"

// SessionContext resolves an optional session. Stale sessions are cleared and
// the request continues anonymously; the service decides what needs auth.
func (s *Server) SessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			c.Next()
			return
		}

		identity, err := s.authsvc.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(contextIdentityKey, identity)
			c.Request = c.Request.WithContext(ctxlogger.ContextWithActorID(c.Request.Context(), identity.UserID.String()))
		case isStaleSession(err):
			s.sessions.Clear(c)
		default:
			s.log.Error("session lookup failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func isStaleSession(err error) bool {
	return errors.Is(err, authdomain.ErrInvalidSession) ||
		errors.Is(err, authdomain.ErrSessionExpired) ||
		errors.Is(err, authdomain.ErrSessionRevoked)
}

// actor builds the membership caller. Anonymous callers carry only their IP.
func actor(c *gin.Context) *membershipdomain.Actor {
	a := &membershipdomain.Actor{IP: c.ClientIP()}
	value, ok := c.Get(contextIdentityKey)
	if !ok {
		return a
	}
	identity, ok := value.(*authdomain.Identity)
	if !ok || identity == nil {
		return a
	}
	a.UserID = identity.UserID
	a.Email = identity.Email
	a.EmailVerified = identity.EmailVerified
	return a
}

func scopeRef(c *gin.Context) membershipdomain.ScopeRef {
	return membershipdomain.ScopeRef{
		Kind:       strings.TrimSpace(c.Param("kind")),
		Identifier: strings.TrimSpace(c.Param("scope")),
	}
}
