package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
)

type createLinkRequest struct {
	Role          string  `json:"role"`
	MaxUses       *int    `json:"max_uses"`
	ExpiryMinutes *int    `json:"expiry_minutes"`
	Note          *string `json:"note"`
}

func (s *Server) CreateInviteLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.CreateInviteLink(c.Request.Context(), actor(c), membershipdomain.CreateLinkRequest{
		Scope:         scopeRef(c),
		Role:          req.Role,
		MaxUses:       req.MaxUses,
		ExpiryMinutes: req.ExpiryMinutes,
		Note:          req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) AcceptInviteLink(c *gin.Context) {
	resp, err := s.membershipSvc.AcceptInviteLink(c.Request.Context(), actor(c), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) RevokeInviteLink(c *gin.Context) {
	resp, err := s.membershipSvc.RevokeInviteLink(c.Request.Context(), actor(c), scopeRef(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ListInviteLinks(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.ListInviteLinks(c.Request.Context(), actor(c), scopeRef(c), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
