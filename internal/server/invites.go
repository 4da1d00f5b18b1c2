package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
)

type createInviteRequest struct {
	Email         string  `json:"email"`
	Role          string  `json:"role"`
	Message       *string `json:"message"`
	ExpiryMinutes *int    `json:"expiry_minutes"`
}

func (s *Server) CreateEmailInvite(c *gin.Context) {
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.CreateEmailInvite(c.Request.Context(), actor(c), membershipdomain.CreateInviteRequest{
		Scope:         scopeRef(c),
		Email:         req.Email,
		Role:          req.Role,
		Message:       req.Message,
		ExpiryMinutes: req.ExpiryMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) AcceptEmailInvite(c *gin.Context) {
	resp, err := s.membershipSvc.AcceptEmailInvite(c.Request.Context(), actor(c), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) DeclineEmailInvite(c *gin.Context) {
	resp, err := s.membershipSvc.DeclineEmailInvite(c.Request.Context(), actor(c), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) RevokeEmailInvite(c *gin.Context) {
	resp, err := s.membershipSvc.RevokeEmailInvite(c.Request.Context(), actor(c), scopeRef(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ListPendingInvites(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.ListPendingInvites(c.Request.Context(), actor(c), scopeRef(c), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) GetInvitePageData(c *gin.Context) {
	resp, err := s.membershipSvc.GetInvitePageData(c.Request.Context(), actor(c), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
