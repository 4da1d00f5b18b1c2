package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
)

type changeMemberRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) ListMembers(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.ListMembers(c.Request.Context(), actor(c), scopeRef(c), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ChangeMemberRole(c *gin.Context) {
	var req changeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.ChangeMemberRole(c.Request.Context(), actor(c), membershipdomain.ChangeMemberRoleRequest{
		Scope:        scopeRef(c),
		MembershipID: c.Param("id"),
		Role:         req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) RemoveMember(c *gin.Context) {
	resp, err := s.membershipSvc.RemoveMember(c.Request.Context(), actor(c), scopeRef(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) LeaveScope(c *gin.Context) {
	resp, err := s.membershipSvc.LeaveScope(c.Request.Context(), actor(c), scopeRef(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
