package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/db/pagination"
)

type createJoinRequestRequest struct {
	Message *string `json:"message"`
}

type reviewJoinRequestRequest struct {
	Decision string `json:"decision"`
}

type listJoinRequestsQuery struct {
	pagination.Pagination
	Status string `form:"status"`
}

func (s *Server) CreateJoinRequest(c *gin.Context) {
	var req createJoinRequestRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.membershipSvc.CreateJoinRequest(c.Request.Context(), actor(c), membershipdomain.CreateJoinRequestRequest{
		Scope:   scopeRef(c),
		Message: req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) ReviewJoinRequest(c *gin.Context) {
	var req reviewJoinRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.ReviewJoinRequest(c.Request.Context(), actor(c), membershipdomain.ReviewJoinRequestRequest{
		Scope:     scopeRef(c),
		RequestID: c.Param("id"),
		Decision:  req.Decision,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) CancelJoinRequest(c *gin.Context) {
	resp, err := s.membershipSvc.CancelJoinRequest(c.Request.Context(), actor(c), scopeRef(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ListJoinRequests(c *gin.Context) {
	var query listJoinRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, errInvalidBody)
		return
	}

	resp, err := s.membershipSvc.ListJoinRequests(c.Request.Context(), actor(c), membershipdomain.ListJoinRequestsRequest{
		Scope:      scopeRef(c),
		Status:     query.Status,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
