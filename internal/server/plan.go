package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
)

func (s *Server) CreatePlan(c *gin.Context) {
	var req plandomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.planSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": plan})
}

func (s *Server) ListPlans(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	plans, err := s.planSvc.List(c.Request.Context(), plandomain.ListRequest{Active: active})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) GetPlanByID(c *gin.Context) {
	plan, err := s.planSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) UpdatePlan(c *gin.Context) {
	var req plandomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	plan, err := s.planSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ArchivePlan(c *gin.Context) {
	plan, err := s.planSvc.Archive(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}
