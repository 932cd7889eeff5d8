package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
)

type entitlementCheckRequest struct {
	Module    string `json:"module"`
	Submodule string `json:"submodule"`
	Action    string `json:"action"`
	Feature   string `json:"feature"`
}

type entitlementCheckResponse struct {
	Allowed     bool                      `json:"allowed"`
	Check       string                    `json:"check"`
	Trial       bool                      `json:"trial"`
	Restricted  bool                      `json:"restricted"`
	Permissions *plandomain.PermissionSet `json:"permissions,omitempty"`
}

func (s *Server) GetEntitlementSummary(c *gin.Context) {
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.evaluator.Summary(sub)})
}

func (s *Server) CheckEntitlement(c *gin.Context) {
	var req entitlementCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Module = strings.TrimSpace(req.Module)
	req.Submodule = strings.TrimSpace(req.Submodule)
	req.Action = strings.TrimSpace(req.Action)
	req.Feature = strings.TrimSpace(req.Feature)
	if req.Module == "" && req.Feature == "" {
		AbortWithError(c, newValidationError("module", "invalid_module", "module or feature is required"))
		return
	}

	sub, err := s.subscriptionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := entitlementCheckResponse{Trial: s.evaluator.IsTrial(sub)}
	switch {
	case req.Feature != "":
		resp.Check = "feature"
		resp.Allowed = s.evaluator.HasFeature(req.Feature, sub)
	case req.Submodule != "" && req.Action != "":
		resp.Check = "action"
		resp.Allowed = s.evaluator.CanPerformActionOnSubmodule(req.Module, req.Submodule, req.Action, sub)
	case req.Submodule != "":
		resp.Check = "submodule"
		resp.Allowed = s.evaluator.HasModule(req.Module, sub)
		if set, ok := s.evaluator.GetSubmodulePermissions(req.Module, req.Submodule, sub); ok {
			resp.Permissions = &set
		}
	default:
		resp.Check = "module"
		resp.Allowed = s.evaluator.HasModule(req.Module, sub)
	}
	if req.Module != "" {
		resp.Restricted = s.evaluator.HasRestrictedPermissions(req.Module, sub)
	}

	s.obsMetrics.RecordEntitlementDecision(c.Request.Context(), resp.Check, resp.Allowed)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckRoute(c *gin.Context) {
	path := strings.TrimSpace(c.Query("path"))
	if path == "" {
		AbortWithError(c, newValidationError("path", "invalid_path", "path is required"))
		return
	}

	sub, err := s.subscriptionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	decision := s.evaluator.ExplainRoute(path, sub)
	s.obsMetrics.RecordEntitlementDecision(c.Request.Context(), "route", decision.Allowed)
	c.JSON(http.StatusOK, gin.H{"data": decision})
}
