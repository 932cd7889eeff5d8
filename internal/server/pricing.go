package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	pricingdomain "github.com/smallbiznis/pgbilling/internal/pricing/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/format"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
)

type calculateRequest struct {
	PlanID string `json:"plan_id"`
	pricingdomain.Configuration
}

type compareRequest struct {
	PlanIDs []string `json:"plan_ids"`
	pricingdomain.Configuration
}

type upgradeRequest struct {
	CurrentPlanID string `json:"current_plan_id"`
	TargetPlanID  string `json:"target_plan_id"`
	pricingdomain.Configuration
}

type upgradeDisplay struct {
	Current format.Breakdown `json:"current"`
	Target  format.Breakdown `json:"target"`
}

// newQuoteID returns a lexically sortable quote reference.
func newQuoteID() string {
	return ulid.Make().String()
}

func (s *Server) CalculatePrice(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	breakdown, err := s.pricingSvc.Calculate(c.Request.Context(), strings.TrimSpace(req.PlanID), req.Configuration)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quote_id": newQuoteID(),
		"data":     breakdown,
		"display":  format.FromBreakdown(*breakdown),
	})
}

func (s *Server) ComparePlans(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.pricingSvc.Compare(c.Request.Context(), splitList(req.PlanIDs), req.Configuration)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	display := make([]format.Breakdown, 0, len(result.Comparisons))
	for _, comparison := range result.Comparisons {
		display = append(display, format.FromBreakdown(comparison.Calculation))
	}

	c.JSON(http.StatusOK, gin.H{
		"quote_id": newQuoteID(),
		"data":     result,
		"display":  display,
	})
}

func (s *Server) CalculateUpgrade(c *gin.Context) {
	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.pricingSvc.Upgrade(
		c.Request.Context(),
		strings.TrimSpace(req.CurrentPlanID),
		strings.TrimSpace(req.TargetPlanID),
		req.Configuration,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quote_id": newQuoteID(),
		"data":     report,
		"display": upgradeDisplay{
			Current: format.FromBreakdown(report.Current),
			Target:  format.FromBreakdown(report.Target),
		},
	})
}

func (s *Server) RecommendPlans(c *gin.Context) {
	var req pricingdomain.Usage
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	recommendations, err := s.pricingSvc.Recommendations(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote_id": newQuoteID(), "data": recommendations})
}

func (s *Server) ProjectScaling(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projections, err := s.pricingSvc.Projections(c.Request.Context(), strings.TrimSpace(req.PlanID), req.Configuration)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote_id": newQuoteID(), "data": projections})
}

func (s *Server) GetPriceTier(c *gin.Context) {
	price, err := parseRequiredFloat(c.Query("price"))
	if err != nil {
		AbortWithError(c, newValidationError("price", "invalid_price", "invalid price"))
		return
	}

	tier, err := s.pricingSvc.Tier(price)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"price": price, "tier": tier}})
}

// GetCostOptimization prices the subscriber's frozen plan at its purchased
// quantities and compares it against the active catalog.
func (s *Server) GetCostOptimization(c *gin.Context) {
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub.Plan == nil {
		AbortWithError(c, subscriptiondomain.ErrPlanUnavailable)
		return
	}

	cfg := pricingdomain.Configuration{
		Beds:     sub.Restrictions.MaxBeds,
		Branches: sub.Restrictions.MaxBranches,
	}
	switch sub.BillingCycle {
	case plandomain.BillingCycleMonthly, plandomain.BillingCycleAnnual:
		cycle := sub.BillingCycle
		cfg.BillingCycle = &cycle
	}
	bedsUsed := sub.Usage.BedsUsed
	branchesUsed := sub.Usage.BranchesUsed
	usage := pricingdomain.Usage{Beds: &bedsUsed, Branches: &branchesUsed}

	report, err := s.pricingSvc.Optimization(c.Request.Context(), *sub.Plan, cfg, usage)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote_id": newQuoteID(), "data": report})
}
