package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
)

type quantityRequest struct {
	Additional int `json:"additional"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.PlanID != nil {
		trimmed := strings.TrimSpace(*req.PlanID)
		req.PlanID = &trimmed
	}

	sub, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": sub})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	subs, err := s.subscriptionSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subs})
}

func (s *Server) GetSubscriptionByID(c *gin.Context) {
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) UpdateSubscriptionUsage(c *gin.Context) {
	var req subscriptiondomain.UpdateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SubscriptionID = strings.TrimSpace(c.Param("id"))

	sub, err := s.subscriptionSvc.UpdateUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) AddSubscriptionBeds(c *gin.Context) {
	s.addQuantity(c, "beds", s.subscriptionSvc.AddBeds)
}

func (s *Server) AddSubscriptionBranches(c *gin.Context) {
	s.addQuantity(c, "branches", s.subscriptionSvc.AddBranches)
}

func (s *Server) addQuantity(c *gin.Context, check string, add func(ctx context.Context, id string, additional int) (*subscriptiondomain.Subscription, error)) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := add(c.Request.Context(), strings.TrimSpace(c.Param("id")), req.Additional)
	if err != nil {
		if isLimitReached(err) {
			s.obsMetrics.RecordEntitlementDecision(c.Request.Context(), check, false)
		}
		AbortWithError(c, err)
		return
	}
	s.obsMetrics.RecordEntitlementDecision(c.Request.Context(), check, true)

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) ChangeSubscriptionPlan(c *gin.Context) {
	var req subscriptiondomain.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SubscriptionID = strings.TrimSpace(c.Param("id"))
	req.PlanID = strings.TrimSpace(req.PlanID)

	sub, err := s.subscriptionSvc.ChangePlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func isLimitReached(err error) bool {
	return errors.Is(err, subscriptiondomain.ErrBedLimitReached) ||
		errors.Is(err, subscriptiondomain.ErrBranchLimitReached)
}
