package domain

import (
	"context"
	"errors"

	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Subscription, error)
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]Subscription, error)
	UpdateUsage(ctx context.Context, req UpdateUsageRequest) (*Subscription, error)
	AddBeds(ctx context.Context, id string, additional int) (*Subscription, error)
	AddBranches(ctx context.Context, id string, additional int) (*Subscription, error)
	ChangePlan(ctx context.Context, req ChangePlanRequest) (*Subscription, error)
	Cancel(ctx context.Context, id string) (*Subscription, error)
}

// CreateRequest signs a tenant up. Without a plan the subscription is free.
type CreateRequest struct {
	PlanID       *string                  `json:"plan_id,omitempty"`
	BillingCycle *plandomain.BillingCycle `json:"billing_cycle,omitempty"`
	Beds         *int                     `json:"beds,omitempty"`
	Branches     *int                     `json:"branches,omitempty"`
	TrialDays    *int                     `json:"trial_days,omitempty"`
	Metadata     map[string]any           `json:"metadata,omitempty"`
}

type UpdateUsageRequest struct {
	SubscriptionID string `json:"-"`
	BedsUsed       *int   `json:"beds_used,omitempty"`
	BranchesUsed   *int   `json:"branches_used,omitempty"`
}

type ChangePlanRequest struct {
	SubscriptionID string                   `json:"-"`
	PlanID         string                   `json:"plan_id"`
	BillingCycle   *plandomain.BillingCycle `json:"billing_cycle,omitempty"`
	Beds           *int                     `json:"beds,omitempty"`
	Branches       *int                     `json:"branches,omitempty"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidPlan         = errors.New("invalid_plan")
	ErrInvalidTrialDays    = errors.New("invalid_trial_days")
	ErrInvalidUsage        = errors.New("invalid_usage")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrPlanUnavailable     = errors.New("plan_unavailable")
	ErrNotFound            = errors.New("subscription_not_found")
	ErrNotMutable          = errors.New("subscription_not_mutable")
	ErrBedLimitReached     = errors.New("bed_limit_reached")
	ErrBranchLimitReached  = errors.New("branch_limit_reached")
	ErrConcurrentUpdate    = errors.New("concurrent_update")
)
