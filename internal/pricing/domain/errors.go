package domain

import "errors"

var (
	ErrPlanNotFound        = errors.New("plan_not_found")
	ErrInvalidPlanID       = errors.New("invalid_plan_id")
	ErrInvalidBeds         = errors.New("invalid_beds")
	ErrInvalidBranches     = errors.New("invalid_branches")
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrNoPlans             = errors.New("no_plans")
)
