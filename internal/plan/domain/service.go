package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Plan, error)
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context, req ListRequest) ([]Plan, error)
	Update(ctx context.Context, req UpdateRequest) (*Plan, error)
	Archive(ctx context.Context, id string) (*Plan, error)
}

type ListRequest struct {
	Active *bool
}

type CreateRequest struct {
	Code                  string         `json:"code"`
	Name                  string         `json:"name"`
	Description           *string        `json:"description"`
	BillingCycle          BillingCycle   `json:"billing_cycle"`
	BasePrice             float64        `json:"base_price"`
	BaseBedCount          int            `json:"base_bed_count"`
	MaxBedsAllowed        int            `json:"max_beds_allowed"`
	TopUpPricePerBed      float64        `json:"top_up_price_per_bed"`
	BranchCount           *int           `json:"branch_count"`
	CostPerBranch         float64        `json:"cost_per_branch"`
	AllowMultipleBranches bool           `json:"allow_multiple_branches"`
	AnnualDiscountPercent float64        `json:"annual_discount_percent"`
	SetupFee              float64        `json:"setup_fee"`
	IsRecommended         bool           `json:"is_recommended"`
	Modules               []Module       `json:"modules"`
	Features              []Feature      `json:"features"`
	Metadata              map[string]any `json:"metadata"`
}

// UpdateRequest patches a plan; nil fields are left unchanged.
type UpdateRequest struct {
	ID                    string         `json:"id"`
	Name                  *string        `json:"name,omitempty"`
	Description           *string        `json:"description,omitempty"`
	BillingCycle          *BillingCycle  `json:"billing_cycle,omitempty"`
	BasePrice             *float64       `json:"base_price,omitempty"`
	BaseBedCount          *int           `json:"base_bed_count,omitempty"`
	MaxBedsAllowed        *int           `json:"max_beds_allowed,omitempty"`
	TopUpPricePerBed      *float64       `json:"top_up_price_per_bed,omitempty"`
	BranchCount           *int           `json:"branch_count,omitempty"`
	CostPerBranch         *float64       `json:"cost_per_branch,omitempty"`
	AllowMultipleBranches *bool          `json:"allow_multiple_branches,omitempty"`
	AnnualDiscountPercent *float64       `json:"annual_discount_percent,omitempty"`
	SetupFee              *float64       `json:"setup_fee,omitempty"`
	IsRecommended         *bool          `json:"is_recommended,omitempty"`
	Modules               []Module       `json:"modules,omitempty"`
	Features              []Feature      `json:"features,omitempty"`
	Metadata              map[string]any `json:"metadata,omitempty"`
}

var (
	ErrInvalidID           = errors.New("invalid_plan_id")
	ErrInvalidName         = errors.New("invalid_plan_name")
	ErrInvalidCode         = errors.New("invalid_plan_code")
	ErrInvalidBillingCycle = errors.New("invalid_billing_cycle")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidCount        = errors.New("invalid_count")
	ErrInvalidDiscount     = errors.New("invalid_annual_discount")
	ErrInvalidModule       = errors.New("invalid_module")
	ErrDuplicateModule     = errors.New("duplicate_module")
	ErrDuplicateCode       = errors.New("duplicate_plan_code")
	ErrNotFound            = errors.New("plan_not_found")
	ErrArchived            = errors.New("plan_archived")
)
