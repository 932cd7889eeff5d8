// Package domain holds the input and report types of the pricing engine.
package domain

import (
	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
)

// Configuration is the desired quantity and cadence. Nil fields fall back to the plan's own values.
type Configuration struct {
	Beds         *int                     `json:"beds,omitempty"`
	Branches     *int                     `json:"branches,omitempty"`
	BillingCycle *plandomain.BillingCycle `json:"billing_cycle,omitempty"`
}

// Validate rejects input the engine must never see.
func (c Configuration) Validate() error {
	if c.Beds != nil && *c.Beds < 0 {
		return ErrInvalidBeds
	}
	if c.Branches != nil && *c.Branches < 0 {
		return ErrInvalidBranches
	}
	if c.BillingCycle != nil {
		switch *c.BillingCycle {
		case plandomain.BillingCycleMonthly, plandomain.BillingCycleAnnual:
		default:
			return ErrInvalidBillingCycle
		}
	}
	return nil
}

// Breakdown is the itemized cost of one plan under one configuration.
// Amounts are unrounded and share the currency unit of the plan's base price.
type Breakdown struct {
	BillingCycle      plandomain.BillingCycle `json:"billing_cycle"`
	Beds              int                     `json:"beds"`
	BasePrice         float64                 `json:"base_price"`
	ExtraBeds         int                     `json:"extra_beds"`
	ExtraBedCost      float64                 `json:"extra_bed_cost"`
	Branches          int                     `json:"branches"`
	ExtraBranches     int                     `json:"extra_branches"`
	BranchCost        float64                 `json:"branch_cost"`
	RawMonthly        float64                 `json:"raw_monthly"`
	Subtotal          float64                 `json:"subtotal"`
	AnnualDiscount    float64                 `json:"annual_discount"`
	TaxRate           float64                 `json:"tax_rate"`
	TaxAmount         float64                 `json:"tax_amount"`
	SetupFee          float64                 `json:"setup_fee"`
	TotalPrice        float64                 `json:"total_price"`
	MonthlyEquivalent float64                 `json:"monthly_equivalent"`
	Savings           float64                 `json:"savings"`
}

// Tier is a coarse price band derived from base price.
type Tier string

const (
	TierBasic        Tier = "basic"
	TierStandard     Tier = "standard"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

type PlanComparison struct {
	PlanID      snowflake.ID `json:"plan_id"`
	PlanName    string       `json:"plan_name"`
	Tier        Tier         `json:"tier"`
	Calculation Breakdown    `json:"calculation"`
}

// Unavailable names a plan that could not be priced and why.
type Unavailable struct {
	PlanID string `json:"plan_id"`
	Reason string `json:"reason"`
}

type ComparisonResult struct {
	Comparisons []PlanComparison `json:"comparisons"`
	BestValue   *PlanComparison  `json:"best_value,omitempty"`
	Unavailable []Unavailable    `json:"unavailable"`
}

type BreakEvenStatus string

const (
	BreakEvenImmediate BreakEvenStatus = "immediate"
	BreakEvenMonths    BreakEvenStatus = "months"
	BreakEvenNever     BreakEvenStatus = "never"
)

// BreakEven reports when a more expensive total pays for itself.
// Months is only meaningful when Status is BreakEvenMonths.
type BreakEven struct {
	Status         BreakEvenStatus `json:"status"`
	Months         int             `json:"break_even_months"`
	MonthlySavings float64         `json:"monthly_savings"`
	Message        string          `json:"message"`
}

type UpgradeReport struct {
	Current           Breakdown `json:"current"`
	Target            Breakdown `json:"target"`
	PriceDifference   float64   `json:"price_difference"`
	MonthlyDifference float64   `json:"monthly_difference"`
	IsUpgrade         bool      `json:"is_upgrade"`
	Savings           float64   `json:"savings"`
	AdditionalCost    float64   `json:"additional_cost"`
	BreakEven         BreakEven `json:"break_even"`
}

// Usage is what the tenant actually consumes.
type Usage struct {
	Beds     *int `json:"beds,omitempty"`
	Branches *int `json:"branches,omitempty"`
}

type Projection struct {
	GrowthFactor     float64   `json:"growth_factor"`
	Beds             int       `json:"beds"`
	ExceedsPlanLimit bool      `json:"exceeds_plan_limit"`
	Tier             Tier      `json:"tier"`
	Calculation      Breakdown `json:"calculation"`
	CostIncrease     float64   `json:"cost_increase"`
}

type ScalingProjections struct {
	Current     Breakdown    `json:"current"`
	Projections []Projection `json:"projections"`
}

type RecommendationKind string

const (
	RecommendationReduceBeds     RecommendationKind = "reduce_beds"
	RecommendationReduceBranches RecommendationKind = "reduce_branches"
	RecommendationSwitchAnnual   RecommendationKind = "switch_to_annual"
	RecommendationSwitchPlan     RecommendationKind = "switch_plan"
)

type Recommendation struct {
	Kind             RecommendationKind      `json:"kind"`
	Description      string                  `json:"description"`
	PlanID           snowflake.ID            `json:"plan_id"`
	PlanName         string                  `json:"plan_name"`
	Beds             int                     `json:"beds"`
	Branches         int                     `json:"branches"`
	BillingCycle     plandomain.BillingCycle `json:"billing_cycle"`
	Calculation      Breakdown               `json:"calculation"`
	AnnualizedCost   float64                 `json:"annualized_cost"`
	PotentialSavings float64                 `json:"potential_savings"`
}

// CostOptimization compares candidates over twelve months so monthly and
// annual cycles are commensurable.
type CostOptimization struct {
	Current           Breakdown        `json:"current"`
	AnnualizedCurrent float64          `json:"annualized_current"`
	Recommendations   []Recommendation `json:"recommendations"`
}
