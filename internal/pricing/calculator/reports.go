package calculator

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/domain"
)

// GetScalingProjections prices the plan at each growth factor of the configured beds.
func GetScalingProjections(plan plandomain.Plan, cfg domain.Configuration) domain.ScalingProjections {
	r := Resolve(plan, cfg)
	current := CalculatePlanCost(plan, cfg)

	projections := lo.Map(ProjectionGrowthFactors, func(factor float64, _ int) domain.Projection {
		projected := r
		projected.Beds = int(math.Ceil(float64(max(r.Beds, 1)) * factor))
		cost := CalculatePlanCost(plan, projected.Configuration())
		return domain.Projection{
			GrowthFactor:     factor,
			Beds:             projected.Beds,
			ExceedsPlanLimit: plan.MaxBedsAllowed > 0 && projected.Beds > plan.MaxBedsAllowed,
			Tier:             GetPlanTier(cost.RawMonthly),
			Calculation:      cost,
			CostIncrease:     cost.TotalPrice - current.TotalPrice,
		}
	})

	return domain.ScalingProjections{Current: current, Projections: projections}
}

// GetCostOptimization lists cheaper ways to serve usage, best savings first.
// Candidates are right-sized beds and branches, the annual cycle, and each
// alternative plan that can hold the usage.
func GetCostOptimization(plan plandomain.Plan, cfg domain.Configuration, usage domain.Usage, alternatives []plandomain.Plan) domain.CostOptimization {
	r := Resolve(plan, cfg)
	current := CalculatePlanCost(plan, cfg)
	annualizedCurrent := annualized(current)

	usedBeds := valueOr(usage.Beds, r.Beds)
	usedBranches := valueOr(usage.Branches, r.Branches)

	var candidates []domain.Recommendation
	add := func(kind domain.RecommendationKind, description string, p plandomain.Plan, res Resolved) {
		cost := CalculatePlanCost(p, res.Configuration())
		candidates = append(candidates, domain.Recommendation{
			Kind:           kind,
			Description:    description,
			PlanID:         p.ID,
			PlanName:       p.Name,
			Beds:           res.Beds,
			Branches:       res.Branches,
			BillingCycle:   cost.BillingCycle,
			Calculation:    cost,
			AnnualizedCost: annualized(cost),
		})
	}

	if usedBeds < r.Beds {
		reduced := r
		reduced.Beds = usedBeds
		add(domain.RecommendationReduceBeds, fmt.Sprintf("reduce beds from %d to %d", r.Beds, usedBeds), plan, reduced)
	}
	if plan.AllowMultipleBranches && usedBranches < r.Branches {
		reduced := r
		reduced.Branches = max(usedBranches, 1)
		if reduced.Branches < r.Branches {
			add(domain.RecommendationReduceBranches, fmt.Sprintf("reduce branches from %d to %d", r.Branches, reduced.Branches), plan, reduced)
		}
	}
	if r.BillingCycle != plandomain.BillingCycleAnnual && plan.AnnualDiscountPercent > 0 {
		yearly := r
		yearly.BillingCycle = plandomain.BillingCycleAnnual
		add(domain.RecommendationSwitchAnnual, fmt.Sprintf("switch to annual billing for %.0f%% off", plan.AnnualDiscountPercent), plan, yearly)
	}
	for _, alt := range alternatives {
		if alt.ID == plan.ID || alt.Validate() != nil || !fits(alt, usedBeds, usedBranches) {
			continue
		}
		add(domain.RecommendationSwitchPlan, "switch to "+alt.Name, alt, Resolved{
			Beds:         max(usedBeds, alt.BaseBedCount),
			Branches:     max(usedBranches, 1),
			BillingCycle: r.BillingCycle,
		})
	}

	recommendations := lo.Filter(candidates, func(c domain.Recommendation, _ int) bool {
		return c.AnnualizedCost < annualizedCurrent
	})
	if recommendations == nil {
		recommendations = []domain.Recommendation{}
	}
	for i := range recommendations {
		recommendations[i].PotentialSavings = annualizedCurrent - recommendations[i].AnnualizedCost
	}
	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].PotentialSavings > recommendations[j].PotentialSavings
	})

	return domain.CostOptimization{
		Current:           current,
		AnnualizedCurrent: annualizedCurrent,
		Recommendations:   recommendations,
	}
}

// annualized is twelve months of recurring cost plus the one-time setup fee.
func annualized(b domain.Breakdown) float64 {
	return b.MonthlyEquivalent*monthsPerYear + b.SetupFee
}

func fits(plan plandomain.Plan, beds, branches int) bool {
	if plan.MaxBedsAllowed > 0 && beds > plan.MaxBedsAllowed {
		return false
	}
	if !plan.AllowMultipleBranches && branches > max(plan.BranchCount, 1) {
		return false
	}
	return true
}

func valueOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
