// Package calculator is the pure pricing engine. Nothing here performs I/O or rounds.
package calculator

import (
	"math"
	"sort"

	"github.com/samber/lo"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/domain"
)

// Resolved is a configuration with every default applied.
type Resolved struct {
	Beds         int
	Branches     int
	BillingCycle plandomain.BillingCycle
}

// Resolve applies the plan's allowances to unset configuration fields.
func Resolve(plan plandomain.Plan, cfg domain.Configuration) Resolved {
	r := Resolved{
		Beds:         plan.BaseBedCount,
		Branches:     plan.BranchCount,
		BillingCycle: plan.BillingCycle,
	}
	if cfg.Beds != nil {
		r.Beds = *cfg.Beds
	}
	if cfg.Branches != nil {
		r.Branches = *cfg.Branches
	}
	if cfg.BillingCycle != nil {
		r.BillingCycle = *cfg.BillingCycle
	}
	return r
}

func (r Resolved) Configuration() domain.Configuration {
	beds, branches, cycle := r.Beds, r.Branches, r.BillingCycle
	return domain.Configuration{Beds: &beds, Branches: &branches, BillingCycle: &cycle}
}

func CalculatePlanCost(plan plandomain.Plan, cfg domain.Configuration) domain.Breakdown {
	r := Resolve(plan, cfg)

	extraBeds := max(0, r.Beds-plan.BaseBedCount)
	extraBedCost := float64(extraBeds) * plan.TopUpPricePerBed

	extraBranches := 0
	if plan.AllowMultipleBranches {
		extraBranches = max(0, r.Branches-plan.BranchCount)
	}
	branchCost := float64(extraBranches) * plan.CostPerBranch

	rawMonthly := plan.BasePrice + extraBedCost + branchCost

	annual := r.BillingCycle == plandomain.BillingCycleAnnual
	annualDiscount := 0.0
	subtotal := rawMonthly
	if annual {
		yearly := rawMonthly * monthsPerYear
		annualDiscount = yearly * (plan.AnnualDiscountPercent / 100)
		subtotal = yearly - annualDiscount
	}

	taxAmount := subtotal * TaxRatePercent / 100
	totalPrice := subtotal + taxAmount + plan.SetupFee

	monthlyEquivalent := subtotal + taxAmount
	if annual {
		monthlyEquivalent /= monthsPerYear
	}

	return domain.Breakdown{
		BillingCycle:      lo.Ternary(annual, plandomain.BillingCycleAnnual, plandomain.BillingCycleMonthly),
		Beds:              r.Beds,
		BasePrice:         plan.BasePrice,
		ExtraBeds:         extraBeds,
		ExtraBedCost:      extraBedCost,
		Branches:          r.Branches,
		ExtraBranches:     extraBranches,
		BranchCost:        branchCost,
		RawMonthly:        rawMonthly,
		Subtotal:          subtotal,
		AnnualDiscount:    annualDiscount,
		TaxRate:           TaxRatePercent,
		TaxAmount:         taxAmount,
		SetupFee:          plan.SetupFee,
		TotalPrice:        totalPrice,
		MonthlyEquivalent: monthlyEquivalent,
		Savings:           annualDiscount,
	}
}

// ComparePlans prices every plan under cfg. Plans that fail validation are
// reported in Unavailable rather than dropped.
func ComparePlans(plans []plandomain.Plan, cfg domain.Configuration) domain.ComparisonResult {
	result := domain.ComparisonResult{
		Comparisons: []domain.PlanComparison{},
		Unavailable: []domain.Unavailable{},
	}
	for _, plan := range plans {
		if err := plan.Validate(); err != nil {
			result.Unavailable = append(result.Unavailable, domain.Unavailable{
				PlanID: plan.ID.String(),
				Reason: err.Error(),
			})
			continue
		}
		result.Comparisons = append(result.Comparisons, domain.PlanComparison{
			PlanID:      plan.ID,
			PlanName:    plan.Name,
			Tier:        GetPlanTier(plan.BasePrice),
			Calculation: CalculatePlanCost(plan, cfg),
		})
	}

	sort.SliceStable(result.Comparisons, func(i, j int) bool {
		return result.Comparisons[i].Calculation.TotalPrice < result.Comparisons[j].Calculation.TotalPrice
	})
	if len(result.Comparisons) > 0 {
		best := result.Comparisons[0]
		result.BestValue = &best
	}
	return result
}

func CalculateUpgradeCost(current, target plandomain.Plan, cfg domain.Configuration) domain.UpgradeReport {
	currentCost := CalculatePlanCost(current, cfg)
	targetCost := CalculatePlanCost(target, cfg)
	diff := targetCost.TotalPrice - currentCost.TotalPrice

	return domain.UpgradeReport{
		Current:           currentCost,
		Target:            targetCost,
		PriceDifference:   diff,
		MonthlyDifference: targetCost.MonthlyEquivalent - currentCost.MonthlyEquivalent,
		IsUpgrade:         diff > 0,
		Savings:           math.Max(0, -diff),
		AdditionalCost:    math.Max(0, diff),
		BreakEven:         CalculateBreakEven(currentCost, targetCost),
	}
}

// CalculateBreakEven never divides by a zero monthly delta; that case reports BreakEvenNever.
func CalculateBreakEven(currentCost, newCost domain.Breakdown) domain.BreakEven {
	monthlySavings := currentCost.MonthlyEquivalent - newCost.MonthlyEquivalent
	if newCost.TotalPrice <= currentCost.TotalPrice {
		return domain.BreakEven{
			Status:         domain.BreakEvenImmediate,
			MonthlySavings: monthlySavings,
			Message:        "no break-even needed",
		}
	}

	priceDifference := newCost.TotalPrice - currentCost.TotalPrice
	delta := math.Abs(monthlySavings)
	if delta < breakEvenEpsilon {
		return domain.BreakEven{
			Status:         domain.BreakEvenNever,
			MonthlySavings: monthlySavings,
			Message:        "monthly cost is unchanged; the difference is never recovered",
		}
	}

	return domain.BreakEven{
		Status:         domain.BreakEvenMonths,
		Months:         int(math.Ceil(priceDifference / delta)),
		MonthlySavings: monthlySavings,
		Message:        "difference recovered through monthly savings",
	}
}

func GetPlanTier(price float64) domain.Tier {
	switch {
	case price < TierStandardFrom:
		return domain.TierBasic
	case price < TierProfessionalFrom:
		return domain.TierStandard
	case price < TierEnterpriseFrom:
		return domain.TierProfessional
	default:
		return domain.TierEnterprise
	}
}

// IsRecommendedForUsage defers to the catalog flag when beds are unknown.
// A plan without a bed ceiling (MaxBedsAllowed 0) has no upper bound.
func IsRecommendedForUsage(plan plandomain.Plan, usage domain.Usage) bool {
	if usage.Beds == nil {
		return plan.IsRecommended
	}
	base := float64(plan.BaseBedCount)
	beds := float64(*usage.Beds)
	if beds < base*recommendedFloorRatio {
		return false
	}
	if plan.MaxBedsAllowed <= 0 {
		return true
	}
	capacity := base + float64(plan.MaxBedsAllowed-plan.BaseBedCount)*recommendedHeadroomRatio
	return beds <= capacity
}
