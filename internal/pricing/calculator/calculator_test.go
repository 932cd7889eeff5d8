package calculator

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

func intPtr(v int) *int { return &v }

func cyclePtr(c plandomain.BillingCycle) *plandomain.BillingCycle { return &c }

func scenarioPlan() plandomain.Plan {
	return plandomain.Plan{
		ID:                    snowflake.ID(1),
		Name:                  "Starter",
		BillingCycle:          plandomain.BillingCycleMonthly,
		BasePrice:             1000,
		BaseBedCount:          10,
		MaxBedsAllowed:        50,
		TopUpPricePerBed:      50,
		BranchCount:           1,
		CostPerBranch:         500,
		AllowMultipleBranches: false,
		AnnualDiscountPercent: 0,
		SetupFee:              0,
	}
}

func TestScenarioA(t *testing.T) {
	b := CalculatePlanCost(scenarioPlan(), domain.Configuration{
		Beds:         intPtr(15),
		Branches:     intPtr(1),
		BillingCycle: cyclePtr(plandomain.BillingCycleMonthly),
	})
	assert.Equal(t, 5, b.ExtraBeds)
	assert.InDelta(t, 250, b.ExtraBedCost, tolerance)
	assert.InDelta(t, 1250, b.RawMonthly, tolerance)
	assert.InDelta(t, 1250, b.Subtotal, tolerance)
	assert.InDelta(t, 225, b.TaxAmount, tolerance)
	assert.InDelta(t, 1475, b.TotalPrice, tolerance)
	assert.InDelta(t, 1475, b.MonthlyEquivalent, tolerance)
	assert.Equal(t, TaxRatePercent, b.TaxRate)
	assert.Zero(t, b.Savings)
}

func TestScenarioBAnnualDiscount(t *testing.T) {
	plan := scenarioPlan()
	plan.AnnualDiscountPercent = 10
	b := CalculatePlanCost(plan, domain.Configuration{
		Beds:         intPtr(10),
		Branches:     intPtr(1),
		BillingCycle: cyclePtr(plandomain.BillingCycleAnnual),
	})
	assert.InDelta(t, 1000, b.RawMonthly, tolerance)
	assert.InDelta(t, 1200, b.AnnualDiscount, tolerance)
	assert.InDelta(t, 1200, b.Savings, tolerance)
	assert.InDelta(t, 10800, b.Subtotal, tolerance)
	assert.InDelta(t, 1944, b.TaxAmount, tolerance)
	assert.InDelta(t, 12744, b.TotalPrice, tolerance)
	assert.InDelta(t, 1062, b.MonthlyEquivalent, tolerance)
	assert.Equal(t, plandomain.BillingCycleAnnual, b.BillingCycle)
}

func TestDefaultsComeFromPlan(t *testing.T) {
	plan := scenarioPlan()
	b := CalculatePlanCost(plan, domain.Configuration{})
	assert.Equal(t, 10, b.Beds)
	assert.Zero(t, b.ExtraBeds)
	assert.InDelta(t, 1180, b.TotalPrice, tolerance)
	assert.Equal(t, plandomain.BillingCycleMonthly, b.BillingCycle)
}

func TestPricingAdditivity(t *testing.T) {
	plan := scenarioPlan()
	plan.SetupFee = 300
	b := CalculatePlanCost(plan, domain.Configuration{
		Beds:         intPtr(plan.BaseBedCount + 5),
		Branches:     intPtr(plan.BranchCount),
		BillingCycle: cyclePtr(plandomain.BillingCycleMonthly),
	})
	assert.Equal(t, 5*plan.TopUpPricePerBed, b.ExtraBedCost)
	assert.Equal(t, b.BasePrice+b.ExtraBedCost+b.TaxAmount+b.SetupFee, b.TotalPrice)
	assert.InDelta(t, 1475, b.MonthlyEquivalent, tolerance, "setup fee is excluded from the monthly figure")
}

func TestSetupFeeIsNotTaxed(t *testing.T) {
	plan := scenarioPlan()
	plan.SetupFee = 1000
	b := CalculatePlanCost(plan, domain.Configuration{})
	assert.InDelta(t, 180, b.TaxAmount, tolerance)
	assert.InDelta(t, 2180, b.TotalPrice, tolerance)
}

func TestBranchesBilledOnlyWhenAllowed(t *testing.T) {
	plan := scenarioPlan()
	cfg := domain.Configuration{Branches: intPtr(3)}

	b := CalculatePlanCost(plan, cfg)
	assert.Equal(t, 3, b.Branches)
	assert.Zero(t, b.ExtraBranches)
	assert.Zero(t, b.BranchCost)

	plan.AllowMultipleBranches = true
	b = CalculatePlanCost(plan, cfg)
	assert.Equal(t, 3, b.Branches)
	assert.Equal(t, 2, b.ExtraBranches)
	assert.InDelta(t, 1000, b.BranchCost, tolerance)
	assert.InDelta(t, 2000, b.RawMonthly, tolerance)

	b = CalculatePlanCost(plan, domain.Configuration{Beds: intPtr(3)})
	assert.Zero(t, b.ExtraBeds, "beds below the allowance never go negative")
	assert.Equal(t, plan.BranchCount, b.Branches, "branches default to the plan allowance")
	assert.Zero(t, b.ExtraBranches)
}

func TestAnnualReducesMonthlyEquivalent(t *testing.T) {
	for _, discount := range []float64{0.5, 5, 10, 25, 100} {
		plan := scenarioPlan()
		plan.AnnualDiscountPercent = discount
		cfg := domain.Configuration{Beds: intPtr(18), Branches: intPtr(1)}

		cfg.BillingCycle = cyclePtr(plandomain.BillingCycleAnnual)
		annual := CalculatePlanCost(plan, cfg)
		cfg.BillingCycle = cyclePtr(plandomain.BillingCycleMonthly)
		monthly := CalculatePlanCost(plan, cfg)

		assert.Less(t, annual.MonthlyEquivalent, monthly.MonthlyEquivalent, "discount %v", discount)
	}
}

func TestCalculatePlanCostIsIdempotent(t *testing.T) {
	plan := scenarioPlan()
	plan.AnnualDiscountPercent = 7.5
	plan.SetupFee = 99.99
	cfg := domain.Configuration{Beds: intPtr(23), BillingCycle: cyclePtr(plandomain.BillingCycleAnnual)}

	first := CalculatePlanCost(plan, cfg)
	second := CalculatePlanCost(plan, cfg)
	assert.Equal(t, first, second)
}

func TestComparePlansOrdering(t *testing.T) {
	a := scenarioPlan()
	a.ID, a.Name = 1, "A"

	b := scenarioPlan()
	b.ID, b.Name = 2, "B"
	b.BasePrice = 762.7118644067797 - 250
	b.TopUpPricePerBed = 50

	c := scenarioPlan()
	c.ID, c.Name = 3, "C"
	c.BasePrice = 2000/1.18 - 250

	invalid := scenarioPlan()
	invalid.ID, invalid.Name = 4, "Broken"
	invalid.BasePrice = -10

	cfg := domain.Configuration{Beds: intPtr(15), Branches: intPtr(1), BillingCycle: cyclePtr(plandomain.BillingCycleMonthly)}
	result := ComparePlans([]plandomain.Plan{a, invalid, b, c}, cfg)

	require.Len(t, result.Comparisons, 3)
	totals := []float64{
		result.Comparisons[0].Calculation.TotalPrice,
		result.Comparisons[1].Calculation.TotalPrice,
		result.Comparisons[2].Calculation.TotalPrice,
	}
	assert.InDelta(t, 900, totals[0], tolerance)
	assert.InDelta(t, 1475, totals[1], tolerance)
	assert.InDelta(t, 2000, totals[2], tolerance)

	require.NotNil(t, result.BestValue)
	assert.InDelta(t, 900, result.BestValue.Calculation.TotalPrice, tolerance)
	assert.Equal(t, "B", result.BestValue.PlanName)

	require.Len(t, result.Unavailable, 1)
	assert.Equal(t, "4", result.Unavailable[0].PlanID)
	assert.Equal(t, plandomain.ErrInvalidPrice.Error(), result.Unavailable[0].Reason)
}

func TestComparePlansEmpty(t *testing.T) {
	result := ComparePlans(nil, domain.Configuration{})
	assert.Nil(t, result.BestValue)
	assert.Empty(t, result.Comparisons)
	assert.Empty(t, result.Unavailable)
}

func TestCalculateUpgradeCost(t *testing.T) {
	current := scenarioPlan()
	target := scenarioPlan()
	target.BasePrice = 1500

	report := CalculateUpgradeCost(current, target, domain.Configuration{})
	assert.InDelta(t, 590, report.PriceDifference, tolerance)
	assert.InDelta(t, 590, report.MonthlyDifference, tolerance)
	assert.True(t, report.IsUpgrade)
	assert.InDelta(t, 590, report.AdditionalCost, tolerance)
	assert.Zero(t, report.Savings)

	downgrade := CalculateUpgradeCost(target, current, domain.Configuration{})
	assert.False(t, downgrade.IsUpgrade)
	assert.InDelta(t, 590, downgrade.Savings, tolerance)
	assert.Zero(t, downgrade.AdditionalCost)
	assert.Equal(t, domain.BreakEvenImmediate, downgrade.BreakEven.Status)
}

func TestCalculateBreakEven(t *testing.T) {
	current := domain.Breakdown{TotalPrice: 1475, MonthlyEquivalent: 1475}

	immediate := CalculateBreakEven(current, domain.Breakdown{TotalPrice: 1475, MonthlyEquivalent: 1475})
	assert.Equal(t, domain.BreakEvenImmediate, immediate.Status)
	assert.Zero(t, immediate.Months)
	assert.Equal(t, "no break-even needed", immediate.Message)

	annual := CalculateBreakEven(current, domain.Breakdown{TotalPrice: 12744, MonthlyEquivalent: 1062})
	assert.Equal(t, domain.BreakEvenMonths, annual.Status)
	assert.Equal(t, 28, annual.Months)
	assert.InDelta(t, 413, annual.MonthlySavings, tolerance)
}

func TestBreakEvenGuardOnSetupFeeOnlyDifference(t *testing.T) {
	plan := scenarioPlan()
	withFee := scenarioPlan()
	withFee.SetupFee = 500

	result := CalculateBreakEven(CalculatePlanCost(plan, domain.Configuration{}), CalculatePlanCost(withFee, domain.Configuration{}))
	assert.Equal(t, domain.BreakEvenNever, result.Status)
	assert.Zero(t, result.Months)
	assert.Zero(t, result.MonthlySavings)
}

func TestGetPlanTier(t *testing.T) {
	cases := map[float64]domain.Tier{
		0:       domain.TierBasic,
		999.99:  domain.TierBasic,
		1000:    domain.TierStandard,
		2499:    domain.TierStandard,
		2500:    domain.TierProfessional,
		4999.5:  domain.TierProfessional,
		5000:    domain.TierEnterprise,
		1000000: domain.TierEnterprise,
	}
	for price, want := range cases {
		assert.Equal(t, want, GetPlanTier(price), "price %v", price)
	}
}

func TestIsRecommendedForUsage(t *testing.T) {
	plan := scenarioPlan()
	plan.IsRecommended = true

	assert.True(t, IsRecommendedForUsage(plan, domain.Usage{}))
	plan.IsRecommended = false
	assert.False(t, IsRecommendedForUsage(plan, domain.Usage{}))

	// base 10, max 50: window is [7, 42].
	assert.False(t, IsRecommendedForUsage(plan, domain.Usage{Beds: intPtr(6)}))
	assert.True(t, IsRecommendedForUsage(plan, domain.Usage{Beds: intPtr(7)}))
	assert.True(t, IsRecommendedForUsage(plan, domain.Usage{Beds: intPtr(42)}))
	assert.False(t, IsRecommendedForUsage(plan, domain.Usage{Beds: intPtr(43)}))
}

func TestIsRecommendedForUsageWithoutBedCeiling(t *testing.T) {
	plan := scenarioPlan()
	plan.BaseBedCount = 60
	plan.MaxBedsAllowed = 0

	assert.False(t, IsRecommendedForUsage(plan, domain.Usage{Beds: intPtr(41)}))
	for _, beds := range []int{42, 60, 80, 200} {
		assert.True(t, IsRecommendedForUsage(plan, domain.Usage{Beds: intPtr(beds)}), "beds=%d", beds)
	}
}

func TestGetScalingProjections(t *testing.T) {
	plan := scenarioPlan()
	result := GetScalingProjections(plan, domain.Configuration{Beds: intPtr(40)})

	require.Len(t, result.Projections, len(ProjectionGrowthFactors))
	assert.Equal(t, 50, result.Projections[0].Beds)
	assert.False(t, result.Projections[0].ExceedsPlanLimit)
	assert.Equal(t, 60, result.Projections[1].Beds)
	assert.True(t, result.Projections[1].ExceedsPlanLimit)
	assert.Equal(t, 80, result.Projections[2].Beds)

	for _, p := range result.Projections {
		assert.Greater(t, p.CostIncrease, 0.0)
		assert.Equal(t, p.Calculation.TotalPrice-result.Current.TotalPrice, p.CostIncrease)
	}
}

func TestGetCostOptimization(t *testing.T) {
	plan := scenarioPlan()
	plan.AnnualDiscountPercent = 10

	cheaper := scenarioPlan()
	cheaper.ID, cheaper.Name = 2, "Lite"
	cheaper.BasePrice = 600
	cheaper.MaxBedsAllowed = 20

	tooSmall := scenarioPlan()
	tooSmall.ID, tooSmall.Name = 3, "Tiny"
	tooSmall.BasePrice = 100
	tooSmall.MaxBedsAllowed = 12

	cfg := domain.Configuration{Beds: intPtr(20), BillingCycle: cyclePtr(plandomain.BillingCycleMonthly)}
	usage := domain.Usage{Beds: intPtr(14)}

	result := GetCostOptimization(plan, cfg, usage, []plandomain.Plan{plan, cheaper, tooSmall})
	assert.InDelta(t, 1770*12, result.AnnualizedCurrent, tolerance)
	require.NotEmpty(t, result.Recommendations)

	kinds := map[domain.RecommendationKind]bool{}
	for i, r := range result.Recommendations {
		kinds[r.Kind] = true
		assert.Greater(t, r.PotentialSavings, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Recommendations[i-1].PotentialSavings, r.PotentialSavings)
		}
		assert.NotEqual(t, "Tiny", r.PlanName)
	}
	assert.True(t, kinds[domain.RecommendationReduceBeds])
	assert.True(t, kinds[domain.RecommendationSwitchAnnual])
	assert.True(t, kinds[domain.RecommendationSwitchPlan])
	assert.False(t, kinds[domain.RecommendationReduceBranches])
}

func TestGetCostOptimizationWithNothingCheaper(t *testing.T) {
	plan := scenarioPlan()
	result := GetCostOptimization(plan, domain.Configuration{}, domain.Usage{}, nil)
	assert.Empty(t, result.Recommendations)
	assert.NotNil(t, result.Recommendations)
}
