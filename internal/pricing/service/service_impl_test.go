package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pgbilling/internal/observability/metrics"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPlanService struct {
	plans   []plandomain.Plan
	listErr error
}

func (s *stubPlanService) Create(ctx context.Context, req plandomain.CreateRequest) (*plandomain.Plan, error) {
	return nil, nil
}

func (s *stubPlanService) Get(ctx context.Context, id string) (*plandomain.Plan, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, plandomain.ErrInvalidID
	}
	for _, p := range s.plans {
		if p.ID == parsed {
			copied := p
			return &copied, nil
		}
	}
	return nil, plandomain.ErrNotFound
}

func (s *stubPlanService) List(ctx context.Context, req plandomain.ListRequest) ([]plandomain.Plan, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []plandomain.Plan
	for _, p := range s.plans {
		if req.Active == nil || p.Active == *req.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPlanService) Update(ctx context.Context, req plandomain.UpdateRequest) (*plandomain.Plan, error) {
	return nil, nil
}

func (s *stubPlanService) Archive(ctx context.Context, id string) (*plandomain.Plan, error) {
	return nil, nil
}

func intPtr(v int) *int { return &v }

func catalog() []plandomain.Plan {
	base := plandomain.Plan{
		BillingCycle:     plandomain.BillingCycleMonthly,
		BaseBedCount:     10,
		MaxBedsAllowed:   50,
		TopUpPricePerBed: 50,
		BranchCount:      1,
		CostPerBranch:    500,
		Active:           true,
	}
	starter := base
	starter.ID, starter.Name, starter.BasePrice = 1, "Starter", 1000

	growth := base
	growth.ID, growth.Name, growth.BasePrice = 2, "Growth", 2000
	growth.BaseBedCount, growth.MaxBedsAllowed = 30, 120
	growth.TopUpPricePerBed = 40
	growth.AllowMultipleBranches = true
	growth.AnnualDiscountPercent = 15

	archived := base
	archived.ID, archived.Name, archived.BasePrice = 3, "Legacy", 500
	archived.Active = false

	return []plandomain.Plan{starter, growth, archived}
}

func newTestService(plans *stubPlanService) domain.Service {
	return New(Params{Log: zap.NewNop(), PlanSvc: plans, Metrics: metrics.NewNoop()})
}

func TestCalculate(t *testing.T) {
	svc := newTestService(&stubPlanService{plans: catalog()})

	b, err := svc.Calculate(context.Background(), "1", domain.Configuration{Beds: intPtr(15)})
	require.NoError(t, err)
	assert.InDelta(t, 1475, b.TotalPrice, 1e-6)

	_, err = svc.Calculate(context.Background(), "99", domain.Configuration{})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)

	_, err = svc.Calculate(context.Background(), "abc", domain.Configuration{})
	assert.ErrorIs(t, err, domain.ErrInvalidPlanID)

	_, err = svc.Calculate(context.Background(), "1", domain.Configuration{Beds: intPtr(-2)})
	assert.ErrorIs(t, err, domain.ErrInvalidBeds)

	trial := plandomain.BillingCycleTrial
	_, err = svc.Calculate(context.Background(), "1", domain.Configuration{BillingCycle: &trial})
	assert.ErrorIs(t, err, domain.ErrInvalidBillingCycle)
}

func TestCompareReportsUnavailablePlans(t *testing.T) {
	svc := newTestService(&stubPlanService{plans: catalog()})

	result, err := svc.Compare(context.Background(), []string{"2", "1", "404", "1", "nope"}, domain.Configuration{Beds: intPtr(25)})
	require.NoError(t, err)
	require.Len(t, result.Comparisons, 2)
	assert.Equal(t, "Starter", result.Comparisons[0].PlanName)
	assert.Equal(t, "Starter", result.BestValue.PlanName)
	assert.Equal(t, []domain.Unavailable{
		{PlanID: "404", Reason: "plan_not_found"},
		{PlanID: "nope", Reason: "invalid_plan_id"},
	}, result.Unavailable)
}

func TestCompareDefaultsToActiveCatalog(t *testing.T) {
	svc := newTestService(&stubPlanService{plans: catalog()})

	result, err := svc.Compare(context.Background(), nil, domain.Configuration{})
	require.NoError(t, err)
	assert.Len(t, result.Comparisons, 2)
	assert.Empty(t, result.Unavailable)
}

func TestComparePropagatesStorageErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := newTestService(&stubPlanService{listErr: boom})

	_, err := svc.Compare(context.Background(), nil, domain.Configuration{})
	assert.ErrorIs(t, err, boom)
}

func TestUpgrade(t *testing.T) {
	svc := newTestService(&stubPlanService{plans: catalog()})

	report, err := svc.Upgrade(context.Background(), "1", "2", domain.Configuration{Beds: intPtr(45)})
	require.NoError(t, err)
	assert.False(t, report.IsUpgrade, "Growth undercuts Starter at 45 beds")
	assert.Greater(t, report.Savings, 0.0)
	assert.Equal(t, domain.BreakEvenImmediate, report.BreakEven.Status)

	_, err = svc.Upgrade(context.Background(), "1", "404", domain.Configuration{})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestRecommendations(t *testing.T) {
	svc := newTestService(&stubPlanService{plans: catalog()})

	items, err := svc.Recommendations(context.Background(), domain.Usage{Beds: intPtr(22)})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Starter", items[0].PlanName)
	assert.Equal(t, "Growth", items[1].PlanName)

	items, err = svc.Recommendations(context.Background(), domain.Usage{Beds: intPtr(100)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Growth", items[0].PlanName)

	_, err = svc.Recommendations(context.Background(), domain.Usage{Beds: intPtr(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidBeds)
}

func TestProjectionsAndOptimization(t *testing.T) {
	plans := catalog()
	svc := newTestService(&stubPlanService{plans: plans})

	projections, err := svc.Projections(context.Background(), "1", domain.Configuration{Beds: intPtr(20)})
	require.NoError(t, err)
	assert.Len(t, projections.Projections, 3)

	opt, err := svc.Optimization(context.Background(), plans[0], domain.Configuration{Beds: intPtr(45)}, domain.Usage{Beds: intPtr(45)})
	require.NoError(t, err)
	require.NotEmpty(t, opt.Recommendations)
	assert.Equal(t, domain.RecommendationSwitchPlan, opt.Recommendations[0].Kind)
	assert.Equal(t, "Growth", opt.Recommendations[0].PlanName)
}

func TestTier(t *testing.T) {
	svc := newTestService(&stubPlanService{})

	tier, err := svc.Tier(2500)
	require.NoError(t, err)
	assert.Equal(t, domain.TierProfessional, tier)

	_, err = svc.Tier(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}
