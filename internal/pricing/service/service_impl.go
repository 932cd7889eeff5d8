package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/samber/lo"
	"github.com/smallbiznis/pgbilling/internal/observability/metrics"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/calculator"
	"github.com/smallbiznis/pgbilling/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	PlanSvc plandomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	planSvc plandomain.Service
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("pricing.service"),
		planSvc: p.PlanSvc,
		metrics: p.Metrics,
	}
}

func (s *Service) Calculate(ctx context.Context, planID string, cfg domain.Configuration) (*domain.Breakdown, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.lookup(ctx, "calculate", planID)
	if err != nil {
		return nil, err
	}
	b := calculator.CalculatePlanCost(*plan, cfg)
	s.metrics.RecordPricingCalculation(ctx, "calculate", string(b.BillingCycle))
	return &b, nil
}

// Compare prices the given plans, or every active plan when ids is empty.
// Unresolvable ids are reported as unavailable instead of failing the batch.
func (s *Service) Compare(ctx context.Context, planIDs []string, cfg domain.Configuration) (*domain.ComparisonResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		plans       []plandomain.Plan
		unavailable []domain.Unavailable
	)
	if len(planIDs) == 0 {
		active, err := s.activePlans(ctx)
		if err != nil {
			return nil, err
		}
		plans = active
	} else {
		for _, id := range lo.Uniq(planIDs) {
			plan, err := s.lookup(ctx, "compare", id)
			if err != nil {
				if reason, ok := unavailableReason(err); ok {
					unavailable = append(unavailable, domain.Unavailable{PlanID: strings.TrimSpace(id), Reason: reason})
					continue
				}
				return nil, err
			}
			plans = append(plans, *plan)
		}
	}

	result := calculator.ComparePlans(plans, cfg)
	for _, u := range result.Unavailable {
		s.metrics.RecordPlanUnavailable(ctx, "compare", u.Reason)
	}
	result.Unavailable = append(unavailable, result.Unavailable...)
	s.metrics.RecordPricingCalculation(ctx, "compare", cycleLabel(cfg))
	return &result, nil
}

func (s *Service) Upgrade(ctx context.Context, currentPlanID, targetPlanID string, cfg domain.Configuration) (*domain.UpgradeReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	current, err := s.lookup(ctx, "upgrade", currentPlanID)
	if err != nil {
		return nil, err
	}
	target, err := s.lookup(ctx, "upgrade", targetPlanID)
	if err != nil {
		return nil, err
	}
	report := calculator.CalculateUpgradeCost(*current, *target, cfg)
	s.metrics.RecordPricingCalculation(ctx, "upgrade", string(report.Target.BillingCycle))
	return &report, nil
}

// Recommendations prices every active plan that suits usage, cheapest first.
func (s *Service) Recommendations(ctx context.Context, usage domain.Usage) ([]domain.PlanComparison, error) {
	if usage.Beds != nil && *usage.Beds < 0 {
		return nil, domain.ErrInvalidBeds
	}
	if usage.Branches != nil && *usage.Branches < 0 {
		return nil, domain.ErrInvalidBranches
	}
	active, err := s.activePlans(ctx)
	if err != nil {
		return nil, err
	}

	suitable := lo.Filter(active, func(p plandomain.Plan, _ int) bool {
		return calculator.IsRecommendedForUsage(p, usage)
	})
	cfg := domain.Configuration{Beds: usage.Beds, Branches: usage.Branches}
	result := calculator.ComparePlans(suitable, cfg)
	s.metrics.RecordPricingCalculation(ctx, "recommendations", cycleLabel(cfg))
	return result.Comparisons, nil
}

func (s *Service) Projections(ctx context.Context, planID string, cfg domain.Configuration) (*domain.ScalingProjections, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.lookup(ctx, "projections", planID)
	if err != nil {
		return nil, err
	}
	result := calculator.GetScalingProjections(*plan, cfg)
	s.metrics.RecordPricingCalculation(ctx, "projections", string(result.Current.BillingCycle))
	return &result, nil
}

// Optimization evaluates a plan snapshot, typically taken from a subscription,
// against the current active catalog.
func (s *Service) Optimization(ctx context.Context, plan plandomain.Plan, cfg domain.Configuration, usage domain.Usage) (*domain.CostOptimization, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	alternatives, err := s.activePlans(ctx)
	if err != nil {
		return nil, err
	}
	result := calculator.GetCostOptimization(plan, cfg, usage, alternatives)
	s.metrics.RecordPricingCalculation(ctx, "optimization", string(result.Current.BillingCycle))
	return &result, nil
}

func (s *Service) Tier(price float64) (domain.Tier, error) {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return "", domain.ErrInvalidPrice
	}
	return calculator.GetPlanTier(price), nil
}

func (s *Service) lookup(ctx context.Context, operation, id string) (*plandomain.Plan, error) {
	plan, err := s.planSvc.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, plandomain.ErrInvalidID):
			s.metrics.RecordPlanUnavailable(ctx, operation, domain.ErrInvalidPlanID.Error())
			return nil, domain.ErrInvalidPlanID
		case errors.Is(err, plandomain.ErrNotFound):
			s.metrics.RecordPlanUnavailable(ctx, operation, domain.ErrPlanNotFound.Error())
			return nil, domain.ErrPlanNotFound
		}
		s.log.Error("plan lookup failed", zap.String("plan_id", id), zap.String("operation", operation), zap.Error(err))
		return nil, err
	}
	return plan, nil
}

func (s *Service) activePlans(ctx context.Context) ([]plandomain.Plan, error) {
	active := true
	return s.planSvc.List(ctx, plandomain.ListRequest{Active: &active})
}

func unavailableReason(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrPlanNotFound):
		return domain.ErrPlanNotFound.Error(), true
	case errors.Is(err, domain.ErrInvalidPlanID):
		return domain.ErrInvalidPlanID.Error(), true
	}
	return "", false
}

func cycleLabel(cfg domain.Configuration) string {
	if cfg.BillingCycle == nil {
		return "plan_default"
	}
	return string(*cfg.BillingCycle)
}
