package domain

import (
	"context"

	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
)

// Service resolves catalog plans and runs the pure calculator over them.
type Service interface {
	Calculate(ctx context.Context, planID string, cfg Configuration) (*Breakdown, error)
	Compare(ctx context.Context, planIDs []string, cfg Configuration) (*ComparisonResult, error)
	Upgrade(ctx context.Context, currentPlanID, targetPlanID string, cfg Configuration) (*UpgradeReport, error)
	Recommendations(ctx context.Context, usage Usage) ([]PlanComparison, error)
	Projections(ctx context.Context, planID string, cfg Configuration) (*ScalingProjections, error)
	Optimization(ctx context.Context, plan plandomain.Plan, cfg Configuration, usage Usage) (*CostOptimization, error)
	Tier(price float64) (Tier, error)
}
