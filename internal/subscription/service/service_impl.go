package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pgbilling/internal/clock"
	"github.com/smallbiznis/pgbilling/internal/entitlement"
	"github.com/smallbiznis/pgbilling/internal/orgcontext"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
	"github.com/smallbiznis/pgbilling/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxTrialDays    = 90
	mutationLockTTL = 5 * time.Second
	keyMutationLock = "pgbilling:subscription:lock:%s"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      subscriptiondomain.Repository
	PlanSvc   plandomain.Service
	Evaluator *entitlement.Evaluator            `optional:"true"`
	Clock     clock.Clock                       `optional:"true"`
	Locker    subscriptiondomain.MutationLocker `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      subscriptiondomain.Repository
	planSvc   plandomain.Service
	evaluator *entitlement.Evaluator
	clock     clock.Clock
	locker    subscriptiondomain.MutationLocker
}

func NewService(p Params) subscriptiondomain.Service {
	evaluator := p.Evaluator
	if evaluator == nil {
		evaluator = entitlement.NewDefault()
	}
	svcClock := p.Clock
	if svcClock == nil {
		svcClock = clock.NewSystemClock()
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("subscription.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		planSvc:   p.PlanSvc,
		evaluator: evaluator,
		clock:     svcClock,
		locker:    p.Locker,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}

	trialDays := 0
	if req.TrialDays != nil {
		trialDays = *req.TrialDays
		if trialDays <= 0 || trialDays > maxTrialDays {
			return nil, subscriptiondomain.ErrInvalidTrialDays
		}
	}

	now := s.clock.Now()
	sub := &subscriptiondomain.Subscription{
		ID:           s.genID.Generate(),
		OrgID:        orgID,
		Status:       subscriptiondomain.SubscriptionStatusFree,
		BillingCycle: plandomain.BillingCycleMonthly,
		Restrictions: subscriptiondomain.Restrictions{
			Modules:  []plandomain.Module{},
			Features: []plandomain.Feature{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Metadata != nil {
		sub.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if req.PlanID != nil && strings.TrimSpace(*req.PlanID) != "" {
		plan, err := s.loadPlan(ctx, *req.PlanID)
		if err != nil {
			return nil, err
		}
		if err := s.bindPlan(sub, plan, req.BillingCycle, req.Beds, req.Branches, now); err != nil {
			return nil, err
		}
	}

	if trialDays > 0 {
		trialEnd := now.AddDate(0, 0, trialDays)
		sub.Status = subscriptiondomain.SubscriptionStatusTrial
		sub.BillingCycle = plandomain.BillingCycleTrial
		sub.IsTrialActive = true
		sub.TrialEndDate = &trialEnd
		sub.EndDate = &trialEnd
	}

	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("org_id", orgID.String()),
		zap.String("status", string(sub.Status)),
		zap.String("billing_cycle", string(sub.BillingCycle)),
	)
	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	subID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, subID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, subscriptiondomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context) ([]subscriptiondomain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, orgID)
}

// UpdateUsage overwrites the counters. Exceeding the cap is reported by the
// evaluator, not rejected here.
func (s *Service) UpdateUsage(ctx context.Context, req subscriptiondomain.UpdateUsageRequest) (*subscriptiondomain.Subscription, error) {
	if req.BedsUsed != nil && *req.BedsUsed < 0 {
		return nil, subscriptiondomain.ErrInvalidUsage
	}
	if req.BranchesUsed != nil && *req.BranchesUsed < 0 {
		return nil, subscriptiondomain.ErrInvalidUsage
	}
	return s.mutate(ctx, req.SubscriptionID, func(sub *subscriptiondomain.Subscription) error {
		if req.BedsUsed != nil {
			sub.Usage.BedsUsed = *req.BedsUsed
		}
		if req.BranchesUsed != nil {
			sub.Usage.BranchesUsed = *req.BranchesUsed
		}
		return nil
	})
}

func (s *Service) AddBeds(ctx context.Context, id string, additional int) (*subscriptiondomain.Subscription, error) {
	if additional <= 0 {
		return nil, subscriptiondomain.ErrInvalidQuantity
	}
	return s.mutate(ctx, id, func(sub *subscriptiondomain.Subscription) error {
		if !s.evaluator.CanAddBeds(sub.Usage.BedsUsed, additional, sub) {
			return subscriptiondomain.ErrBedLimitReached
		}
		sub.Usage.BedsUsed += additional
		return nil
	})
}

func (s *Service) AddBranches(ctx context.Context, id string, additional int) (*subscriptiondomain.Subscription, error) {
	if additional <= 0 {
		return nil, subscriptiondomain.ErrInvalidQuantity
	}
	return s.mutate(ctx, id, func(sub *subscriptiondomain.Subscription) error {
		if !s.evaluator.CanAddBranches(sub.Usage.BranchesUsed, additional, sub) {
			return subscriptiondomain.ErrBranchLimitReached
		}
		sub.Usage.BranchesUsed += additional
		return nil
	})
}

// ChangePlan re-snapshots the plan and re-derives restrictions. Usage is kept and
// any running trial ends.
func (s *Service) ChangePlan(ctx context.Context, req subscriptiondomain.ChangePlanRequest) (*subscriptiondomain.Subscription, error) {
	plan, err := s.loadPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	var previous *snowflake.ID
	updated, err := s.mutate(ctx, req.SubscriptionID, func(sub *subscriptiondomain.Subscription) error {
		previous = sub.PlanID
		if err := s.bindPlan(sub, plan, req.BillingCycle, req.Beds, req.Branches, s.clock.Now()); err != nil {
			return err
		}
		endTrial(sub)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("subscription_id", updated.ID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.Int("plan_version", updated.PlanVersion),
	}
	if previous != nil {
		fields = append(fields, zap.String("previous_plan_id", previous.String()))
	}
	s.log.Info("subscription plan changed", fields...)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (*subscriptiondomain.Subscription, error) {
	updated, err := s.mutate(ctx, id, func(sub *subscriptiondomain.Subscription) error {
		now := s.clock.Now()
		sub.Status = subscriptiondomain.SubscriptionStatusCancelled
		endTrial(sub)
		sub.EndDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription cancelled", zap.String("subscription_id", updated.ID.String()))
	return updated, nil
}

// endTrial clears both trial markers so the entitlement bypass stops. The
// billing cycle falls back to the snapshot plan's cycle, or monthly.
func endTrial(sub *subscriptiondomain.Subscription) {
	sub.IsTrialActive = false
	sub.TrialEndDate = nil
	if sub.BillingCycle != plandomain.BillingCycleTrial {
		return
	}
	sub.BillingCycle = plandomain.BillingCycleMonthly
	if sub.Plan != nil && sub.Plan.BillingCycle == plandomain.BillingCycleAnnual {
		sub.BillingCycle = plandomain.BillingCycleAnnual
	}
}

func (s *Service) mutate(ctx context.Context, id string, apply func(*subscriptiondomain.Subscription) error) (*subscriptiondomain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	subID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, subID)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *subscriptiondomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByID(ctx, tx, orgID, subID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrNotFound
		}
		if sub.Status == subscriptiondomain.SubscriptionStatusCancelled {
			return subscriptiondomain.ErrNotMutable
		}
		if err := apply(sub); err != nil {
			return err
		}
		sub.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			if db.IsCheckViolationErr(err) {
				return subscriptiondomain.ErrInvalidUsage
			}
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) lock(ctx context.Context, subID snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf(keyMutationLock, subID.String())
	token, ok, err := s.locker.TryLock(ctx, key, mutationLockTTL)
	if err != nil {
		s.log.Warn("subscription lock unavailable, continuing unlocked",
			zap.String("subscription_id", subID.String()),
			zap.Error(err),
		)
		return func() {}, nil
	}
	if !ok {
		return nil, subscriptiondomain.ErrConcurrentUpdate
	}
	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("subscription lock release failed", zap.String("subscription_id", subID.String()), zap.Error(err))
		}
	}, nil
}

func (s *Service) loadPlan(ctx context.Context, id string) (*plandomain.Plan, error) {
	plan, err := s.planSvc.Get(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, plandomain.ErrInvalidID):
			return nil, subscriptiondomain.ErrInvalidPlan
		case errors.Is(err, plandomain.ErrNotFound):
			return nil, subscriptiondomain.ErrPlanUnavailable
		}
		return nil, err
	}
	if !plan.Active {
		return nil, subscriptiondomain.ErrPlanUnavailable
	}
	return plan, nil
}

// bindPlan snapshots plan into sub so later catalog edits leave it untouched.
func (s *Service) bindPlan(
	sub *subscriptiondomain.Subscription,
	plan *plandomain.Plan,
	cycle *plandomain.BillingCycle,
	beds, branches *int,
	now time.Time,
) error {
	billingCycle := plan.BillingCycle
	if cycle != nil {
		billingCycle = *cycle
	}
	if billingCycle != plandomain.BillingCycleMonthly && billingCycle != plandomain.BillingCycleAnnual {
		return subscriptiondomain.ErrInvalidBillingCycle
	}

	restrictions, err := deriveRestrictions(plan, beds, branches)
	if err != nil {
		return err
	}

	snapshot := *plan
	snapshot.Modules = plandomain.CloneModules(plan.Modules)
	snapshot.Features = plandomain.CloneFeatures(plan.Features)

	planID := plan.ID
	sub.PlanID = &planID
	sub.Plan = &snapshot
	sub.PlanVersion = plan.Version
	sub.BillingCycle = billingCycle
	sub.Restrictions = restrictions
	sub.Status = subscriptiondomain.SubscriptionStatusActive

	periodEnd := now.AddDate(0, 1, 0)
	if billingCycle == plandomain.BillingCycleAnnual {
		periodEnd = now.AddDate(1, 0, 0)
	}
	sub.EndDate = &periodEnd
	return nil
}

// deriveRestrictions turns the purchased quantities into caps. Beds default to
// the plan allowance and may not exceed its hard maximum. Branches are fixed
// to the plan allowance unless the plan sells extra branches.
func deriveRestrictions(plan *plandomain.Plan, beds, branches *int) (subscriptiondomain.Restrictions, error) {
	maxBeds := plan.BaseBedCount
	if beds != nil {
		maxBeds = *beds
	}
	if maxBeds < 0 || (plan.MaxBedsAllowed > 0 && maxBeds > plan.MaxBedsAllowed) {
		return subscriptiondomain.Restrictions{}, subscriptiondomain.ErrInvalidQuantity
	}

	maxBranches := max(plan.BranchCount, 1)
	if branches != nil {
		if *branches < 0 {
			return subscriptiondomain.Restrictions{}, subscriptiondomain.ErrInvalidQuantity
		}
		if plan.AllowMultipleBranches {
			maxBranches = max(*branches, 1)
		}
	}

	modules := plandomain.CloneModules(plan.Modules)
	if modules == nil {
		modules = []plandomain.Module{}
	}
	features := plandomain.CloneFeatures(plan.Features)
	if features == nil {
		features = []plandomain.Feature{}
	}

	return subscriptiondomain.Restrictions{
		MaxBeds:     &maxBeds,
		MaxBranches: &maxBranches,
		Modules:     modules,
		Features:    features,
	}, nil
}

func parseID(id string) (snowflake.ID, error) {
	subID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || subID == 0 {
		return 0, subscriptiondomain.ErrInvalidSubscription
	}
	return subID, nil
}
