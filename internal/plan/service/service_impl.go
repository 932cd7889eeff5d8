package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/pgbilling/internal/cache"
	"github.com/smallbiznis/pgbilling/internal/clock"
	"github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Cache cache.PlanCache `optional:"true"`
	Clock clock.Clock     `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	cache cache.PlanCache
	clock clock.Clock
}

func New(p Params) domain.Service {
	svcCache := p.Cache
	if svcCache == nil {
		svcCache = cache.NewMemoryPlanCache(0)
	}
	svcClock := p.Clock
	if svcClock == nil {
		svcClock = clock.NewSystemClock()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		repo:  p.Repo,
		genID: p.GenID,
		cache: svcCache,
		clock: svcClock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = name
	}
	code = slug.Make(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	branchCount := 1
	if req.BranchCount != nil {
		branchCount = *req.BranchCount
	}

	now := s.clock.Now()
	p := &domain.Plan{
		ID:                    s.genID.Generate(),
		Code:                  code,
		Name:                  name,
		Description:           trimmedPtr(req.Description),
		BillingCycle:          req.BillingCycle,
		BasePrice:             req.BasePrice,
		BaseBedCount:          req.BaseBedCount,
		MaxBedsAllowed:        req.MaxBedsAllowed,
		TopUpPricePerBed:      req.TopUpPricePerBed,
		BranchCount:           branchCount,
		CostPerBranch:         req.CostPerBranch,
		AllowMultipleBranches: req.AllowMultipleBranches,
		AnnualDiscountPercent: req.AnnualDiscountPercent,
		SetupFee:              req.SetupFee,
		IsRecommended:         req.IsRecommended,
		Modules:               normalizeModules(req.Modules),
		Features:              domain.CloneFeatures(req.Features),
		Active:                true,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("plan created",
		zap.String("plan_id", p.ID.String()),
		zap.String("code", p.Code),
		zap.String("billing_cycle", string(p.BillingCycle)),
	)
	s.cache.SetPlan(ctx, p)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Plan, error) {
	planID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.cache.GetPlan(ctx, planID); ok {
		return cached, nil
	}

	item, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	s.cache.SetPlan(ctx, item)
	return item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Plan, error) {
	return s.repo.List(ctx, s.db, req.Active)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Plan, error) {
	planID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Plan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, planID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		if !item.Active {
			return domain.ErrArchived
		}

		applyUpdate(item, req)
		if err := item.Validate(); err != nil {
			return err
		}
		item.Version++
		item.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePlan(ctx, planID)
	s.log.Info("plan updated",
		zap.String("plan_id", updated.ID.String()),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}

// Archive hides a plan from new signups. Existing subscriptions keep their snapshot.
func (s *Service) Archive(ctx context.Context, id string) (*domain.Plan, error) {
	planID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if !item.Active {
		return item, nil
	}

	item.Active = false
	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.cache.InvalidatePlan(ctx, planID)
	s.log.Info("plan archived", zap.String("plan_id", item.ID.String()))
	return item, nil
}

func applyUpdate(item *domain.Plan, req domain.UpdateRequest) {
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		item.Description = trimmedPtr(req.Description)
	}
	if req.BillingCycle != nil {
		item.BillingCycle = *req.BillingCycle
	}
	if req.BasePrice != nil {
		item.BasePrice = *req.BasePrice
	}
	if req.BaseBedCount != nil {
		item.BaseBedCount = *req.BaseBedCount
	}
	if req.MaxBedsAllowed != nil {
		item.MaxBedsAllowed = *req.MaxBedsAllowed
	}
	if req.TopUpPricePerBed != nil {
		item.TopUpPricePerBed = *req.TopUpPricePerBed
	}
	if req.BranchCount != nil {
		item.BranchCount = *req.BranchCount
	}
	if req.CostPerBranch != nil {
		item.CostPerBranch = *req.CostPerBranch
	}
	if req.AllowMultipleBranches != nil {
		item.AllowMultipleBranches = *req.AllowMultipleBranches
	}
	if req.AnnualDiscountPercent != nil {
		item.AnnualDiscountPercent = *req.AnnualDiscountPercent
	}
	if req.SetupFee != nil {
		item.SetupFee = *req.SetupFee
	}
	if req.IsRecommended != nil {
		item.IsRecommended = *req.IsRecommended
	}
	if req.Modules != nil {
		item.Modules = normalizeModules(req.Modules)
	}
	if req.Features != nil {
		item.Features = domain.CloneFeatures(req.Features)
	}
	if req.Metadata != nil {
		item.Metadata = datatypes.JSONMap(req.Metadata)
	}
}

func normalizeModules(modules []domain.Module) []domain.Module {
	out := domain.CloneModules(modules)
	for i := range out {
		out[i].Name = strings.TrimSpace(out[i].Name)
	}
	return out
}

func parseID(id string) (snowflake.ID, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || planID == 0 {
		return 0, domain.ErrInvalidID
	}
	return planID, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
