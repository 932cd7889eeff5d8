package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/pgbilling/internal/cache"
	"github.com/smallbiznis/pgbilling/internal/clock"
	"github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/plan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Plan{}))
	return db
}

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    setupTestDB(t),
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Cache: cache.NewMemoryPlanCache(time.Minute),
		Clock: fake,
	})
	return svc, fake
}

func starterRequest() domain.CreateRequest {
	return domain.CreateRequest{
		Name:             "Starter Monthly",
		BillingCycle:     domain.BillingCycleMonthly,
		BasePrice:        1000,
		BaseBedCount:     10,
		MaxBedsAllowed:   50,
		TopUpPricePerBed: 50,
		CostPerBranch:    500,
		Modules: []domain.Module{{
			Name:    " resident_management ",
			Enabled: true,
			Permissions: map[string]domain.PermissionSet{
				"residents": {Create: true, Read: true, Update: true},
			},
		}},
		Features: []domain.Feature{{Name: "sms_alerts", Enabled: true}},
	}
}

func TestCreatePlan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, starterRequest())
	require.NoError(t, err)
	assert.Equal(t, "starter-monthly", plan.Code)
	assert.Equal(t, 1, plan.Version)
	assert.Equal(t, 1, plan.BranchCount)
	assert.True(t, plan.Active)
	require.Len(t, plan.Modules, 1)
	assert.Equal(t, "resident_management", plan.Modules[0].Name)

	got, err := svc.Get(ctx, plan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, plan.Code, got.Code)
	assert.True(t, got.Modules[0].Permissions["residents"].Update)
	assert.False(t, got.Modules[0].Permissions["residents"].Delete)
}

func TestCreatePlanRejectsDuplicateCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, starterRequest())
	require.NoError(t, err)
	_, err = svc.Create(ctx, starterRequest())
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestCreatePlanValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*domain.CreateRequest)
		want   error
	}{
		"missing name":       {func(r *domain.CreateRequest) { r.Name = " " }, domain.ErrInvalidName},
		"trial cycle":        {func(r *domain.CreateRequest) { r.BillingCycle = domain.BillingCycleTrial }, domain.ErrInvalidBillingCycle},
		"negative price":     {func(r *domain.CreateRequest) { r.BasePrice = -1 }, domain.ErrInvalidPrice},
		"discount above 100": {func(r *domain.CreateRequest) { r.AnnualDiscountPercent = 101 }, domain.ErrInvalidDiscount},
		"cap below base":     {func(r *domain.CreateRequest) { r.MaxBedsAllowed = 5 }, domain.ErrInvalidCount},
		"duplicate module": {func(r *domain.CreateRequest) {
			r.Modules = append(r.Modules, domain.Module{Name: "resident_management"})
		}, domain.ErrDuplicateModule},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := starterRequest()
			tc.mutate(&req)
			_, err := svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdatePlanIncrementsVersion(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, starterRequest())
	require.NoError(t, err)
	_, err = svc.Get(ctx, plan.ID.String())
	require.NoError(t, err)

	fake.Advance(time.Hour)
	price := 1200.0
	updated, err := svc.Update(ctx, domain.UpdateRequest{ID: plan.ID.String(), BasePrice: &price})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 1200.0, updated.BasePrice)
	assert.True(t, updated.UpdatedAt.After(plan.CreatedAt))

	got, err := svc.Get(ctx, plan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1200.0, got.BasePrice, "cache must be invalidated after update")
}

func TestArchivePlan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, starterRequest())
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, plan.ID.String())
	require.NoError(t, err)
	assert.False(t, archived.Active)

	active := true
	items, err := svc.List(ctx, domain.ListRequest{Active: &active})
	require.NoError(t, err)
	assert.Empty(t, items)

	name := "Renamed"
	_, err = svc.Update(ctx, domain.UpdateRequest{ID: plan.ID.String(), Name: &name})
	assert.ErrorIs(t, err, domain.ErrArchived)
}

func TestGetPlanErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Get(ctx, "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
