package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"go.uber.org/zap"
)

const (
	defaultPlanTTL = 5 * time.Minute
	keyPlan        = "pgbilling:plan:%d"
)

// PlanCache stores catalog lookups on the read path of pricing and subscriptions.
type PlanCache interface {
	GetPlan(ctx context.Context, id snowflake.ID) (*plandomain.Plan, bool)
	SetPlan(ctx context.Context, plan *plandomain.Plan)
	InvalidatePlan(ctx context.Context, id snowflake.ID)
}

type memoryPlanCache struct {
	plans Cache[snowflake.ID, plandomain.Plan]
	ttl   time.Duration
}

// NewMemoryPlanCache returns a process-local plan cache.
func NewMemoryPlanCache(ttl time.Duration) PlanCache {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	return &memoryPlanCache{
		plans: NewTTLCache[snowflake.ID, plandomain.Plan](),
		ttl:   ttl,
	}
}

func (c *memoryPlanCache) GetPlan(_ context.Context, id snowflake.ID) (*plandomain.Plan, bool) {
	plan, ok := c.plans.Get(id)
	if !ok {
		return nil, false
	}
	plan.Modules = plandomain.CloneModules(plan.Modules)
	plan.Features = plandomain.CloneFeatures(plan.Features)
	return &plan, true
}

func (c *memoryPlanCache) SetPlan(_ context.Context, plan *plandomain.Plan) {
	if plan == nil || plan.ID == 0 {
		return
	}
	stored := *plan
	stored.Modules = plandomain.CloneModules(plan.Modules)
	stored.Features = plandomain.CloneFeatures(plan.Features)
	c.plans.Set(plan.ID, stored, c.ttl)
}

func (c *memoryPlanCache) InvalidatePlan(_ context.Context, id snowflake.ID) {
	c.plans.Delete(id)
}

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisPlanCache shares plan lookups across replicas. Redis failures degrade to misses.
func NewRedisPlanCache(client *redis.Client, ttl time.Duration, log *zap.Logger) PlanCache {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &redisPlanCache{client: client, ttl: ttl, log: log.Named("cache.plan")}
}

func (c *redisPlanCache) GetPlan(ctx context.Context, id snowflake.ID) (*plandomain.Plan, bool) {
	raw, err := c.client.Get(ctx, fmt.Sprintf(keyPlan, id.Int64())).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("plan cache get failed", zap.String("plan_id", id.String()), zap.Error(err))
		}
		return nil, false
	}
	var plan plandomain.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		c.log.Warn("plan cache decode failed", zap.String("plan_id", id.String()), zap.Error(err))
		return nil, false
	}
	return &plan, true
}

func (c *redisPlanCache) SetPlan(ctx context.Context, plan *plandomain.Plan) {
	if plan == nil || plan.ID == 0 {
		return
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, fmt.Sprintf(keyPlan, plan.ID.Int64()), raw, c.ttl).Err(); err != nil {
		c.log.Warn("plan cache set failed", zap.String("plan_id", plan.ID.String()), zap.Error(err))
	}
}

func (c *redisPlanCache) InvalidatePlan(ctx context.Context, id snowflake.ID) {
	if err := c.client.Del(ctx, fmt.Sprintf(keyPlan, id.Int64())).Err(); err != nil {
		c.log.Warn("plan cache invalidate failed", zap.String("plan_id", id.String()), zap.Error(err))
	}
}
