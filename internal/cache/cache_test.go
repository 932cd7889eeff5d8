package cache

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestMemoryPlanCacheDoesNotAliasModules(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryPlanCache(time.Minute)
	plan := &plandomain.Plan{
		ID:   snowflake.ID(42),
		Name: "Starter",
		Modules: []plandomain.Module{{
			Name:    "resident_management",
			Enabled: true,
			Permissions: map[string]plandomain.PermissionSet{
				"residents": {Create: true, Read: true},
			},
		}},
	}
	c.SetPlan(ctx, plan)
	plan.Modules[0].Permissions["residents"] = plandomain.PermissionSet{}

	got, ok := c.GetPlan(ctx, snowflake.ID(42))
	require.True(t, ok)
	assert.True(t, got.Modules[0].Permissions["residents"].Create)

	c.InvalidatePlan(ctx, snowflake.ID(42))
	_, ok = c.GetPlan(ctx, snowflake.ID(42))
	assert.False(t, ok)
}

func TestMemoryPlanCacheIgnoresUnsavedPlans(t *testing.T) {
	c := NewMemoryPlanCache(0)
	c.SetPlan(context.Background(), &plandomain.Plan{Name: "draft"})
	c.SetPlan(context.Background(), nil)
	_, ok := c.GetPlan(context.Background(), 0)
	assert.False(t, ok)
}
