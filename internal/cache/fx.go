package cache

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pgbilling/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewPlanCache),
)

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.Cache.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func NewPlanCache(cfg config.Config, client *redis.Client, log *zap.Logger) PlanCache {
	ttl := time.Duration(cfg.Cache.PlanTTLSeconds) * time.Second
	if client == nil {
		return NewMemoryPlanCache(ttl)
	}
	return NewRedisPlanCache(client, ttl, log)
}
