package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/smallbiznis/pgbilling/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}
		if !cfg.Bootstrap.SeedDefaultPlans {
			return nil
		}
		created, err := seed.EnsureDefaultPlans(context.Background(), conn, node)
		if err != nil {
			return err
		}
		if created > 0 {
			log.Info("seeded default plans", zap.Int("count", created))
		}
		return nil
	}),
)
