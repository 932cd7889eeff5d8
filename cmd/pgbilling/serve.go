package main

import (
	"github.com/smallbiznis/pgbilling/internal/authorization"
	"github.com/smallbiznis/pgbilling/internal/cache"
	"github.com/smallbiznis/pgbilling/internal/clock"
	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/smallbiznis/pgbilling/internal/entitlement"
	"github.com/smallbiznis/pgbilling/internal/migration"
	"github.com/smallbiznis/pgbilling/internal/observability"
	"github.com/smallbiznis/pgbilling/internal/plan"
	"github.com/smallbiznis/pgbilling/internal/pricing"
	"github.com/smallbiznis/pgbilling/internal/ratelimit"
	"github.com/smallbiznis/pgbilling/internal/server"
	"github.com/smallbiznis/pgbilling/internal/subscription"
	"github.com/smallbiznis/pgbilling/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				// Core Infrastructure
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				clock.Module,
				cache.Module,
				ratelimit.Module,
				migration.Module,

				// Domains
				entitlement.Module,
				authorization.Module,
				plan.Module,
				subscription.Module,
				pricing.Module,

				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
}
