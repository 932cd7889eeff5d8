package main

import (
	"context"
	"time"

	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/smallbiznis/pgbilling/internal/migration"
	"github.com/smallbiznis/pgbilling/internal/observability"
	"github.com/smallbiznis/pgbilling/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and seed the default catalog, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				migration.Module,
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			return app.Stop(ctx)
		},
	}
}
