package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pgbilling",
		Short:         "Subscription entitlements and pricing for PG operators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newQuoteCommand(),
	)
	return root
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
