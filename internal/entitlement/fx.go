package entitlement

import (
	"github.com/smallbiznis/pgbilling/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement",
	fx.Provide(func(holder *config.EntitlementConfigHolder) *Evaluator {
		return New(DefaultConfig(), holder)
	}),
)
