package entitlement

import "github.com/smallbiznis/pgbilling/internal/config"

// Config carries the numeric constants of entitlement evaluation.
type Config struct {
	DefaultMaxBeds       int
	DefaultMaxBranches   int
	TrialMaxBeds         int
	TrialMaxBranches     int
	ApproachingThreshold float64
}

func DefaultConfig() Config {
	return Config{
		DefaultMaxBeds:       10,
		DefaultMaxBranches:   1,
		TrialMaxBeds:         30,
		TrialMaxBranches:     10,
		ApproachingThreshold: 0.8,
	}
}

// PolicySource yields the current route policy. config.EntitlementConfigHolder satisfies it.
type PolicySource interface {
	Get() config.EntitlementPolicy
}

type staticPolicy config.EntitlementPolicy

func (p staticPolicy) Get() config.EntitlementPolicy { return config.EntitlementPolicy(p) }

// StaticPolicy wraps a fixed policy.
func StaticPolicy(policy config.EntitlementPolicy) PolicySource {
	return staticPolicy(policy)
}
