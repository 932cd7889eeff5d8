package entitlement

import (
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
)

type ModuleSummary struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Restricted bool   `json:"restricted"`
}

// Summary aggregates the signals rendered by usage indicators.
type Summary struct {
	IsSubscribed           bool            `json:"is_subscribed"`
	IsFreePlan             bool            `json:"is_free_plan"`
	IsTrial                bool            `json:"is_trial"`
	MaxBeds                int             `json:"max_beds"`
	MaxBranches            int             `json:"max_branches"`
	BedsUsed               int             `json:"beds_used"`
	BranchesUsed           int             `json:"branches_used"`
	RemainingBeds          int             `json:"remaining_beds"`
	RemainingBranches      int             `json:"remaining_branches"`
	BedUsagePercent        float64         `json:"bed_usage_percent"`
	BranchUsagePercent     float64         `json:"branch_usage_percent"`
	ApproachingBedLimit    bool            `json:"approaching_bed_limit"`
	ApproachingBranchLimit bool            `json:"approaching_branch_limit"`
	AllowsMultipleBranches bool            `json:"allows_multiple_branches"`
	Modules                []ModuleSummary `json:"modules"`
}

func (e *Evaluator) Summary(sub *subscriptiondomain.Subscription) Summary {
	s := Summary{
		IsSubscribed:           e.IsSubscribed(sub),
		IsFreePlan:             e.IsFreePlan(sub),
		IsTrial:                e.IsTrial(sub),
		MaxBeds:                e.GetMaxBeds(sub),
		MaxBranches:            e.GetMaxBranches(sub),
		BedsUsed:               bedsUsed(sub),
		BranchesUsed:           branchesUsed(sub),
		RemainingBeds:          e.GetRemainingBeds(sub),
		RemainingBranches:      e.GetRemainingBranches(sub),
		ApproachingBedLimit:    e.IsApproachingBedLimit(sub),
		ApproachingBranchLimit: e.IsApproachingBranchLimit(sub),
		AllowsMultipleBranches: e.AllowsMultipleBranches(sub),
		Modules:                []ModuleSummary{},
	}
	s.BedUsagePercent = usagePercent(s.BedsUsed, s.MaxBeds)
	s.BranchUsagePercent = usagePercent(s.BranchesUsed, s.MaxBranches)

	if sub != nil {
		for _, m := range sub.Restrictions.Modules {
			s.Modules = append(s.Modules, ModuleSummary{
				Name:       m.Name,
				Enabled:    e.HasModule(m.Name, sub),
				Restricted: e.HasRestrictedPermissions(m.Name, sub),
			})
		}
	}
	return s
}

func usagePercent(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit) * 100
}
