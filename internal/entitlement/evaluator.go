// Package entitlement answers capability questions against a subscription snapshot.
//
// Every operation is total. A nil subscription is treated as absent and
// degrades to deny, except for the configurable unmatched-route default.
// A subscription in trial short-circuits every module, permission and
// route check to allow.
package entitlement

import (
	"github.com/smallbiznis/pgbilling/internal/config"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
)

type Evaluator struct {
	cfg      Config
	policies PolicySource
}

// New builds an evaluator. A nil policy source falls back to the built-in route table.
func New(cfg Config, policies PolicySource) *Evaluator {
	if policies == nil {
		policies = StaticPolicy(config.DefaultEntitlementPolicy())
	}
	return &Evaluator{cfg: cfg, policies: policies}
}

// NewDefault returns an evaluator with default constants and routes.
func NewDefault() *Evaluator {
	return New(DefaultConfig(), nil)
}

func (e *Evaluator) Config() Config { return e.cfg }

// IsTrial reports whether the trial bypass applies.
func (e *Evaluator) IsTrial(sub *subscriptiondomain.Subscription) bool {
	if sub == nil {
		return false
	}
	return sub.BillingCycle == plandomain.BillingCycleTrial || sub.IsTrialActive
}

func (e *Evaluator) IsSubscribed(sub *subscriptiondomain.Subscription) bool {
	if sub == nil {
		return false
	}
	return sub.Status == subscriptiondomain.SubscriptionStatusActive ||
		sub.Status == subscriptiondomain.SubscriptionStatusTrial
}

func (e *Evaluator) IsFreePlan(sub *subscriptiondomain.Subscription) bool {
	if sub == nil || sub.Status == subscriptiondomain.SubscriptionStatusFree {
		return true
	}
	return sub.PlanID == nil && sub.Plan == nil
}

func (e *Evaluator) GetMaxBeds(sub *subscriptiondomain.Subscription) int {
	if e.IsTrial(sub) {
		return e.cfg.TrialMaxBeds
	}
	if sub == nil || sub.Restrictions.MaxBeds == nil {
		return e.cfg.DefaultMaxBeds
	}
	return *sub.Restrictions.MaxBeds
}

func (e *Evaluator) GetMaxBranches(sub *subscriptiondomain.Subscription) int {
	if e.IsTrial(sub) {
		return e.cfg.TrialMaxBranches
	}
	if sub == nil || sub.Restrictions.MaxBranches == nil {
		return e.cfg.DefaultMaxBranches
	}
	return *sub.Restrictions.MaxBranches
}

// CanAddBeds does not validate sign; callers reject negative input first.
func (e *Evaluator) CanAddBeds(currentBeds, additional int, sub *subscriptiondomain.Subscription) bool {
	return currentBeds+additional <= e.GetMaxBeds(sub)
}

func (e *Evaluator) CanAddBranches(currentBranches, additional int, sub *subscriptiondomain.Subscription) bool {
	return currentBranches+additional <= e.GetMaxBranches(sub)
}

func (e *Evaluator) HasModule(moduleName string, sub *subscriptiondomain.Subscription) bool {
	if e.IsTrial(sub) {
		return true
	}
	_, ok := enabledModule(moduleName, sub)
	return ok
}

func (e *Evaluator) HasFeature(featureName string, sub *subscriptiondomain.Subscription) bool {
	if e.IsTrial(sub) {
		return true
	}
	if sub == nil {
		return false
	}
	for _, f := range sub.Restrictions.Features {
		if f.Name == featureName {
			return f.Enabled
		}
	}
	return false
}

func (e *Evaluator) HasPermission(moduleName, submoduleName string, permission Permission, sub *subscriptiondomain.Subscription) bool {
	if e.IsTrial(sub) {
		return true
	}
	m, ok := enabledModule(moduleName, sub)
	if !ok {
		return false
	}
	set, ok := m.Permissions[submoduleName]
	if !ok {
		return false
	}
	return Allows(set, permission)
}

func (e *Evaluator) CanPerformActionOnSubmodule(moduleName, submoduleName, action string, sub *subscriptiondomain.Subscription) bool {
	if e.IsTrial(sub) {
		return true
	}
	permission, ok := CanonicalPermission(action)
	if !ok {
		return false
	}
	return e.HasPermission(moduleName, submoduleName, permission, sub)
}

// GetSubmodulePermissions returns the stored set even when the module is disabled.
// In trial the set is fully granted.
func (e *Evaluator) GetSubmodulePermissions(moduleName, submoduleName string, sub *subscriptiondomain.Subscription) (plandomain.PermissionSet, bool) {
	if e.IsTrial(sub) {
		return allGranted(), true
	}
	m, ok := findModule(moduleName, sub)
	if !ok {
		return plandomain.PermissionSet{}, false
	}
	set, ok := m.Permissions[submoduleName]
	return set, ok
}

// HasRestrictedPermissions reports a module that is enabled but only partially unlocked.
func (e *Evaluator) HasRestrictedPermissions(moduleName string, sub *subscriptiondomain.Subscription) bool {
	if e.IsTrial(sub) {
		return false
	}
	m, ok := enabledModule(moduleName, sub)
	if !ok {
		return false
	}
	for _, set := range m.Permissions {
		if !set.AllGranted() {
			return true
		}
	}
	return false
}

func (e *Evaluator) GetRemainingBeds(sub *subscriptiondomain.Subscription) int {
	return max(0, e.GetMaxBeds(sub)-bedsUsed(sub))
}

func (e *Evaluator) GetRemainingBranches(sub *subscriptiondomain.Subscription) int {
	return max(0, e.GetMaxBranches(sub)-branchesUsed(sub))
}

// IsApproachingBedLimit compares bed usage against Config.ApproachingThreshold.
func (e *Evaluator) IsApproachingBedLimit(sub *subscriptiondomain.Subscription) bool {
	return e.IsApproachingBedLimitAt(sub, e.cfg.ApproachingThreshold)
}

// IsApproachingBedLimitAt reports used/max >= threshold. The threshold is
// taken as given, so 0 holds for any subscription with a positive cap.
func (e *Evaluator) IsApproachingBedLimitAt(sub *subscriptiondomain.Subscription, threshold float64) bool {
	return approaching(bedsUsed(sub), e.GetMaxBeds(sub), threshold)
}

func (e *Evaluator) IsApproachingBranchLimit(sub *subscriptiondomain.Subscription) bool {
	return e.IsApproachingBranchLimitAt(sub, e.cfg.ApproachingThreshold)
}

func (e *Evaluator) IsApproachingBranchLimitAt(sub *subscriptiondomain.Subscription, threshold float64) bool {
	return approaching(branchesUsed(sub), e.GetMaxBranches(sub), threshold)
}

func approaching(used, limit int, threshold float64) bool {
	if limit <= 0 {
		return false
	}
	return float64(used)/float64(limit) >= threshold
}

func (e *Evaluator) AllowsMultipleBranches(sub *subscriptiondomain.Subscription) bool {
	if e.IsTrial(sub) {
		return true
	}
	if sub == nil || sub.Plan == nil {
		return false
	}
	return sub.Plan.AllowMultipleBranches
}

func findModule(name string, sub *subscriptiondomain.Subscription) (plandomain.Module, bool) {
	if sub == nil {
		return plandomain.Module{}, false
	}
	for _, m := range sub.Restrictions.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return plandomain.Module{}, false
}

func enabledModule(name string, sub *subscriptiondomain.Subscription) (plandomain.Module, bool) {
	m, ok := findModule(name, sub)
	if !ok || !m.Enabled {
		return plandomain.Module{}, false
	}
	return m, true
}

func bedsUsed(sub *subscriptiondomain.Subscription) int {
	if sub == nil {
		return 0
	}
	return sub.Usage.BedsUsed
}

func branchesUsed(sub *subscriptiondomain.Subscription) int {
	if sub == nil {
		return 0
	}
	return sub.Usage.BranchesUsed
}
