package entitlement

import (
	"strings"

	"github.com/smallbiznis/pgbilling/internal/config"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
)

// RouteDecision explains how CanAccessRoute reached its answer.
type RouteDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Module  string `json:"module,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

const (
	RouteReasonTrial     = "trial"
	RouteReasonModule    = "module"
	RouteReasonBranches  = "multiple_branches"
	RouteReasonPublic    = "public"
	RouteReasonUnmatched = "unmatched"
)

func (e *Evaluator) CanAccessRoute(routePath string, sub *subscriptiondomain.Subscription) bool {
	return e.ExplainRoute(routePath, sub).Allowed
}

// ExplainRoute matches gated rules by substring first, then public rules,
// then applies the unmatched-route policy.
func (e *Evaluator) ExplainRoute(routePath string, sub *subscriptiondomain.Subscription) RouteDecision {
	if e.IsTrial(sub) {
		return RouteDecision{Allowed: true, Reason: RouteReasonTrial}
	}

	policy := e.policies.Get()
	for _, rule := range policy.Routes {
		if rule.Public {
			continue
		}
		pattern, ok := matchPattern(routePath, rule.Patterns)
		if !ok {
			continue
		}
		if rule.RequireMultipleBranches {
			return RouteDecision{
				Allowed: e.AllowsMultipleBranches(sub),
				Reason:  RouteReasonBranches,
				Pattern: pattern,
			}
		}
		return RouteDecision{
			Allowed: e.HasModule(rule.Module, sub),
			Reason:  RouteReasonModule,
			Module:  rule.Module,
			Pattern: pattern,
		}
	}

	for _, rule := range policy.Routes {
		if !rule.Public {
			continue
		}
		if pattern, ok := matchPattern(routePath, rule.Patterns); ok {
			return RouteDecision{Allowed: true, Reason: RouteReasonPublic, Pattern: pattern}
		}
	}

	return RouteDecision{
		Allowed: !strings.EqualFold(strings.TrimSpace(policy.UnmatchedRoutes), config.RouteDefaultDeny),
		Reason:  RouteReasonUnmatched,
	}
}

func matchPattern(routePath string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if p != "" && strings.Contains(routePath, p) {
			return p, true
		}
	}
	return "", false
}
