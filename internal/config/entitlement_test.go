package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEntitlementPolicyIsValid(t *testing.T) {
	policy := DefaultEntitlementPolicy()
	require.NoError(t, ValidateEntitlementPolicy(policy))
	assert.Equal(t, RouteDefaultAllow, policy.UnmatchedRoutes)
}

func TestValidateEntitlementPolicyRejectsUnknownDefault(t *testing.T) {
	policy := DefaultEntitlementPolicy()
	policy.UnmatchedRoutes = "maybe"
	assert.Error(t, ValidateEntitlementPolicy(policy))
}

func TestValidateEntitlementPolicyRejectsEmptyRule(t *testing.T) {
	policy := EntitlementPolicy{
		UnmatchedRoutes: RouteDefaultDeny,
		Routes:          []RoutePolicy{{Patterns: []string{"/tickets"}}},
	}
	assert.Error(t, ValidateEntitlementPolicy(policy))
}

func TestStaticHolderReturnsPolicy(t *testing.T) {
	policy := DefaultEntitlementPolicy()
	policy.UnmatchedRoutes = RouteDefaultDeny
	holder := NewStaticEntitlementConfigHolder(policy)
	assert.Equal(t, RouteDefaultDeny, holder.Get().UnmatchedRoutes)
}
