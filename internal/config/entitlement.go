package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	RouteDefaultAllow = "allow"
	RouteDefaultDeny  = "deny"
)

// RoutePolicy gates URL paths containing any of Patterns.
type RoutePolicy struct {
	Patterns                []string `mapstructure:"patterns"`
	Module                  string   `mapstructure:"module"`
	RequireMultipleBranches bool     `mapstructure:"requireMultipleBranches"`
	Public                  bool     `mapstructure:"public"`
}

// EntitlementPolicy is the operator-tunable part of entitlement evaluation.
type EntitlementPolicy struct {
	UnmatchedRoutes string        `mapstructure:"unmatchedRoutes"`
	Routes          []RoutePolicy `mapstructure:"routes"`
}

func DefaultEntitlementPolicy() EntitlementPolicy {
	return EntitlementPolicy{
		UnmatchedRoutes: RouteDefaultAllow,
		Routes: []RoutePolicy{
			{Patterns: []string{"/residents", "/onboarding", "/offboarding", "/moved-out"}, Module: "resident_management"},
			{Patterns: []string{"/payments"}, Module: "payment_tracking"},
			{Patterns: []string{"/tickets"}, Module: "ticket_system"},
			{Patterns: []string{"/reports"}, Module: "analytics_reports"},
			{Patterns: []string{"/qr-management"}, Module: "qr_code_payments"},
			{Patterns: []string{"/branch-activities"}, RequireMultipleBranches: true},
			{Patterns: []string{"/dashboard", "/settings", "/pg-management"}, Public: true},
		},
	}
}

type EntitlementConfigHolder struct {
	current atomic.Value // holds EntitlementPolicy
}

// NewStaticEntitlementConfigHolder returns a holder that never reloads.
func NewStaticEntitlementConfigHolder(policy EntitlementPolicy) *EntitlementConfigHolder {
	holder := &EntitlementConfigHolder{}
	holder.current.Store(policy)
	return holder
}

func NewEntitlementConfigHolder() (*EntitlementConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("entitlement")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/pgbilling")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PGBILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEntitlementPolicy()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return NewStaticEntitlementConfigHolder(defaults), nil
	}

	policy, err := decodeEntitlementPolicy(v, defaults)
	if err != nil {
		return nil, err
	}

	holder := NewStaticEntitlementConfigHolder(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeEntitlementPolicy(v, defaults)
		if err != nil {
			log.Printf("[entitlement-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[entitlement-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *EntitlementConfigHolder) Get() EntitlementPolicy {
	return h.current.Load().(EntitlementPolicy)
}

func decodeEntitlementPolicy(v *viper.Viper, defaults EntitlementPolicy) (EntitlementPolicy, error) {
	var policy EntitlementPolicy
	if err := v.UnmarshalKey("entitlement", &policy); err != nil {
		return EntitlementPolicy{}, err
	}
	if len(policy.Routes) == 0 {
		policy.Routes = defaults.Routes
	}
	if strings.TrimSpace(policy.UnmatchedRoutes) == "" {
		policy.UnmatchedRoutes = defaults.UnmatchedRoutes
	}
	if err := ValidateEntitlementPolicy(policy); err != nil {
		return EntitlementPolicy{}, err
	}
	return policy, nil
}

func ValidateEntitlementPolicy(policy EntitlementPolicy) error {
	switch strings.ToLower(strings.TrimSpace(policy.UnmatchedRoutes)) {
	case RouteDefaultAllow, RouteDefaultDeny:
	default:
		return fmt.Errorf("entitlement.unmatchedRoutes must be %q or %q", RouteDefaultAllow, RouteDefaultDeny)
	}
	for i, route := range policy.Routes {
		if len(route.Patterns) == 0 {
			return fmt.Errorf("entitlement.routes[%d] has no patterns", i)
		}
		if !route.Public && !route.RequireMultipleBranches && strings.TrimSpace(route.Module) == "" {
			return errors.New("entitlement route must name a module, require multiple branches, or be public")
		}
	}
	return nil
}
