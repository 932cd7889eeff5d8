package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleAdmin  = "admin"
	RoleSales  = "sales"
	RoleOwner  = "owner"
	RoleMember = "member"
)

const (
	ObjectPlan         = "plan"
	ObjectSubscription = "subscription"
	ObjectEntitlement  = "entitlement"
	ObjectPricing      = "pricing"
)

const (
	ActionPlanView    = "plan.view"
	ActionPlanCreate  = "plan.create"
	ActionPlanUpdate  = "plan.update"
	ActionPlanArchive = "plan.archive"

	ActionSubscriptionView   = "subscription.view"
	ActionSubscriptionCreate = "subscription.create"
	ActionSubscriptionUpdate = "subscription.update"
	ActionSubscriptionCancel = "subscription.cancel"

	ActionEntitlementView = "entitlement.view"

	ActionPricingQuote = "pricing.quote"
)

// RolePolicies is the single source of role grants.
var RolePolicies = map[string][][2]string{
	RoleAdmin: {
		{ObjectPlan, ActionPlanView},
		{ObjectPlan, ActionPlanCreate},
		{ObjectPlan, ActionPlanUpdate},
		{ObjectPlan, ActionPlanArchive},
		{ObjectSubscription, ActionSubscriptionView},
		{ObjectSubscription, ActionSubscriptionCreate},
		{ObjectSubscription, ActionSubscriptionUpdate},
		{ObjectSubscription, ActionSubscriptionCancel},
		{ObjectEntitlement, ActionEntitlementView},
		{ObjectPricing, ActionPricingQuote},
	},
	RoleSales: {
		{ObjectPlan, ActionPlanView},
		{ObjectSubscription, ActionSubscriptionView},
		{ObjectSubscription, ActionSubscriptionCreate},
		{ObjectEntitlement, ActionEntitlementView},
		{ObjectPricing, ActionPricingQuote},
	},
	RoleOwner: {
		{ObjectPlan, ActionPlanView},
		{ObjectSubscription, ActionSubscriptionView},
		{ObjectSubscription, ActionSubscriptionCreate},
		{ObjectSubscription, ActionSubscriptionUpdate},
		{ObjectSubscription, ActionSubscriptionCancel},
		{ObjectEntitlement, ActionEntitlementView},
		{ObjectPricing, ActionPricingQuote},
	},
	RoleMember: {
		{ObjectPlan, ActionPlanView},
		{ObjectSubscription, ActionSubscriptionView},
		{ObjectEntitlement, ActionEntitlementView},
	},
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer persists policies through gorm. A nil db keeps them in memory only.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if db == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	} else {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	enforcer.EnableAutoBuildRoleLinks(true)

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, orgID string, object string, action string) error {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if role == "" {
		return ErrInvalidActor
	}
	if _, ok := RolePolicies[role]; !ok {
		return ErrInvalidRole
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := actorSubject(actor, role)
	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName(role), domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("org_id", orgID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role per subject and org.
func (s *ServiceImpl) ensureGrouping(subject string, role string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role, domain)
	return err
}

func actorSubject(actor Actor, role string) string {
	if id := strings.TrimSpace(actor.ID); id != "" {
		return fmt.Sprintf("user:%s", id)
	}
	return fmt.Sprintf("anonymous:%s", role)
}

func roleName(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	for role, grants := range RolePolicies {
		for _, grant := range grants {
			has, err := enforcer.HasPolicy(roleName(role), grant[0], grant[1])
			if err != nil {
				return err
			}
			if has {
				continue
			}
			if _, err := enforcer.AddPolicy(roleName(role), grant[0], grant[1]); err != nil {
				return err
			}
		}
	}
	return nil
}
