package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"gorm.io/gorm"
)

func fullAccess() plandomain.PermissionSet {
	return plandomain.PermissionSet{Create: true, Read: true, Update: true, Delete: true}
}

func readOnly() plandomain.PermissionSet {
	return plandomain.PermissionSet{Read: true}
}

// DefaultPlans is the starter catalog installed on an empty database.
func DefaultPlans() []plandomain.Plan {
	return []plandomain.Plan{
		{
			Code:                  "basic",
			Name:                  "Basic",
			BillingCycle:          plandomain.BillingCycleMonthly,
			BasePrice:             999,
			BaseBedCount:          10,
			MaxBedsAllowed:        30,
			TopUpPricePerBed:      50,
			BranchCount:           1,
			AnnualDiscountPercent: 10,
			Modules: []plandomain.Module{
				{Name: "resident_management", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"residents":   fullAccess(),
					"onboarding":  fullAccess(),
					"offboarding": readOnly(),
				}},
				{Name: "payment_tracking", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"payments": {Create: true, Read: true},
				}},
				{Name: "ticket_system", Enabled: false},
			},
			Features: []plandomain.Feature{
				{Name: "email_notifications", Enabled: true},
			},
		},
		{
			Code:                  "standard",
			Name:                  "Standard",
			BillingCycle:          plandomain.BillingCycleMonthly,
			BasePrice:             2499,
			BaseBedCount:          30,
			MaxBedsAllowed:        100,
			TopUpPricePerBed:      40,
			BranchCount:           2,
			CostPerBranch:         500,
			AllowMultipleBranches: true,
			AnnualDiscountPercent: 15,
			IsRecommended:         true,
			Modules: []plandomain.Module{
				{Name: "resident_management", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"residents":   fullAccess(),
					"onboarding":  fullAccess(),
					"offboarding": fullAccess(),
				}},
				{Name: "payment_tracking", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"payments": fullAccess(),
				}},
				{Name: "ticket_system", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"tickets": fullAccess(),
				}},
				{Name: "analytics_reports", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"reports": readOnly(),
				}},
			},
			Features: []plandomain.Feature{
				{Name: "email_notifications", Enabled: true},
				{Name: "sms_notifications", Enabled: true},
			},
		},
		{
			Code:                  "premium",
			Name:                  "Premium",
			BillingCycle:          plandomain.BillingCycleAnnual,
			BasePrice:             4999,
			BaseBedCount:          60,
			TopUpPricePerBed:      30,
			BranchCount:           5,
			CostPerBranch:         400,
			AllowMultipleBranches: true,
			AnnualDiscountPercent: 20,
			SetupFee:              2000,
			Modules: []plandomain.Module{
				{Name: "resident_management", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"residents":   fullAccess(),
					"onboarding":  fullAccess(),
					"offboarding": fullAccess(),
				}},
				{Name: "payment_tracking", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"payments": fullAccess(),
				}},
				{Name: "ticket_system", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"tickets": fullAccess(),
				}},
				{Name: "analytics_reports", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"reports": fullAccess(),
				}},
				{Name: "qr_code_payments", Enabled: true, Permissions: map[string]plandomain.PermissionSet{
					"qr-management": fullAccess(),
				}},
			},
			Features: []plandomain.Feature{
				{Name: "email_notifications", Enabled: true},
				{Name: "sms_notifications", Enabled: true},
				{Name: "priority_support", Enabled: true},
			},
		},
	}
}

// EnsureDefaultPlans inserts every default plan whose code is not present yet
// and returns how many were created.
func EnsureDefaultPlans(ctx context.Context, db *gorm.DB, node *snowflake.Node) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}
	if node == nil {
		return 0, errors.New("seed id generator is required")
	}

	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, plan := range DefaultPlans() {
			var count int64
			if err := tx.Model(&plandomain.Plan{}).Where("code = ?", plan.Code).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := plan.Validate(); err != nil {
				return err
			}
			plan.ID = node.Generate()
			plan.Active = true
			plan.Version = 1
			plan.CreatedAt = now
			plan.UpdatedAt = now
			if err := tx.Create(&plan).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
