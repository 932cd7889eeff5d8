// Package domain contains the plan catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingCycle is the invoicing cadence of a plan or subscription.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
	// BillingCycleTrial only ever appears on subscriptions.
	BillingCycleTrial BillingCycle = "trial"
)

// PermissionSet is the CRUD capability tuple for a submodule.
type PermissionSet struct {
	Create bool `json:"create"`
	Read   bool `json:"read"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// AllGranted reports whether no verb is withheld.
func (p PermissionSet) AllGranted() bool {
	return p.Create && p.Read && p.Update && p.Delete
}

// Module is a coarse entitlement unit. A missing submodule entry denies everything.
type Module struct {
	Name        string                   `json:"name"`
	Enabled     bool                     `json:"enabled"`
	Permissions map[string]PermissionSet `json:"permissions,omitempty"`
}

// Feature is a flat named toggle.
type Feature struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Plan is a catalog entry. Percentages are stored on a 0-100 scale.
type Plan struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Code        string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`

	BillingCycle          BillingCycle `gorm:"type:text;not null" json:"billing_cycle"`
	BasePrice             float64      `gorm:"not null;default:0" json:"base_price"`
	BaseBedCount          int          `gorm:"not null;default:0" json:"base_bed_count"`
	MaxBedsAllowed        int          `gorm:"not null;default:0" json:"max_beds_allowed"`
	TopUpPricePerBed      float64      `gorm:"not null;default:0" json:"top_up_price_per_bed"`
	BranchCount           int          `gorm:"not null" json:"branch_count"`
	CostPerBranch         float64      `gorm:"not null;default:0" json:"cost_per_branch"`
	AllowMultipleBranches bool         `gorm:"not null;default:false" json:"allow_multiple_branches"`
	AnnualDiscountPercent float64      `gorm:"not null;default:0" json:"annual_discount_percent"`
	SetupFee              float64      `gorm:"not null;default:0" json:"setup_fee"`
	IsRecommended         bool         `gorm:"not null;default:false" json:"is_recommended"`

	Modules  []Module  `gorm:"type:jsonb;serializer:json" json:"modules"`
	Features []Feature `gorm:"type:jsonb;serializer:json" json:"features"`

	Active   bool              `gorm:"not null;default:true" json:"active"`
	Version  int               `gorm:"not null;default:1" json:"version"`
	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// FindModule returns the module entry with the given name.
func (p Plan) FindModule(name string) (Module, bool) {
	for _, m := range p.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// CloneModules deep-copies modules so subscriptions never alias catalog maps.
func CloneModules(modules []Module) []Module {
	if modules == nil {
		return nil
	}
	out := make([]Module, 0, len(modules))
	for _, m := range modules {
		copied := Module{Name: m.Name, Enabled: m.Enabled}
		if m.Permissions != nil {
			copied.Permissions = make(map[string]PermissionSet, len(m.Permissions))
			for sub, perms := range m.Permissions {
				copied.Permissions[sub] = perms
			}
		}
		out = append(out, copied)
	}
	return out
}

// CloneFeatures copies the feature list.
func CloneFeatures(features []Feature) []Feature {
	if features == nil {
		return nil
	}
	return append([]Feature(nil), features...)
}
