// Package domain contains persistence models for tenant subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"gorm.io/datatypes"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusFree      SubscriptionStatus = "free"
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Usage holds the mutable bed and branch counters.
type Usage struct {
	BedsUsed     int `gorm:"not null;default:0" json:"beds_used"`
	BranchesUsed int `gorm:"not null;default:0" json:"branches_used"`
}

// Restrictions is the derived view of what the tenant bought.
// A nil cap means the evaluator falls back to its default.
type Restrictions struct {
	MaxBeds     *int                 `json:"max_beds,omitempty"`
	MaxBranches *int                 `json:"max_branches,omitempty"`
	Modules     []plandomain.Module  `json:"modules"`
	Features    []plandomain.Feature `json:"features"`
}

// Subscription captures a tenant's live binding to a plan.
type Subscription struct {
	ID           snowflake.ID            `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID            `gorm:"not null;index" json:"org_id"`
	Status       SubscriptionStatus      `gorm:"type:text;not null" json:"status"`
	PlanID       *snowflake.ID           `gorm:"index" json:"plan_id,omitempty"`
	PlanVersion  int                     `gorm:"not null;default:0" json:"plan_version"`
	Plan         *plandomain.Plan        `gorm:"column:plan_snapshot;type:jsonb;serializer:json" json:"plan,omitempty"`
	BillingCycle plandomain.BillingCycle `gorm:"type:text;not null" json:"billing_cycle"`
	Usage        Usage                   `gorm:"embedded;embeddedPrefix:usage_" json:"usage"`
	Restrictions Restrictions            `gorm:"type:jsonb;serializer:json" json:"restrictions"`

	IsTrialActive bool       `gorm:"not null;default:false" json:"is_trial_active"`
	TrialEndDate  *time.Time `json:"trial_end_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
