// Package format renders engine amounts for display. Rounding happens only here.
package format

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pgbilling/internal/pricing/domain"
)

const displayPlaces = 2

// Amount rounds half away from zero to two places.
func Amount(v float64) string {
	return decimal.NewFromFloat(v).Round(displayPlaces).StringFixed(displayPlaces)
}

// Breakdown is the display view of domain.Breakdown.
type Breakdown struct {
	BasePrice         string `json:"base_price"`
	ExtraBedCost      string `json:"extra_bed_cost"`
	BranchCost        string `json:"branch_cost"`
	Subtotal          string `json:"subtotal"`
	AnnualDiscount    string `json:"annual_discount"`
	TaxAmount         string `json:"tax_amount"`
	SetupFee          string `json:"setup_fee"`
	TotalPrice        string `json:"total_price"`
	MonthlyEquivalent string `json:"monthly_equivalent"`
	Savings           string `json:"savings"`
}

func FromBreakdown(b domain.Breakdown) Breakdown {
	return Breakdown{
		BasePrice:         Amount(b.BasePrice),
		ExtraBedCost:      Amount(b.ExtraBedCost),
		BranchCost:        Amount(b.BranchCost),
		Subtotal:          Amount(b.Subtotal),
		AnnualDiscount:    Amount(b.AnnualDiscount),
		TaxAmount:         Amount(b.TaxAmount),
		SetupFee:          Amount(b.SetupFee),
		TotalPrice:        Amount(b.TotalPrice),
		MonthlyEquivalent: Amount(b.MonthlyEquivalent),
		Savings:           Amount(b.Savings),
	}
}
