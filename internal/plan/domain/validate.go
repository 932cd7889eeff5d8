package domain

import "strings"

// Validate checks the numeric and structural constraints of a plan.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidName
	}
	switch p.BillingCycle {
	case BillingCycleMonthly, BillingCycleAnnual:
	default:
		return ErrInvalidBillingCycle
	}
	if p.BasePrice < 0 || p.TopUpPricePerBed < 0 || p.CostPerBranch < 0 || p.SetupFee < 0 {
		return ErrInvalidPrice
	}
	if p.BaseBedCount < 0 || p.BranchCount < 0 || p.MaxBedsAllowed < 0 {
		return ErrInvalidCount
	}
	if p.MaxBedsAllowed > 0 && p.MaxBedsAllowed < p.BaseBedCount {
		return ErrInvalidCount
	}
	if p.AnnualDiscountPercent < 0 || p.AnnualDiscountPercent > 100 {
		return ErrInvalidDiscount
	}
	seen := make(map[string]struct{}, len(p.Modules))
	for _, m := range p.Modules {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return ErrInvalidModule
		}
		if _, dup := seen[name]; dup {
			return ErrDuplicateModule
		}
		seen[name] = struct{}{}
	}
	return nil
}
