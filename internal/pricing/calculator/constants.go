package calculator

const (
	// TaxRatePercent is the flat GST applied to every subtotal.
	TaxRatePercent = 18.0

	TierStandardFrom     = 1000.0
	TierProfessionalFrom = 2500.0
	TierEnterpriseFrom   = 5000.0

	monthsPerYear = 12

	// A plan fits usage between 70% of its base beds and 80% of its top-up headroom.
	recommendedFloorRatio    = 0.7
	recommendedHeadroomRatio = 0.8

	breakEvenEpsilon = 1e-9
)

// ProjectionGrowthFactors are the bed growth scenarios reported by GetScalingProjections.
var ProjectionGrowthFactors = []float64{1.25, 1.5, 2.0}
