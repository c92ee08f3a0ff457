package models

// RiskBand is a qualitative label for an average hazard value
type RiskBand string

const (
	BandLow    RiskBand = "low"
	BandMedium RiskBand = "medium"
	BandHigh   RiskBand = "high"
)

// Band thresholds. Low is strictly below LowerBandLimit, high strictly above UpperBandLimit.
const (
	LowerBandLimit = 0.33
	UpperBandLimit = 0.67
)

// BandFor classifies a hazard value in [0,1]
func BandFor(risk float64) RiskBand {
	switch {
	case risk < LowerBandLimit:
		return BandLow
	case risk > UpperBandLimit:
		return BandHigh
	default:
		return BandMedium
	}
}
