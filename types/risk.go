package types

// RiskLevel grades a finding's severity
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskOrder = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether l is at least as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return riskOrder[l] >= riskOrder[other]
}

// MaxRiskLevel returns the most severe of the given levels, defaulting
// to low for an empty list.
func MaxRiskLevel(levels ...RiskLevel) RiskLevel {
	max := RiskLow
	for _, l := range levels {
		if riskOrder[l] > riskOrder[max] {
			max = l
		}
	}
	return max
}

// Confidence grades how well a heuristic result is supported
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)
