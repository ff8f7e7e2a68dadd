package cost

import (
	"time"

	"github.com/yairfalse/rikasta/types"
)

// CostEstimate is the heuristic monthly cost of one resource.
type CostEstimate struct {
	ResourceID   string             `json:"resource_id"`
	Service      string             `json:"service"`
	Type         string             `json:"type"`
	Region       string             `json:"region,omitempty"`
	MonthlyCost  float64            `json:"monthly_cost"`
	Breakdown    map[string]float64 `json:"breakdown,omitempty"`
	PricingModel string             `json:"pricing_model"`
	Confidence   types.Confidence   `json:"confidence"`
}

// Datapoint is one observation of an activity metric.
type Datapoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ForgottenResourceAnalysis flags a resource whose activity has been
// below threshold for longer than the inactivity window.
type ForgottenResourceAnalysis struct {
	ResourceID        string                 `json:"resource_id"`
	Service           string                 `json:"service"`
	DaysSinceActivity int                    `json:"days_since_activity"`
	MonthlyCost       float64                `json:"monthly_cost"`
	Indicators        map[string][]Datapoint `json:"indicators,omitempty"`
	RiskLevel         types.RiskLevel        `json:"risk_level"`
	Recommendations   []string               `json:"recommendations"`
}

// TrendDirection of a service's month-over-month cost
type TrendDirection string

const (
	TrendStable     TrendDirection = "stable"
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
)

// CostTrendAnalysis compares a resource's share of its service's two
// most recent monthly totals. The per-resource figure distributes the
// service total evenly, an approximation rather than a true breakdown.
type CostTrendAnalysis struct {
	ResourceID    string         `json:"resource_id"`
	Service       string         `json:"service"`
	PreviousMonth float64        `json:"previous_month"`
	CurrentMonth  float64        `json:"current_month"`
	ChangePercent float64        `json:"change_percent"`
	Direction     TrendDirection `json:"direction"`
	Alert         bool           `json:"alert"`
}

// RecommendationType classifies a cost optimization recommendation
type RecommendationType string

const (
	RecommendRightsizing         RecommendationType = "rightsizing"
	RecommendTermination         RecommendationType = "termination"
	RecommendStorageOptimization RecommendationType = "storage_optimization"
	RecommendUtilizationReview   RecommendationType = "utilization_review"
	RecommendReview              RecommendationType = "review"
)

// CostOptimizationRecommendation is one actionable saving opportunity.
// Savings figures are illustrative heuristics, not guarantees.
type CostOptimizationRecommendation struct {
	ResourceID           string             `json:"resource_id"`
	Type                 RecommendationType `json:"type"`
	CurrentMonthlyCost   float64            `json:"current_monthly_cost"`
	PotentialMonthlyCost float64            `json:"potential_monthly_cost"`
	Confidence           types.Confidence   `json:"confidence"`
	Effort               string             `json:"effort"`
	Description          string             `json:"description"`
	ActionItems          []string           `json:"action_items"`
}

// Summary aggregates cost analysis over the whole resource set.
type Summary struct {
	TotalMonthlyCost   float64                          `json:"total_monthly_cost"`
	CostByService      map[string]float64               `json:"cost_by_service"`
	ExpensiveResources []CostEstimate                   `json:"expensive_resources"`
	ForgottenResources []ForgottenResourceAnalysis      `json:"forgotten_resources"`
	TrendAlerts        []CostTrendAnalysis              `json:"trend_alerts"`
	Recommendations    []CostOptimizationRecommendation `json:"recommendations"`
	PotentialSavings   float64                          `json:"potential_savings"`
}
