// Package cost estimates heuristic monthly costs, flags expensive and
// forgotten resources, and produces optimization recommendations.
package cost

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yairfalse/rikasta/telemetry"
	"github.com/yairfalse/rikasta/types"
)

// defaultStorageGB is assumed when a storage resource does not declare
// its size.
const defaultStorageGB = 20.0

// wellModeledServices get high-confidence estimates; everything else is
// medium at best.
var wellModeledServices = map[string]bool{
	"EC2":      true,
	"RDS":      true,
	"S3":       true,
	"LAMBDA":   true,
	"DYNAMODB": true,
}

// requestVolumes are default monthly request-volume estimates per
// service for request-based pricing units.
var requestVolumes = map[string]float64{
	"LAMBDA":   1_000_000,
	"DYNAMODB": 500_000,
	"S3":       100_000,
}

const defaultRequestVolume = 10_000

// Config tunes the cost analyzer thresholds.
type Config struct {
	ExpensiveThreshold float64 // monthly USD at which a resource counts as expensive
	HighCostThreshold  float64 // monthly USD triggering an independent utilization review
	InactivityDays     int     // trailing window and cutoff for forgotten detection
	TrendAlertPercent  float64 // month-over-month change magnitude that raises an alert
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		ExpensiveThreshold: 100,
		HighCostThreshold:  500,
		InactivityDays:     30,
		TrendAlertPercent:  25,
	}
}

// Analyzer estimates costs and detects waste.
type Analyzer struct {
	cfg      Config
	pricing  PricingSource
	activity ActivitySource
	cache    *pricingCache
	logger   *telemetry.Logger
	now      func() time.Time
}

// NewAnalyzer creates a cost analyzer. A nil pricing source gets the
// embedded static table; a nil activity source reports no activity.
func NewAnalyzer(cfg Config, pricing PricingSource, activity ActivitySource) *Analyzer {
	if cfg.InactivityDays <= 0 {
		cfg.InactivityDays = DefaultConfig().InactivityDays
	}
	if cfg.ExpensiveThreshold <= 0 {
		cfg.ExpensiveThreshold = DefaultConfig().ExpensiveThreshold
	}
	if cfg.HighCostThreshold <= 0 {
		cfg.HighCostThreshold = DefaultConfig().HighCostThreshold
	}
	if cfg.TrendAlertPercent <= 0 {
		cfg.TrendAlertPercent = DefaultConfig().TrendAlertPercent
	}
	if pricing == nil {
		pricing = NewStaticPricingSource()
	}
	if activity == nil {
		activity = NoActivitySource{}
	}
	return &Analyzer{
		cfg:      cfg,
		pricing:  pricing,
		activity: activity,
		cache:    newPricingCache(),
		logger:   telemetry.NewLogger("cost-analyzer"),
		now:      time.Now,
	}
}

// Name identifies the analyzer in statistics and error summaries.
func (a *Analyzer) Name() string { return "cost" }

// ResetPricingCache clears the pricing cache. Intended for tests.
func (a *Analyzer) ResetPricingCache() {
	a.cache.Reset()
}

// lookupPrice serves pricing queries through the per-instance cache; a
// hit short-circuits the source.
func (a *Analyzer) lookupPrice(ctx context.Context, service, resourceType, region string) (PricingInfo, error) {
	key := pricingKey{service: service, typ: resourceType, region: region}
	if info, ok := a.cache.get(key); ok {
		return info, nil
	}

	info, err := a.pricing.Lookup(ctx, service, resourceType, region)
	if err != nil {
		return PricingInfo{}, fmt.Errorf("pricing lookup for %s/%s in %s: %w", service, resourceType, region, err)
	}

	a.cache.put(key, info)
	return info, nil
}

// Enrich attaches the cost estimate to a resource.
func (a *Analyzer) Enrich(ctx context.Context, r types.Resource) (types.Resource, error) {
	estimate, err := a.estimateResource(ctx, r)
	if err != nil {
		return r, err
	}

	r.SetExtra("estimated_monthly_cost", round2(estimate.MonthlyCost))
	r.SetExtra("cost_confidence", string(estimate.Confidence))
	r.SetExtra("pricing_model", estimate.PricingModel)
	if len(estimate.Breakdown) > 0 {
		breakdown := make(map[string]any, len(estimate.Breakdown))
		for component, amount := range estimate.Breakdown {
			breakdown[component] = round2(amount)
		}
		r.SetExtra("cost_breakdown", breakdown)
	}
	return r, nil
}

// EstimateCosts estimates each resource's monthly cost.
func (a *Analyzer) EstimateCosts(ctx context.Context, resources []types.Resource) ([]CostEstimate, error) {
	estimates := make([]CostEstimate, 0, len(resources))
	for _, r := range resources {
		estimate, err := a.estimateResource(ctx, r)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, estimate)
	}
	return estimates, nil
}

func (a *Analyzer) estimateResource(ctx context.Context, r types.Resource) (CostEstimate, error) {
	info, err := a.lookupPrice(ctx, r.Service, r.Type, r.Region)
	if err != nil {
		return CostEstimate{}, err
	}

	estimate := CostEstimate{
		ResourceID:   r.ID,
		Service:      r.Service,
		Type:         r.Type,
		Region:       r.Region,
		PricingModel: info.PricingModel,
		Breakdown:    map[string]float64{},
	}

	switch {
	case isHourlyUnit(info.Unit):
		estimate.MonthlyCost = info.PricePerUnit * hoursPerMonth
		estimate.Breakdown["compute"] = estimate.MonthlyCost
	case isStorageUnit(info.Unit):
		size := a.storageSize(r)
		estimate.MonthlyCost = info.PricePerUnit * size
		estimate.Breakdown["storage"] = estimate.MonthlyCost
	case isRequestUnit(info.Unit):
		volume, ok := requestVolumes[strings.ToUpper(r.Service)]
		if !ok {
			volume = defaultRequestVolume
		}
		estimate.MonthlyCost = info.PricePerUnit * volume
		estimate.Breakdown["requests"] = estimate.MonthlyCost
	default:
		estimate.MonthlyCost = info.PricePerUnit
		estimate.Breakdown["base"] = estimate.MonthlyCost
	}

	estimate.Confidence = a.confidence(r.Service, info)
	return estimate, nil
}

func isHourlyUnit(unit string) bool {
	switch strings.ToLower(unit) {
	case "hrs", "hours", "hour":
		return true
	}
	return false
}

func isStorageUnit(unit string) bool {
	switch strings.ToLower(unit) {
	case "gb-mo", "gb-month":
		return true
	}
	return false
}

func isRequestUnit(unit string) bool {
	return strings.ToLower(unit) == "requests"
}

// storageSize reads the declared size in GB, defaulting to 20 GB.
func (a *Analyzer) storageSize(r types.Resource) float64 {
	for _, key := range []string{"size_gb", "allocated_storage", "size"} {
		if size, ok := r.GetFloat(key); ok && size > 0 {
			return size
		}
	}
	return defaultStorageGB
}

// confidence is high for well-modeled services, medium when an
// unmodeled service still priced non-zero, low otherwise.
func (a *Analyzer) confidence(service string, info PricingInfo) types.Confidence {
	if wellModeledServices[strings.ToUpper(service)] {
		return types.ConfidenceHigh
	}
	if info.PricePerUnit > 0 {
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}

// DetectForgotten finds resources whose activity indicators have been
// below threshold for at least the configured inactivity window.
func (a *Analyzer) DetectForgotten(ctx context.Context, resources []types.Resource) ([]ForgottenResourceAnalysis, error) {
	window := time.Duration(a.cfg.InactivityDays) * 24 * time.Hour
	var forgotten []ForgottenResourceAnalysis

	for _, r := range resources {
		if r.ID == "" {
			continue
		}

		indicators, err := a.activity.Metrics(ctx, r, window)
		if err != nil {
			return nil, fmt.Errorf("activity metrics for %s: %w", r.ID, err)
		}

		days := a.daysSinceActivity(indicators)
		if days < a.cfg.InactivityDays {
			continue
		}

		estimate, err := a.estimateResource(ctx, r)
		if err != nil {
			return nil, err
		}

		analysis := ForgottenResourceAnalysis{
			ResourceID:        r.ID,
			Service:           r.Service,
			DaysSinceActivity: days,
			MonthlyCost:       round2(estimate.MonthlyCost),
			Indicators:        indicators,
			RiskLevel:         forgottenRisk(days, estimate.MonthlyCost),
		}
		analysis.Recommendations = a.forgottenRecommendations(analysis)
		forgotten = append(forgotten, analysis)
	}

	return forgotten, nil
}

// daysSinceActivity is the age in days of the most recent datapoint
// exceeding its metric's activity threshold, or the inactivity window
// plus one when none qualifies.
func (a *Analyzer) daysSinceActivity(indicators map[string][]Datapoint) int {
	days := a.cfg.InactivityDays + 1
	now := a.now()

	for metric, series := range indicators {
		for _, dp := range series {
			if !isActive(metric, dp.Value) {
				continue
			}
			age := int(now.Sub(dp.Timestamp).Hours() / 24)
			if age < days {
				days = age
			}
		}
	}
	return days
}

// forgottenRisk combines inactivity and cost into a risk grade.
func forgottenRisk(days int, monthlyCost float64) types.RiskLevel {
	if days > 90 && monthlyCost > 100 {
		return types.RiskHigh
	}
	if days > 60 || monthlyCost > 50 {
		return types.RiskMedium
	}
	return types.RiskLow
}

// forgottenRecommendations builds free-text recommendations from fixed
// templates keyed by age bracket, cost bracket, and service.
func (a *Analyzer) forgottenRecommendations(f ForgottenResourceAnalysis) []string {
	var recs []string

	switch {
	case f.DaysSinceActivity > 90:
		recs = append(recs, fmt.Sprintf("no activity for over 90 days; snapshot %s and terminate it", f.ResourceID))
	case f.DaysSinceActivity > 60:
		recs = append(recs, fmt.Sprintf("inactive for %d days; confirm with the owning team before the quarter ends", f.DaysSinceActivity))
	default:
		recs = append(recs, fmt.Sprintf("inactive for %d days; verify it is still needed", f.DaysSinceActivity))
	}

	switch {
	case f.MonthlyCost > 100:
		recs = append(recs, fmt.Sprintf("costs $%.2f monthly while idle; termination saves the full amount", f.MonthlyCost))
	case f.MonthlyCost > 50:
		recs = append(recs, fmt.Sprintf("spends $%.2f monthly for no observed use", f.MonthlyCost))
	}

	switch strings.ToUpper(f.Service) {
	case "EC2":
		recs = append(recs, "stop the instance first; terminate after a safe observation period")
	case "RDS":
		recs = append(recs, "take a final snapshot before deleting the database")
	case "S3":
		recs = append(recs, "transition objects to infrequent-access storage before removal")
	}

	return recs
}

// AnalyzeTrends compares the two most recent monthly cost totals per
// service and distributes the result across that service's resources.
func (a *Analyzer) AnalyzeTrends(ctx context.Context, resources []types.Resource) ([]CostTrendAnalysis, error) {
	totals, members := a.collectMonthlyTotals(resources)

	var trends []CostTrendAnalysis
	services := make([]string, 0, len(totals))
	for service := range totals {
		services = append(services, service)
	}
	sort.Strings(services)

	for _, service := range services {
		byMonth := totals[service]
		if len(byMonth) < 2 {
			continue
		}

		months := make([]string, 0, len(byMonth))
		for month := range byMonth {
			months = append(months, month)
		}
		sort.Strings(months)

		previous := byMonth[months[len(months)-2]]
		current := byMonth[months[len(months)-1]]
		change := changePercent(previous, current)

		direction := TrendStable
		if math.Abs(change) >= 5 {
			if change > 0 {
				direction = TrendIncreasing
			} else {
				direction = TrendDecreasing
			}
		}
		alert := math.Abs(change) > a.cfg.TrendAlertPercent

		ids := members[service]
		share := float64(len(ids))
		for _, id := range ids {
			trends = append(trends, CostTrendAnalysis{
				ResourceID:    id,
				Service:       service,
				PreviousMonth: round2(previous / share),
				CurrentMonth:  round2(current / share),
				ChangePercent: round2(change),
				Direction:     direction,
				Alert:         alert,
			})
		}
	}

	return trends, nil
}

// collectMonthlyTotals sums each service's reported monthly cost
// history and remembers which resources contribute to it.
func (a *Analyzer) collectMonthlyTotals(resources []types.Resource) (map[string]map[string]float64, map[string][]string) {
	totals := make(map[string]map[string]float64)
	members := make(map[string][]string)

	for _, r := range resources {
		history := r.GetSlice("monthly_cost_history")
		if len(history) == 0 {
			continue
		}
		members[r.Service] = append(members[r.Service], r.ID)
		if totals[r.Service] == nil {
			totals[r.Service] = make(map[string]float64)
		}
		for _, item := range history {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			month, _ := entry["month"].(string)
			if month == "" {
				continue
			}
			amount, _ := entry["cost"].(float64)
			totals[r.Service][month] += amount
		}
	}

	return totals, members
}

func changePercent(previous, current float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// Recommend builds optimization recommendations from the estimates and
// forgotten-resource findings.
func (a *Analyzer) Recommend(estimates []CostEstimate, forgotten []ForgottenResourceAnalysis) []CostOptimizationRecommendation {
	var recs []CostOptimizationRecommendation

	for _, est := range estimates {
		if est.MonthlyCost >= a.cfg.ExpensiveThreshold {
			recs = append(recs, a.expensiveRecommendation(est))
		}
		// High-cost resources get an independent utilization review
		if est.MonthlyCost >= a.cfg.HighCostThreshold {
			recs = append(recs, CostOptimizationRecommendation{
				ResourceID:           est.ResourceID,
				Type:                 RecommendUtilizationReview,
				CurrentMonthlyCost:   round2(est.MonthlyCost),
				PotentialMonthlyCost: round2(est.MonthlyCost * 0.60),
				Confidence:           types.ConfidenceLow,
				Effort:               "medium",
				Description:          fmt.Sprintf("%s exceeds the high-cost threshold; audit its utilization", est.ResourceID),
				ActionItems: []string{
					"review utilization metrics over the last quarter",
					"compare against reserved or savings-plan pricing",
				},
			})
		}
	}

	for _, f := range forgotten {
		recs = append(recs, CostOptimizationRecommendation{
			ResourceID:           f.ResourceID,
			Type:                 RecommendTermination,
			CurrentMonthlyCost:   round2(f.MonthlyCost),
			PotentialMonthlyCost: 0,
			Confidence:           types.ConfidenceHigh,
			Effort:               "low",
			Description:          fmt.Sprintf("%s shows no activity for %d days; terminate it", f.ResourceID, f.DaysSinceActivity),
			ActionItems: []string{
				"confirm ownership and intent",
				"back up any data worth keeping",
				"terminate the resource",
			},
		})
	}

	return recs
}

func (a *Analyzer) expensiveRecommendation(est CostEstimate) CostOptimizationRecommendation {
	rec := CostOptimizationRecommendation{
		ResourceID:         est.ResourceID,
		CurrentMonthlyCost: round2(est.MonthlyCost),
		Confidence:         types.ConfidenceMedium,
	}

	if isStorageEstimate(est) {
		rec.Type = RecommendStorageOptimization
		rec.PotentialMonthlyCost = round2(est.MonthlyCost * 0.80)
		rec.Effort = "low"
		rec.Description = fmt.Sprintf("%s carries significant storage cost; lifecycle rules can trim it", est.ResourceID)
		rec.ActionItems = []string{
			"enable lifecycle transitions to colder storage tiers",
			"expire stale objects and snapshots",
		}
		return rec
	}

	switch strings.ToUpper(est.Service) {
	case "EC2":
		rec.Type = RecommendRightsizing
		rec.PotentialMonthlyCost = round2(est.MonthlyCost * 0.70)
		rec.Effort = "medium"
		rec.Description = fmt.Sprintf("%s is an expensive instance; a smaller type likely fits the workload", est.ResourceID)
		rec.ActionItems = []string{
			"check CPU and memory utilization",
			"move to the next smaller instance size",
		}
	case "RDS":
		rec.Type = RecommendRightsizing
		rec.PotentialMonthlyCost = round2(est.MonthlyCost * 0.75)
		rec.Effort = "medium"
		rec.Description = fmt.Sprintf("%s is an expensive database; consider a smaller instance class", est.ResourceID)
		rec.ActionItems = []string{
			"check connection counts and IOPS",
			"scale down during a maintenance window",
		}
	default:
		rec.Type = RecommendReview
		rec.PotentialMonthlyCost = round2(est.MonthlyCost * 0.80)
		rec.Effort = "low"
		rec.Description = fmt.Sprintf("%s is expensive for its service; review whether the spend is justified", est.ResourceID)
		rec.ActionItems = []string{
			"review the resource's purpose with its owner",
			"look for cheaper configurations",
		}
	}

	return rec
}

// isStorageEstimate covers storage-priced resources wherever they live
// (S3 buckets, EBS volumes, snapshots).
func isStorageEstimate(est CostEstimate) bool {
	if strings.ToUpper(est.Service) == "S3" {
		return true
	}
	switch strings.ToLower(est.Type) {
	case "volume", "snapshot", "ami":
		return true
	}
	return false
}

// Summarize runs the full set-level cost analysis.
func (a *Analyzer) Summarize(ctx context.Context, resources []types.Resource) (map[string]any, error) {
	if resources == nil {
		return nil, fmt.Errorf("resources must not be nil")
	}

	estimates, err := a.EstimateCosts(ctx, resources)
	if err != nil {
		return nil, err
	}

	forgotten, err := a.DetectForgotten(ctx, resources)
	if err != nil {
		return nil, err
	}

	trends, err := a.AnalyzeTrends(ctx, resources)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		CostByService: map[string]float64{},
	}
	for _, est := range estimates {
		summary.TotalMonthlyCost += est.MonthlyCost
		summary.CostByService[est.Service] += est.MonthlyCost
		if est.MonthlyCost >= a.cfg.ExpensiveThreshold {
			summary.ExpensiveResources = append(summary.ExpensiveResources, est)
		}
	}
	summary.TotalMonthlyCost = round2(summary.TotalMonthlyCost)
	for service := range summary.CostByService {
		summary.CostByService[service] = round2(summary.CostByService[service])
	}

	summary.ForgottenResources = forgotten
	for _, trend := range trends {
		if trend.Alert {
			summary.TrendAlerts = append(summary.TrendAlerts, trend)
		}
	}

	summary.Recommendations = a.Recommend(estimates, forgotten)
	for _, rec := range summary.Recommendations {
		summary.PotentialSavings += rec.CurrentMonthlyCost - rec.PotentialMonthlyCost
	}
	summary.PotentialSavings = round2(summary.PotentialSavings)

	a.logger.WithContext(ctx).Info().
		Float64("total_monthly_cost", summary.TotalMonthlyCost).
		Int("expensive", len(summary.ExpensiveResources)).
		Int("forgotten", len(summary.ForgottenResources)).
		Int("trend_alerts", len(summary.TrendAlerts)).
		Int("recommendations", len(summary.Recommendations)).
		Msg("cost summary complete")

	return summaryToMap(summary), nil
}

func summaryToMap(s Summary) map[string]any {
	return map[string]any{
		"total_monthly_cost":  s.TotalMonthlyCost,
		"cost_by_service":     s.CostByService,
		"expensive_resources": s.ExpensiveResources,
		"forgotten_resources": s.ForgottenResources,
		"trend_alerts":        s.TrendAlerts,
		"recommendations":     s.Recommendations,
		"potential_savings":   s.PotentialSavings,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
