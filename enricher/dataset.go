package enricher

import (
	"math"
	"time"

	"github.com/yairfalse/rikasta/types"
)

// Statistics accumulate over one orchestrator run.
type Statistics struct {
	TotalResources     int            `json:"total_resources"`
	ProcessedResources int            `json:"processed_resources"`
	FailedResources    int            `json:"failed_resources"`
	PerAnalyzer        map[string]int `json:"per_analyzer"`
	Elapsed            time.Duration  `json:"elapsed"`
	Errors             []string       `json:"errors,omitempty"`
	Warnings           []string       `json:"warnings,omitempty"`
}

// ErrorSummary surfaces accumulated diagnostics so callers can tell a
// clean run from a degraded one.
type ErrorSummary struct {
	HasErrors   bool     `json:"has_errors"`
	HasWarnings bool     `json:"has_warnings"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// ComplianceCount is one compliance status bucket.
type ComplianceCount struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Metadata describes how and when the dataset was generated.
type Metadata struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	ResourceCount int           `json:"resource_count"`
	Elapsed       time.Duration `json:"elapsed"`
	Statistics    Statistics    `json:"statistics"`
}

// Dataset is the aggregate output handed to downstream consumers.
type Dataset struct {
	Resources         []types.Resource           `json:"resources"`
	Summaries         map[string]map[string]any  `json:"summaries"`
	ComplianceSummary map[string]ComplianceCount `json:"compliance_summary"`
	CustomAttributes  []string                   `json:"custom_attributes"`
	Metadata          Metadata                   `json:"metadata"`
	ErrorSummary      ErrorSummary               `json:"error_summary"`
}

func assembleDataset(resources []types.Resource, summaries map[string]map[string]any, stats Statistics, started time.Time) *Dataset {
	return &Dataset{
		Resources:         resources,
		Summaries:         summaries,
		ComplianceSummary: complianceSummary(resources),
		CustomAttributes:  types.CustomAttributeNames(resources),
		Metadata: Metadata{
			GeneratedAt:   started,
			ResourceCount: len(resources),
			Elapsed:       stats.Elapsed,
			Statistics:    stats,
		},
		ErrorSummary: ErrorSummary{
			HasErrors:   len(stats.Errors) > 0,
			HasWarnings: len(stats.Warnings) > 0,
			Errors:      stats.Errors,
			Warnings:    stats.Warnings,
		},
	}
}

// complianceSummary counts resources by compliance status over the
// final enriched set. Resources without a status count as "unknown".
func complianceSummary(resources []types.Resource) map[string]ComplianceCount {
	counts := make(map[string]int)
	for _, r := range resources {
		status := r.ComplianceStatus
		if status == "" {
			status = "unknown"
		}
		counts[status]++
	}

	summary := make(map[string]ComplianceCount, len(counts))
	total := float64(len(resources))
	for status, n := range counts {
		summary[status] = ComplianceCount{
			Count:   n,
			Percent: math.Round(float64(n)/total*1000) / 10,
		}
	}
	return summary
}
