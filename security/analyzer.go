// Package security analyzes security-group and NACL rule sets: per-rule
// risk scoring, reference-graph cycle detection, and unused-group
// discovery.
package security

import (
	"context"
	"fmt"
	"sort"

	"github.com/yairfalse/rikasta/telemetry"
	"github.com/yairfalse/rikasta/types"
)

// Analyzer scores security groups and NACLs for risk.
type Analyzer struct {
	logger *telemetry.Logger
}

// NewAnalyzer creates a security risk analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		logger: telemetry.NewLogger("security-analyzer"),
	}
}

// Name identifies the analyzer in statistics and error summaries.
func (a *Analyzer) Name() string { return "security" }

// Enrich annotates security-group and NACL resources with their parsed
// rules and computed risk. Other resources pass through untouched.
func (a *Analyzer) Enrich(ctx context.Context, r types.Resource) (types.Resource, error) {
	switch r.Type {
	case typeSecurityGroup:
		return a.enrichGroup(r), nil
	case typeNetworkACL:
		return a.enrichNACL(r), nil
	default:
		return r, nil
	}
}

func (a *Analyzer) enrichGroup(r types.Resource) types.Resource {
	analysis := a.analyzeGroup(r)

	permissive := 0
	services := map[string]bool{}
	for _, rule := range append(analysis.InboundRules, analysis.OutboundRules...) {
		if rule.Permissive {
			permissive++
		}
		if rule.RecognizedService != "" {
			services[rule.RecognizedService] = true
		}
	}

	r.SetExtra("security_risk_level", string(analysis.RiskLevel))
	r.SetExtra("security_rule_count", len(analysis.InboundRules)+len(analysis.OutboundRules))
	r.SetExtra("permissive_rule_count", permissive)
	if len(services) > 0 {
		names := make([]any, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		r.SetExtra("recognized_services", names)
	}
	return r
}

func (a *Analyzer) enrichNACL(r types.Resource) types.Resource {
	analysis := analyzeNACL(r)
	r.SetExtra("nacl_rule_count", len(analysis.Rules))
	if len(analysis.Optimizations) > 0 {
		findings := make([]any, 0, len(analysis.Optimizations))
		for _, f := range analysis.Optimizations {
			findings = append(findings, f)
		}
		r.SetExtra("nacl_optimizations", findings)
	}
	return r
}

// Summarize runs the set-level analysis: group risk, unused groups,
// circular references, NACL findings, and recommendations.
func (a *Analyzer) Summarize(ctx context.Context, resources []types.Resource) (map[string]any, error) {
	if resources == nil {
		return nil, fmt.Errorf("resources must not be nil")
	}

	analyses := a.AnalyzeGroups(resources)
	cycles := findCircularDependencies(analyses)

	summary := Summary{
		TotalGroups:          len(analyses),
		CircularDependencies: cycles,
		NACLOptimizations:    map[string][]string{},
	}

	for _, analysis := range analyses {
		for _, rule := range append(analysis.InboundRules, analysis.OutboundRules...) {
			if rule.Permissive {
				summary.PermissiveRuleCount++
			}
		}
		if analysis.Unused {
			summary.UnusedGroupCount++
		}
		if analysis.RiskLevel.AtLeast(types.RiskHigh) {
			summary.HighRiskResources = append(summary.HighRiskResources, analysis.GroupID)
		}
	}
	sort.Strings(summary.HighRiskResources)

	for _, r := range resources {
		if r.Type != typeNetworkACL {
			continue
		}
		summary.TotalNACLs++
		if analysis := analyzeNACL(r); len(analysis.Optimizations) > 0 {
			summary.NACLOptimizations[analysis.NACLID] = analysis.Optimizations
		}
	}

	summary.Recommendations = buildRecommendations(summary)

	a.logger.WithContext(ctx).Info().
		Int("groups", summary.TotalGroups).
		Int("nacls", summary.TotalNACLs).
		Int("permissive_rules", summary.PermissiveRuleCount).
		Int("unused_groups", summary.UnusedGroupCount).
		Int("circular_dependencies", len(cycles)).
		Msg("security summary complete")

	return summaryToMap(summary), nil
}

func buildRecommendations(s Summary) []string {
	var recs []string
	if s.PermissiveRuleCount > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d rules allow traffic from anywhere; restrict sources to known CIDR ranges", s.PermissiveRuleCount))
	}
	if s.UnusedGroupCount > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d security groups have no associated resources; delete them to reduce attack surface", s.UnusedGroupCount))
	}
	if len(s.HighRiskResources) > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d security groups carry high or critical risk rules; review their exposure", len(s.HighRiskResources)))
	}
	if len(s.CircularDependencies) > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d circular group references found; untangle them before attempting cleanup", len(s.CircularDependencies)))
	}
	return recs
}

func summaryToMap(s Summary) map[string]any {
	cycles := make([]any, 0, len(s.CircularDependencies))
	for _, c := range s.CircularDependencies {
		cycles = append(cycles, map[string]any{"group_a": c.GroupA, "group_b": c.GroupB})
	}
	return map[string]any{
		"total_groups":          s.TotalGroups,
		"total_nacls":           s.TotalNACLs,
		"permissive_rule_count": s.PermissiveRuleCount,
		"unused_group_count":    s.UnusedGroupCount,
		"high_risk_resources":   s.HighRiskResources,
		"circular_dependencies": cycles,
		"nacl_optimizations":    s.NACLOptimizations,
		"recommendations":       s.Recommendations,
	}
}
