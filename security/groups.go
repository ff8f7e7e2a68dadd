package security

import (
	"sort"

	"github.com/yairfalse/rikasta/types"
)

const (
	typeSecurityGroup = "security-group"
	typeNetworkACL    = "network-acl"
)

// AnalyzeGroups builds the full per-group analysis for every security
// group in the resource set: parsed rules, risk, association-derived
// unused flags, and the bidirectional reference graph.
func (a *Analyzer) AnalyzeGroups(resources []types.Resource) map[string]*SecurityGroupAnalysis {
	analyses := make(map[string]*SecurityGroupAnalysis)

	for _, r := range resources {
		if r.Type != typeSecurityGroup || r.ID == "" {
			continue
		}
		analyses[r.ID] = a.analyzeGroup(r)
	}

	associations := collectGroupAssociations(resources)
	for id, analysis := range analyses {
		analysis.AssociatedResources = associations[id]
		analysis.Unused = len(associations[id]) == 0
	}

	buildReferenceGraph(analyses)

	return analyses
}

func (a *Analyzer) analyzeGroup(r types.Resource) *SecurityGroupAnalysis {
	analysis := &SecurityGroupAnalysis{
		GroupID:     r.ID,
		GroupName:   firstNonEmpty(r.Name, r.GetString("group_name")),
		Description: r.GetString("description"),
		VPCID:       r.GetString("vpc_id"),
	}

	for _, entry := range ruleEntries(r, "inbound_rules", "ip_permissions") {
		analysis.InboundRules = append(analysis.InboundRules, parseRuleEntry(entry, DirectionInbound)...)
	}
	for _, entry := range ruleEntries(r, "outbound_rules", "ip_permissions_egress") {
		analysis.OutboundRules = append(analysis.OutboundRules, parseRuleEntry(entry, DirectionOutbound)...)
	}

	levels := make([]types.RiskLevel, 0, len(analysis.InboundRules)+len(analysis.OutboundRules))
	for _, rule := range analysis.InboundRules {
		levels = append(levels, rule.RiskLevel)
	}
	for _, rule := range analysis.OutboundRules {
		levels = append(levels, rule.RiskLevel)
	}
	analysis.RiskLevel = types.MaxRiskLevel(levels...)

	return analysis
}

// ruleEntries reads rule lists off a group resource, accepting both the
// normalized and the raw AWS field names.
func ruleEntries(r types.Resource, keys ...string) []map[string]any {
	var entries []map[string]any
	for _, key := range keys {
		for _, item := range r.GetSlice(key) {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
	}
	return entries
}

// collectGroupAssociations scans every resource's security-group fields
// and maps group id to the resource ids attached to it. Several field
// naming and shape conventions are accepted.
func collectGroupAssociations(resources []types.Resource) map[string][]string {
	associations := make(map[string][]string)

	for _, r := range resources {
		if r.Type == typeSecurityGroup {
			continue
		}
		for _, groupID := range referencedGroupIDs(r) {
			associations[groupID] = append(associations[groupID], r.ID)
		}
	}

	for id := range associations {
		sort.Strings(associations[id])
	}
	return associations
}

func referencedGroupIDs(r types.Resource) []string {
	seen := map[string]bool{}
	var ids []string

	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, key := range []string{"security_groups", "security_group_ids", "vpc_security_groups"} {
		for _, item := range r.GetSlice(key) {
			switch v := item.(type) {
			case string:
				add(v)
			case map[string]any:
				for _, field := range []string{"group_id", "vpc_security_group_id", "id"} {
					if s, ok := v[field].(string); ok {
						add(s)
						break
					}
				}
			}
		}
	}

	if s := r.GetString("security_group_id"); s != "" {
		add(s)
	}

	return ids
}

// buildReferenceGraph fills the bidirectional reference sets from each
// group's group-reference rules.
func buildReferenceGraph(analyses map[string]*SecurityGroupAnalysis) {
	for id, analysis := range analyses {
		refs := map[string]bool{}
		for _, rule := range append(analysis.InboundRules, analysis.OutboundRules...) {
			if rule.SourceType == SourceSecurityGroup && rule.Source != id {
				refs[rule.Source] = true
			}
		}
		for ref := range refs {
			analysis.ReferencesOtherGroups = append(analysis.ReferencesOtherGroups, ref)
			if target, ok := analyses[ref]; ok {
				target.ReferencedByGroups = append(target.ReferencedByGroups, id)
			}
		}
	}

	for _, analysis := range analyses {
		sort.Strings(analysis.ReferencesOtherGroups)
		sort.Strings(analysis.ReferencedByGroups)
	}
}

// findCircularDependencies returns every unordered pair of groups that
// reference each other, each pair exactly once.
func findCircularDependencies(analyses map[string]*SecurityGroupAnalysis) []CircularDependency {
	var cycles []CircularDependency

	ids := make([]string, 0, len(analyses))
	for id := range analyses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		analysis := analyses[id]
		for _, ref := range analysis.ReferencesOtherGroups {
			// Only take pairs once, in id order
			if ref <= id {
				continue
			}
			target, ok := analyses[ref]
			if !ok {
				continue
			}
			if containsString(target.ReferencesOtherGroups, id) {
				cycles = append(cycles, CircularDependency{GroupA: id, GroupB: ref})
			}
		}
	}

	return cycles
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
