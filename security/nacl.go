package security

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yairfalse/rikasta/types"
)

// naclRuleGapThreshold flags large numeric gaps between consecutive
// rule numbers as a renumbering opportunity.
const naclRuleGapThreshold = 100

// naclProtocols maps protocol numbers to names.
var naclProtocols = map[string]string{
	"6":  "TCP",
	"17": "UDP",
	"1":  "ICMP",
}

// analyzeNACL parses a network ACL resource's rule entries and runs the
// optimization heuristics over them.
func analyzeNACL(r types.Resource) *NACLAnalysis {
	analysis := &NACLAnalysis{
		NACLID: r.ID,
		VPCID:  r.GetString("vpc_id"),
	}

	for _, key := range []string{"entries", "rules"} {
		for _, item := range r.GetSlice(key) {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			analysis.Rules = append(analysis.Rules, parseNACLEntry(entry))
		}
	}

	sort.Slice(analysis.Rules, func(i, j int) bool {
		return analysis.Rules[i].RuleNumber < analysis.Rules[j].RuleNumber
	})

	analysis.Optimizations = naclOptimizations(analysis.Rules)
	return analysis
}

func parseNACLEntry(entry map[string]any) NACLRule {
	rule := NACLRule{
		Protocol: normalizeNACLProtocol(entry),
		CIDR:     firstString(entry, "cidr_block", "cidr", "ipv6_cidr_block"),
		Action:   strings.ToLower(firstString(entry, "rule_action", "action")),
		Egress:   entry["egress"] == true,
	}

	if n, ok := numberField(entry, "rule_number"); ok {
		rule.RuleNumber = n
	}

	span := naclPortSpan(entry)
	rule.PortRange = portRangeLabel(rule.Protocol, span)

	return rule
}

// normalizeNACLProtocol maps the numeric protocol codes NACL entries
// carry (6/17/1) to names; -1 means all traffic.
func normalizeNACLProtocol(entry map[string]any) string {
	raw := firstString(entry, "protocol", "ip_protocol")
	if raw == "" {
		if n, ok := numberField(entry, "protocol"); ok {
			raw = strconv.Itoa(n)
		}
	}
	if name, ok := naclProtocols[raw]; ok {
		return name
	}
	return normalizeProtocol(raw)
}

// naclPortSpan reads either a nested port_range object or flat
// from_port/to_port fields.
func naclPortSpan(entry map[string]any) *portSpan {
	if nested, ok := entry["port_range"].(map[string]any); ok {
		return parsePortSpan(map[string]any{
			"from_port": nested["from"],
			"to_port":   nested["to"],
		})
	}
	return parsePortSpan(entry)
}

// naclOptimizations flags allow-all-from-anywhere rules and large rule
// number gaps.
func naclOptimizations(rules []NACLRule) []string {
	var findings []string

	for _, rule := range rules {
		if rule.Action == "allow" && rule.Protocol == "All" && isOpenCIDR(rule.CIDR) {
			findings = append(findings, fmt.Sprintf(
				"rule %d allows all traffic from %s; restrict protocol and source",
				rule.RuleNumber, rule.CIDR))
		}
	}

	for i := 1; i < len(rules); i++ {
		gap := rules[i].RuleNumber - rules[i-1].RuleNumber
		if gap > naclRuleGapThreshold {
			findings = append(findings, fmt.Sprintf(
				"gap of %d between rules %d and %d; consider renumbering",
				gap, rules[i-1].RuleNumber, rules[i].RuleNumber))
		}
	}

	return findings
}
