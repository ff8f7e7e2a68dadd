package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/rikasta/types"
)

func groupResource(id string, inbound []any) types.Resource {
	return types.Resource{
		Service: "VPC",
		Type:    "security-group",
		ID:      id,
		Extra: map[string]any{
			"inbound_rules": inbound,
		},
	}
}

func tcpRule(port int, cidr string) map[string]any {
	return map[string]any{
		"protocol":    "tcp",
		"from_port":   float64(port),
		"to_port":     float64(port),
		"cidr_blocks": []any{cidr},
	}
}

func TestRiskScoring(t *testing.T) {
	tests := []struct {
		name string
		port int
		cidr string
		want types.RiskLevel
	}{
		{"ssh open to world", 22, "0.0.0.0/0", types.RiskCritical},
		{"rdp open to world", 3389, "0.0.0.0/0", types.RiskCritical},
		{"http open to world", 80, "0.0.0.0/0", types.RiskHigh},
		{"ephemeral open to world", 50000, "0.0.0.0/0", types.RiskMedium},
		{"ssh from internal subnet", 22, "10.0.0.0/24", types.RiskLow},
		{"broad but not open", 8443, "10.0.0.0/8", types.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := parseRuleEntry(tcpRule(tt.port, tt.cidr), DirectionInbound)
			require.Len(t, rules, 1)
			assert.Equal(t, tt.want, rules[0].RiskLevel)
		})
	}
}

func TestRiskScoringIPv6OpenCIDR(t *testing.T) {
	entry := map[string]any{
		"protocol":         "tcp",
		"from_port":        float64(22),
		"to_port":          float64(22),
		"ipv6_cidr_blocks": []any{"::/0"},
	}
	rules := parseRuleEntry(entry, DirectionInbound)
	require.Len(t, rules, 1)
	assert.Equal(t, types.RiskCritical, rules[0].RiskLevel)
	assert.Equal(t, SourceIPv6CIDR, rules[0].SourceType)
	assert.True(t, rules[0].Permissive)
}

func TestGroupReferenceRulesAreLowRisk(t *testing.T) {
	entry := map[string]any{
		"protocol":        "tcp",
		"from_port":       float64(22),
		"to_port":         float64(22),
		"security_groups": []any{"sg-other"},
	}
	rules := parseRuleEntry(entry, DirectionInbound)
	require.Len(t, rules, 1)
	assert.Equal(t, types.RiskLow, rules[0].RiskLevel)
	assert.Equal(t, SourceSecurityGroup, rules[0].SourceType)
	assert.Equal(t, "sg-other", rules[0].Source)
}

func TestPortLabels(t *testing.T) {
	all := parseRuleEntry(map[string]any{
		"protocol":    "-1",
		"cidr_blocks": []any{"10.0.0.0/24"},
	}, DirectionInbound)
	require.Len(t, all, 1)
	assert.Equal(t, "All", all[0].Protocol)
	assert.Equal(t, "All", all[0].PortRange)

	ranged := parseRuleEntry(map[string]any{
		"protocol":    "tcp",
		"from_port":   float64(1024),
		"to_port":     float64(2048),
		"cidr_blocks": []any{"10.0.0.0/24"},
	}, DirectionInbound)
	require.Len(t, ranged, 1)
	assert.Equal(t, "1024-2048", ranged[0].PortRange)

	single := parseRuleEntry(tcpRule(443, "10.0.0.0/24"), DirectionInbound)
	require.Len(t, single, 1)
	assert.Equal(t, "443", single[0].PortRange)
	assert.Equal(t, "HTTPS", single[0].RecognizedService)
}

func TestAWSShapedRuleEntries(t *testing.T) {
	entry := map[string]any{
		"ip_protocol": "tcp",
		"from_port":   float64(5432),
		"to_port":     float64(5432),
		"ip_ranges": []any{
			map[string]any{"cidr_ip": "0.0.0.0/0"},
		},
		"user_id_group_pairs": []any{
			map[string]any{"group_id": "sg-db"},
		},
	}

	rules := parseRuleEntry(entry, DirectionInbound)
	require.Len(t, rules, 2)
	assert.Equal(t, types.RiskCritical, rules[0].RiskLevel)
	assert.Equal(t, "PostgreSQL", rules[0].RecognizedService)
	assert.Equal(t, types.RiskLow, rules[1].RiskLevel)
}

func TestAnalyzeGroupsRiskIsMaxOfRules(t *testing.T) {
	group := groupResource("sg-1", []any{
		tcpRule(443, "10.0.0.0/24"), // low
		tcpRule(22, "0.0.0.0/0"),    // critical
	})

	a := NewAnalyzer()
	analyses := a.AnalyzeGroups([]types.Resource{group})
	require.Contains(t, analyses, "sg-1")
	assert.Equal(t, types.RiskCritical, analyses["sg-1"].RiskLevel)
}

func TestUnusedGroupDetection(t *testing.T) {
	used := groupResource("sg-used", nil)
	unused := groupResource("sg-unused", nil)
	instance := types.Resource{
		Service: "EC2", Type: "instance", ID: "i-1",
		Extra: map[string]any{
			"security_groups": []any{"sg-used"},
		},
	}

	a := NewAnalyzer()
	analyses := a.AnalyzeGroups([]types.Resource{used, unused, instance})

	assert.False(t, analyses["sg-used"].Unused)
	assert.Equal(t, []string{"i-1"}, analyses["sg-used"].AssociatedResources)
	assert.True(t, analyses["sg-unused"].Unused)
}

func TestAssociationShapeConventions(t *testing.T) {
	group := groupResource("sg-1", nil)
	byPairList := types.Resource{
		Type: "instance", ID: "i-pairs",
		Extra: map[string]any{
			"security_groups": []any{map[string]any{"group_id": "sg-1"}},
		},
	}
	byVPCList := types.Resource{
		Type: "db-instance", ID: "db-1",
		Extra: map[string]any{
			"vpc_security_groups": []any{map[string]any{"vpc_security_group_id": "sg-1"}},
		},
	}
	byScalar := types.Resource{
		Type: "network-interface", ID: "eni-1",
		Extra: map[string]any{
			"security_group_id": "sg-1",
		},
	}

	a := NewAnalyzer()
	analyses := a.AnalyzeGroups([]types.Resource{group, byPairList, byVPCList, byScalar})
	assert.Equal(t, []string{"db-1", "eni-1", "i-pairs"}, analyses["sg-1"].AssociatedResources)
}

func TestCircularDependencySymmetry(t *testing.T) {
	refRule := func(target string) map[string]any {
		return map[string]any{
			"protocol":        "tcp",
			"from_port":       float64(443),
			"to_port":         float64(443),
			"security_groups": []any{target},
		}
	}

	a := groupResource("sg-a", []any{refRule("sg-b")})
	b := groupResource("sg-b", []any{refRule("sg-a")})
	c := groupResource("sg-c", []any{refRule("sg-a")}) // one-way, no cycle

	analyzer := NewAnalyzer()
	analyses := analyzer.AnalyzeGroups([]types.Resource{a, b, c})
	cycles := findCircularDependencies(analyses)

	require.Len(t, cycles, 1)
	assert.Equal(t, CircularDependency{GroupA: "sg-a", GroupB: "sg-b"}, cycles[0])
}

func TestEnrichAnnotatesGroups(t *testing.T) {
	group := groupResource("sg-1", []any{
		tcpRule(22, "0.0.0.0/0"),
		tcpRule(443, "10.0.0.0/24"),
	})

	a := NewAnalyzer()
	enriched, err := a.Enrich(context.Background(), group)
	require.NoError(t, err)

	assert.Equal(t, "critical", enriched.GetString("security_risk_level"))
	assert.Equal(t, 2, enriched.Extra["security_rule_count"])
	assert.Equal(t, 1, enriched.Extra["permissive_rule_count"])
}

func TestEnrichPassesThroughOtherResources(t *testing.T) {
	r := types.Resource{Service: "S3", Type: "bucket", ID: "b-1"}

	a := NewAnalyzer()
	enriched, err := a.Enrich(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, r, enriched)
}

func TestNACLAnalysis(t *testing.T) {
	nacl := types.Resource{
		Service: "VPC", Type: "network-acl", ID: "acl-1",
		Extra: map[string]any{
			"entries": []any{
				map[string]any{
					"rule_number": float64(100),
					"protocol":    "-1",
					"rule_action": "allow",
					"cidr_block":  "0.0.0.0/0",
				},
				map[string]any{
					"rule_number": float64(300),
					"protocol":    "6",
					"rule_action": "allow",
					"cidr_block":  "10.0.0.0/16",
					"port_range":  map[string]any{"from": float64(443), "to": float64(443)},
				},
			},
		},
	}

	analysis := analyzeNACL(nacl)
	require.Len(t, analysis.Rules, 2)
	assert.Equal(t, "All", analysis.Rules[0].Protocol)
	assert.Equal(t, "TCP", analysis.Rules[1].Protocol)
	assert.Equal(t, "443", analysis.Rules[1].PortRange)

	// allow-all from anywhere plus a 200 gap between rules
	require.Len(t, analysis.Optimizations, 2)
}

func TestSummarize(t *testing.T) {
	open := groupResource("sg-open", []any{tcpRule(22, "0.0.0.0/0")})
	quiet := groupResource("sg-quiet", []any{tcpRule(443, "10.0.0.0/24")})
	instance := types.Resource{
		Type: "instance", ID: "i-1",
		Extra: map[string]any{"security_groups": []any{"sg-open"}},
	}

	a := NewAnalyzer()
	summary, err := a.Summarize(context.Background(), []types.Resource{open, quiet, instance})
	require.NoError(t, err)

	assert.Equal(t, 2, summary["total_groups"])
	assert.Equal(t, 1, summary["permissive_rule_count"])
	assert.Equal(t, 1, summary["unused_group_count"])
	assert.Equal(t, []string{"sg-open"}, summary["high_risk_resources"])
	assert.NotEmpty(t, summary["recommendations"])
}
