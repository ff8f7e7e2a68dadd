package security

import "github.com/yairfalse/rikasta/types"

// Direction of a security rule
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SourceType describes what a rule's source/destination refers to
type SourceType string

const (
	SourceCIDR          SourceType = "cidr"
	SourceIPv6CIDR      SourceType = "ipv6_cidr"
	SourceSecurityGroup SourceType = "security_group"
)

// SecurityRule is one parsed allow rule of a security group.
type SecurityRule struct {
	Protocol          string          `json:"protocol"`
	PortRange         string          `json:"port_range"`
	Source            string          `json:"source"`
	SourceType        SourceType      `json:"source_type"`
	Direction         Direction       `json:"direction"`
	RiskLevel         types.RiskLevel `json:"risk_level"`
	Permissive        bool            `json:"permissive"`
	RecognizedService string          `json:"recognized_service,omitempty"`
}

// SecurityGroupAnalysis is the full analysis of one security group.
type SecurityGroupAnalysis struct {
	GroupID               string          `json:"group_id"`
	GroupName             string          `json:"group_name,omitempty"`
	Description           string          `json:"description,omitempty"`
	VPCID                 string          `json:"vpc_id,omitempty"`
	InboundRules          []SecurityRule  `json:"inbound_rules"`
	OutboundRules         []SecurityRule  `json:"outbound_rules"`
	AssociatedResources   []string        `json:"associated_resources"`
	RiskLevel             types.RiskLevel `json:"risk_level"`
	Unused                bool            `json:"unused"`
	ReferencesOtherGroups []string        `json:"references_other_groups,omitempty"`
	ReferencedByGroups    []string        `json:"referenced_by_groups,omitempty"`
}

// NACLRule is one parsed network ACL entry.
type NACLRule struct {
	RuleNumber int    `json:"rule_number"`
	Protocol   string `json:"protocol"`
	PortRange  string `json:"port_range"`
	CIDR       string `json:"cidr"`
	Action     string `json:"action"`
	Egress     bool   `json:"egress"`
}

// NACLAnalysis is the analysis of one network ACL.
type NACLAnalysis struct {
	NACLID        string     `json:"nacl_id"`
	VPCID         string     `json:"vpc_id,omitempty"`
	Rules         []NACLRule `json:"rules"`
	Optimizations []string   `json:"optimizations,omitempty"`
}

// CircularDependency is an unordered pair of groups referencing each
// other.
type CircularDependency struct {
	GroupA string `json:"group_a"`
	GroupB string `json:"group_b"`
}

// Summary aggregates security analysis over the whole resource set.
type Summary struct {
	TotalGroups          int                  `json:"total_groups"`
	TotalNACLs           int                  `json:"total_nacls"`
	PermissiveRuleCount  int                  `json:"permissive_rule_count"`
	UnusedGroupCount     int                  `json:"unused_group_count"`
	HighRiskResources    []string             `json:"high_risk_resources"`
	CircularDependencies []CircularDependency `json:"circular_dependencies"`
	NACLOptimizations    map[string][]string  `json:"nacl_optimizations,omitempty"`
	Recommendations      []string             `json:"recommendations"`
}
