package security

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yairfalse/rikasta/types"
)

const (
	openCIDRv4 = "0.0.0.0/0"
	openCIDRv6 = "::/0"

	// CIDRs with a prefix shorter than this count as broad exposure
	broadPrefixLen = 16

	wellKnownPortMax = 1024
)

// highRiskPorts are remote-admin and database ports that must never be
// open to the world.
var highRiskPorts = map[int]bool{
	22:    true, // SSH
	23:    true, // Telnet
	3389:  true, // RDP
	1433:  true, // MSSQL
	3306:  true, // MySQL
	5432:  true, // PostgreSQL
	5439:  true, // Redshift
	6379:  true, // Redis
	9200:  true, // Elasticsearch
	11211: true, // Memcached
	27017: true, // MongoDB
}

// portServices labels well-known ports with the service that usually
// listens on them.
var portServices = map[int]string{
	20:    "FTP-Data",
	21:    "FTP",
	22:    "SSH",
	23:    "Telnet",
	25:    "SMTP",
	53:    "DNS",
	80:    "HTTP",
	110:   "POP3",
	143:   "IMAP",
	443:   "HTTPS",
	465:   "SMTPS",
	587:   "SMTP-Submission",
	993:   "IMAPS",
	995:   "POP3S",
	1433:  "MSSQL",
	3306:  "MySQL",
	3389:  "RDP",
	5432:  "PostgreSQL",
	5439:  "Redshift",
	6379:  "Redis",
	8080:  "HTTP-Alt",
	9200:  "Elasticsearch",
	11211: "Memcached",
	27017: "MongoDB",
}

// portSpan is a parsed from/to port pair. A nil span means all ports.
type portSpan struct {
	from int
	to   int
}

// parseRuleEntry turns one raw rule entry (an open mapping from
// discovery) into SecurityRules: one per CIDR block, IPv6 block, and
// group reference.
func parseRuleEntry(entry map[string]any, direction Direction) []SecurityRule {
	protocol := normalizeProtocol(firstString(entry, "protocol", "ip_protocol"))
	span := parsePortSpan(entry)
	portLabel := portRangeLabel(protocol, span)

	var rules []SecurityRule

	add := func(source string, sourceType SourceType) {
		rule := SecurityRule{
			Protocol:   protocol,
			PortRange:  portLabel,
			Source:     source,
			SourceType: sourceType,
			Direction:  direction,
		}
		rule.RiskLevel = scoreRule(rule, span)
		rule.Permissive = isOpenCIDR(source)
		rule.RecognizedService = recognizedService(span)
		rules = append(rules, rule)
	}

	for _, cidr := range cidrEntries(entry, "cidr_blocks", "ip_ranges", "cidr_ip") {
		add(cidr, SourceCIDR)
	}
	for _, cidr := range cidrEntries(entry, "ipv6_cidr_blocks", "ipv6_ranges", "cidr_ipv6") {
		add(cidr, SourceIPv6CIDR)
	}
	for _, groupID := range groupRefEntries(entry) {
		add(groupID, SourceSecurityGroup)
	}

	return rules
}

// scoreRule applies the deterministic risk policy. Group references are
// always low risk; a fully open CIDR is graded by what the port exposes;
// a broad CIDR is medium.
func scoreRule(rule SecurityRule, span *portSpan) types.RiskLevel {
	if rule.SourceType == SourceSecurityGroup {
		return types.RiskLow
	}

	if isOpenCIDR(rule.Source) {
		if spanContainsHighRiskPort(span) {
			return types.RiskCritical
		}
		if spanBelowWellKnown(span) {
			return types.RiskHigh
		}
		return types.RiskMedium
	}

	if isBroadCIDR(rule.Source) {
		return types.RiskMedium
	}

	return types.RiskLow
}

func isOpenCIDR(source string) bool {
	return source == openCIDRv4 || source == openCIDRv6
}

// isBroadCIDR reports whether the CIDR's prefix length is shorter than
// /16, i.e. a very large address range.
func isBroadCIDR(source string) bool {
	idx := strings.LastIndex(source, "/")
	if idx < 0 {
		return false
	}
	prefixLen, err := strconv.Atoi(source[idx+1:])
	if err != nil {
		return false
	}
	return prefixLen < broadPrefixLen
}

// spanContainsHighRiskPort reports whether the port span covers any
// high-risk port. A nil span (all ports) covers everything.
func spanContainsHighRiskPort(span *portSpan) bool {
	if span == nil {
		return true
	}
	for port := range highRiskPorts {
		if port >= span.from && port <= span.to {
			return true
		}
	}
	return false
}

// spanBelowWellKnown reports whether any port in the span is a
// well-known port (<1024). A nil span covers them all.
func spanBelowWellKnown(span *portSpan) bool {
	if span == nil {
		return true
	}
	return span.from < wellKnownPortMax
}

// recognizedService returns the static service label for single-port
// spans.
func recognizedService(span *portSpan) string {
	if span == nil || span.from != span.to {
		return ""
	}
	return portServices[span.from]
}

// normalizeProtocol maps -1/any to "All" and upper-cases the rest.
func normalizeProtocol(protocol string) string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "-1", "any", "all", "":
		return "All"
	default:
		return strings.ToUpper(protocol)
	}
}

// portRangeLabel collapses a missing bound or from==to to a single port
// label, otherwise a from-to range label.
func portRangeLabel(protocol string, span *portSpan) string {
	if protocol == "All" && span == nil {
		return "All"
	}
	if span == nil {
		return "All"
	}
	if span.from == span.to {
		return strconv.Itoa(span.from)
	}
	return fmt.Sprintf("%d-%d", span.from, span.to)
}

// parsePortSpan reads from_port/to_port. A missing pair means all
// ports; a single present bound collapses to that port.
func parsePortSpan(entry map[string]any) *portSpan {
	from, hasFrom := numberField(entry, "from_port")
	to, hasTo := numberField(entry, "to_port")

	if !hasFrom && !hasTo {
		return nil
	}
	if !hasTo {
		to = from
	}
	if !hasFrom {
		from = to
	}
	return &portSpan{from: from, to: to}
}

func numberField(entry map[string]any, key string) (int, bool) {
	switch v := entry[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func firstString(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := entry[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// cidrEntries accepts both flat lists of CIDR strings and lists of
// range objects carrying a CIDR field.
func cidrEntries(entry map[string]any, listKey, rangeKey, rangeField string) []string {
	var cidrs []string

	if list, ok := entry[listKey].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				cidrs = append(cidrs, s)
			}
		}
	}

	if ranges, ok := entry[rangeKey].([]any); ok {
		for _, item := range ranges {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := m[rangeField].(string); ok && s != "" {
				cidrs = append(cidrs, s)
			}
		}
	}

	return cidrs
}

// groupRefEntries accepts flat lists of group ids and AWS-style
// user_id_group_pairs objects.
func groupRefEntries(entry map[string]any) []string {
	var groups []string

	if list, ok := entry["security_groups"].([]any); ok {
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if v != "" {
					groups = append(groups, v)
				}
			case map[string]any:
				if s, ok := v["group_id"].(string); ok && s != "" {
					groups = append(groups, s)
				}
			}
		}
	}

	if pairs, ok := entry["user_id_group_pairs"].([]any); ok {
		for _, item := range pairs {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := m["group_id"].(string); ok && s != "" {
				groups = append(groups, s)
			}
		}
	}

	return groups
}
