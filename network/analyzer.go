// Package network analyzes VPC and subnet address-space utilization.
package network

import (
	"context"
	"fmt"
	"math"
	"net"
	"sort"
	"strings"

	"github.com/yairfalse/rikasta/telemetry"
	"github.com/yairfalse/rikasta/types"
)

// reservedPerSubnet is the number of addresses AWS withholds from
// every subnet (network, router, DNS, future use, broadcast).
const reservedPerSubnet = 5

const (
	typeVPC    = "vpc"
	typeSubnet = "subnet"
)

// SubnetUtilization is the address-space accounting for one subnet.
type SubnetUtilization struct {
	SubnetID           string  `json:"subnet_id"`
	VPCID              string  `json:"vpc_id"`
	CIDR               string  `json:"cidr"`
	Capacity           int     `json:"capacity"`
	AvailableIPs       int     `json:"available_ips"`
	UsedIPs            int     `json:"used_ips"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// VPCUtilization aggregates a VPC's subnets against its own address
// space.
type VPCUtilization struct {
	VPCID              string  `json:"vpc_id"`
	CIDR               string  `json:"cidr"`
	TotalCapacity      int     `json:"total_capacity"`
	AllocatedToSubnets int     `json:"allocated_to_subnets"`
	UsedIPs            int     `json:"used_ips"`
	AvailableCapacity  int     `json:"available_capacity"`
	UtilizationPercent float64 `json:"utilization_percent"`
	SubnetCount        int     `json:"subnet_count"`
	HighUtilization    bool    `json:"high_utilization"`
}

// highUtilizationPercent flags address spaces running short.
const highUtilizationPercent = 80.0

// Analyzer computes network utilization. It implements the same
// enrichment contract as the security and cost analyzers.
type Analyzer struct {
	logger *telemetry.Logger
}

// NewAnalyzer creates a network analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{logger: telemetry.NewLogger("network-analyzer")}
}

// Name identifies the analyzer in statistics and error summaries.
func (a *Analyzer) Name() string { return "network" }

// Enrich annotates VPCs and subnets with their address-space capacity
// and utilization. Other resources pass through unchanged.
func (a *Analyzer) Enrich(ctx context.Context, r types.Resource) (types.Resource, error) {
	// records without a CIDR block pass through unannotated
	if resourceCIDR(r) == "" {
		return r, nil
	}

	switch strings.ToLower(r.Type) {
	case typeSubnet:
		util, err := subnetUtilization(r)
		if err != nil {
			return r, err
		}
		r.SetExtra("ip_capacity", util.Capacity)
		r.SetExtra("ips_in_use", util.UsedIPs)
		r.SetExtra("utilization_percent", util.UtilizationPercent)
	case typeVPC:
		capacity, err := cidrCapacity(resourceCIDR(r))
		if err != nil {
			return r, err
		}
		r.SetExtra("ip_capacity", capacity)
	}
	return r, nil
}

// Summarize builds the per-VPC utilization summary over the set.
func (a *Analyzer) Summarize(ctx context.Context, resources []types.Resource) (map[string]any, error) {
	if resources == nil {
		return nil, fmt.Errorf("resources must not be nil")
	}

	subnets := make([]SubnetUtilization, 0)
	vpcCIDRs := make(map[string]string)

	for _, r := range resources {
		switch strings.ToLower(r.Type) {
		case typeSubnet:
			util, err := subnetUtilization(r)
			if err != nil {
				a.logger.WithContext(ctx).Warn().
					Str("resource_id", r.ID).
					Err(err).
					Msg("skipping subnet with unparseable CIDR")
				continue
			}
			subnets = append(subnets, util)
		case typeVPC:
			vpcCIDRs[r.ID] = resourceCIDR(r)
		}
	}

	vpcs := aggregateVPCs(subnets, vpcCIDRs)

	summary := map[string]any{
		"vpc_count":    len(vpcs),
		"subnet_count": len(subnets),
		"vpcs":         vpcs,
		"subnets":      subnets,
	}

	var crowded []string
	for _, v := range vpcs {
		if v.HighUtilization {
			crowded = append(crowded, v.VPCID)
		}
	}
	summary["high_utilization_vpcs"] = crowded

	a.logger.WithContext(ctx).Info().
		Int("vpcs", len(vpcs)).
		Int("subnets", len(subnets)).
		Int("high_utilization", len(crowded)).
		Msg("network summary complete")

	return summary, nil
}

// subnetUtilization computes one subnet's accounting from its CIDR and
// its reported free-address count. A subnet that does not report free
// addresses counts as empty.
func subnetUtilization(r types.Resource) (SubnetUtilization, error) {
	cidr := resourceCIDR(r)
	capacity, err := cidrCapacity(cidr)
	if err != nil {
		return SubnetUtilization{}, fmt.Errorf("subnet %s: %w", r.ID, err)
	}
	capacity -= reservedPerSubnet
	if capacity < 0 {
		capacity = 0
	}

	available := capacity
	if v, ok := r.GetFloat("available_ip_address_count"); ok {
		available = int(v)
	}
	if available > capacity {
		available = capacity
	}
	used := capacity - available

	util := SubnetUtilization{
		SubnetID:     r.ID,
		VPCID:        r.GetString("vpc_id"),
		CIDR:         cidr,
		Capacity:     capacity,
		AvailableIPs: available,
		UsedIPs:      used,
	}
	if capacity > 0 {
		util.UtilizationPercent = round1(float64(used) / float64(capacity) * 100)
	}
	return util, nil
}

// aggregateVPCs rolls subnet accounting up to the owning VPCs. A VPC
// known only through its subnets still appears, without a total
// capacity of its own.
func aggregateVPCs(subnets []SubnetUtilization, vpcCIDRs map[string]string) []VPCUtilization {
	byVPC := make(map[string]*VPCUtilization)

	for id, cidr := range vpcCIDRs {
		v := &VPCUtilization{VPCID: id, CIDR: cidr}
		if capacity, err := cidrCapacity(cidr); err == nil {
			v.TotalCapacity = capacity
		}
		byVPC[id] = v
	}

	for _, s := range subnets {
		if s.VPCID == "" {
			continue
		}
		v, ok := byVPC[s.VPCID]
		if !ok {
			v = &VPCUtilization{VPCID: s.VPCID}
			byVPC[s.VPCID] = v
		}
		v.SubnetCount++
		v.AllocatedToSubnets += s.Capacity + reservedPerSubnet
		v.UsedIPs += s.UsedIPs
	}

	ids := make([]string, 0, len(byVPC))
	for id := range byVPC {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vpcs := make([]VPCUtilization, 0, len(byVPC))
	for _, id := range ids {
		v := byVPC[id]
		if v.TotalCapacity > 0 {
			v.AvailableCapacity = v.TotalCapacity - v.UsedIPs
			v.UtilizationPercent = round1(float64(v.UsedIPs) / float64(v.TotalCapacity) * 100)
		} else if v.AllocatedToSubnets > 0 {
			// no VPC record seen: fall back to subnet-allocated space
			v.AvailableCapacity = v.AllocatedToSubnets - v.UsedIPs
			v.UtilizationPercent = round1(float64(v.UsedIPs) / float64(v.AllocatedToSubnets) * 100)
		}
		v.HighUtilization = v.UtilizationPercent >= highUtilizationPercent
		vpcs = append(vpcs, *v)
	}
	return vpcs
}

// resourceCIDR reads the resource's IPv4 CIDR under its usual keys.
func resourceCIDR(r types.Resource) string {
	for _, key := range []string{"cidr_block", "cidr"} {
		if v := r.GetString(key); v != "" {
			return v
		}
	}
	return ""
}

// cidrCapacity is the address count of an IPv4 CIDR block.
func cidrCapacity(cidr string) (int, error) {
	if cidr == "" {
		return 0, fmt.Errorf("no CIDR block")
	}
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return 0, fmt.Errorf("parse CIDR %q: %w", cidr, err)
	}
	ones, bits := network.Mask.Size()
	if bits != 32 {
		return 0, fmt.Errorf("CIDR %q is not IPv4", cidr)
	}
	return 1 << (bits - ones), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
