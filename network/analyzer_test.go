package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/rikasta/types"
)

func subnet(id, vpcID, cidr string, available float64) types.Resource {
	return types.Resource{
		Service: "VPC",
		Type:    "subnet",
		ID:      id,
		Extra: map[string]any{
			"vpc_id":                     vpcID,
			"cidr_block":                 cidr,
			"available_ip_address_count": available,
		},
	}
}

func TestCIDRCapacity(t *testing.T) {
	tests := []struct {
		cidr     string
		capacity int
	}{
		{"10.0.0.0/24", 256},
		{"10.0.0.0/16", 65536},
		{"10.0.0.0/28", 16},
	}
	for _, tt := range tests {
		got, err := cidrCapacity(tt.cidr)
		require.NoError(t, err, tt.cidr)
		assert.Equal(t, tt.capacity, got, tt.cidr)
	}

	_, err := cidrCapacity("not-a-cidr")
	assert.Error(t, err)
	_, err = cidrCapacity("")
	assert.Error(t, err)
	_, err = cidrCapacity("2001:db8::/32")
	assert.Error(t, err)
}

func TestSubnetUtilization(t *testing.T) {
	// /24 minus the 5 reserved addresses = 251 usable, 51 free
	util, err := subnetUtilization(subnet("subnet-1", "vpc-1", "10.0.1.0/24", 51))
	require.NoError(t, err)
	assert.Equal(t, 251, util.Capacity)
	assert.Equal(t, 51, util.AvailableIPs)
	assert.Equal(t, 200, util.UsedIPs)
	assert.InDelta(t, 79.7, util.UtilizationPercent, 0.05)
}

func TestSubnetWithoutFreeCountIsEmpty(t *testing.T) {
	r := types.Resource{Type: "subnet", ID: "subnet-1", Extra: map[string]any{"cidr_block": "10.0.1.0/24"}}
	util, err := subnetUtilization(r)
	require.NoError(t, err)
	assert.Equal(t, 0, util.UsedIPs)
	assert.Zero(t, util.UtilizationPercent)
}

func TestEnrichAnnotatesSubnet(t *testing.T) {
	a := NewAnalyzer()
	enriched, err := a.Enrich(context.Background(), subnet("subnet-1", "vpc-1", "10.0.1.0/24", 100))
	require.NoError(t, err)

	capacity, ok := enriched.GetFloat("ip_capacity")
	require.True(t, ok)
	assert.Equal(t, 251.0, capacity)
	used, _ := enriched.GetFloat("ips_in_use")
	assert.Equal(t, 151.0, used)
}

func TestEnrichPassesThroughOtherTypes(t *testing.T) {
	a := NewAnalyzer()
	r := types.Resource{Service: "EC2", Type: "instance", ID: "i-1"}
	enriched, err := a.Enrich(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, r, enriched)
}

func TestSummarizeAggregatesPerVPC(t *testing.T) {
	a := NewAnalyzer()
	resources := []types.Resource{
		{Service: "VPC", Type: "vpc", ID: "vpc-1", Extra: map[string]any{"cidr_block": "10.0.0.0/16"}},
		subnet("subnet-1", "vpc-1", "10.0.1.0/24", 51),  // 200 used
		subnet("subnet-2", "vpc-1", "10.0.2.0/24", 151), // 100 used
		subnet("subnet-3", "vpc-2", "10.1.0.0/24", 251), // orphan VPC, empty
	}

	summary, err := a.Summarize(context.Background(), resources)
	require.NoError(t, err)

	assert.Equal(t, 2, summary["vpc_count"])
	assert.Equal(t, 3, summary["subnet_count"])

	vpcs := summary["vpcs"].([]VPCUtilization)
	require.Len(t, vpcs, 2)

	v1 := vpcs[0]
	assert.Equal(t, "vpc-1", v1.VPCID)
	assert.Equal(t, 65536, v1.TotalCapacity)
	assert.Equal(t, 2, v1.SubnetCount)
	assert.Equal(t, 300, v1.UsedIPs)
	assert.Equal(t, 65236, v1.AvailableCapacity)
	assert.False(t, v1.HighUtilization)

	// vpc-2 has no VPC record; accounting falls back to subnet allocation
	v2 := vpcs[1]
	assert.Equal(t, "vpc-2", v2.VPCID)
	assert.Zero(t, v2.TotalCapacity)
	assert.Equal(t, 256, v2.AvailableCapacity)
}

func TestSummarizeFlagsHighUtilization(t *testing.T) {
	a := NewAnalyzer()
	resources := []types.Resource{
		{Service: "VPC", Type: "vpc", ID: "vpc-1", Extra: map[string]any{"cidr_block": "10.0.0.0/25"}},
		subnet("subnet-1", "vpc-1", "10.0.0.0/25", 3), // 120 of 123 used
	}

	summary, err := a.Summarize(context.Background(), resources)
	require.NoError(t, err)

	crowded := summary["high_utilization_vpcs"].([]string)
	assert.Equal(t, []string{"vpc-1"}, crowded)
}

func TestSummarizeSkipsBadCIDR(t *testing.T) {
	a := NewAnalyzer()
	resources := []types.Resource{
		{Type: "subnet", ID: "subnet-bad", Extra: map[string]any{"cidr_block": "garbage"}},
		subnet("subnet-1", "vpc-1", "10.0.1.0/24", 200),
	}

	summary, err := a.Summarize(context.Background(), resources)
	require.NoError(t, err)
	assert.Equal(t, 1, summary["subnet_count"])
}

func TestSummarizeNilInput(t *testing.T) {
	a := NewAnalyzer()
	_, err := a.Summarize(context.Background(), nil)
	assert.Error(t, err)
}
