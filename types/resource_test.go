package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMapSplitsCoreAndExtra(t *testing.T) {
	r := FromMap(map[string]any{
		"service":    "EC2",
		"type":       "instance",
		"id":         "i-abc",
		"region":     "us-east-1",
		"tags":       map[string]any{"Name": "web-1"},
		"public_ip":  "54.0.0.1",
		"http_ports": []any{float64(80), float64(443)},
	})

	assert.Equal(t, "EC2", r.Service)
	assert.Equal(t, "instance", r.Type)
	assert.Equal(t, "i-abc", r.ID)
	assert.Equal(t, "web-1", r.Tags["Name"])
	assert.Equal(t, "54.0.0.1", r.GetString("public_ip"))
	assert.Len(t, r.GetSlice("http_ports"), 2)
}

func TestToMapRoundTrip(t *testing.T) {
	r := FromMap(map[string]any{
		"service":    "RDS",
		"type":       "db-instance",
		"id":         "db-1",
		"engine":     "postgres",
		"tags":       map[string]any{"Team": "data"},
		"account_id": "123456789012",
	})

	back := FromMap(r.ToMap())
	assert.Equal(t, r.Service, back.Service)
	assert.Equal(t, r.ID, back.ID)
	assert.Equal(t, r.AccountID, back.AccountID)
	assert.Equal(t, "postgres", back.GetString("engine"))
	assert.Equal(t, "data", back.Tags["Team"])
}

func TestKeyPrefersARN(t *testing.T) {
	withARN := Resource{Service: "EC2", ID: "i-1", Region: "eu-west-1", ARN: "arn:aws:ec2:eu-west-1:1:instance/i-1"}
	withoutARN := Resource{Service: "EC2", ID: "i-1", Region: "eu-west-1"}

	assert.Equal(t, withARN.ARN, withARN.Key())
	assert.Equal(t, "EC2:i-1:eu-west-1", withoutARN.Key())
}

func TestCloneIsDeep(t *testing.T) {
	r := Resource{
		Service: "S3",
		ID:      "bucket-1",
		Tags:    map[string]string{"Team": "web"},
		Extra: map[string]any{
			"versioning": map[string]any{"enabled": true},
		},
	}

	c := r.Clone()
	c.Tags["Team"] = "infra"
	c.GetMap("versioning")["enabled"] = false

	assert.Equal(t, "web", r.Tags["Team"])
	assert.Equal(t, true, r.GetMap("versioning")["enabled"])
}

func TestFieldCountCountsPopulatedOnly(t *testing.T) {
	sparse := Resource{Service: "EC2", Type: "instance", ID: "i-1"}
	full := Resource{
		Service: "EC2", Type: "instance", ID: "i-1",
		Region: "us-east-1", AccountID: "123456789012",
		Tags:  map[string]string{"Name": "web"},
		Extra: map[string]any{"state": "running", "empty": ""},
	}

	assert.Equal(t, 3, sparse.FieldCount())
	// 5 core + tags + state; the empty extra does not count
	assert.Equal(t, 7, full.FieldCount())
}

func TestCustomAttributeNames(t *testing.T) {
	resources := []Resource{
		{ID: "a", Extra: map[string]any{"engine": "mysql"}},
		{ID: "b", Extra: map[string]any{"state": "running", "engine": "postgres"}},
	}

	names := CustomAttributeNames(resources)
	require.Equal(t, []string{"engine", "state"}, names)
}

func TestMaxRiskLevel(t *testing.T) {
	assert.Equal(t, RiskCritical, MaxRiskLevel(RiskLow, RiskCritical, RiskMedium))
	assert.Equal(t, RiskLow, MaxRiskLevel())
	assert.True(t, RiskHigh.AtLeast(RiskMedium))
	assert.False(t, RiskLow.AtLeast(RiskHigh))
}
