package cost

import (
	"context"
	"strings"
	"sync"
)

// hoursPerMonth is the fixed extrapolation factor for hourly pricing.
const hoursPerMonth = 730

// PricingInfo is the unit price returned by a pricing lookup.
type PricingInfo struct {
	Service      string  `json:"service"`
	Type         string  `json:"type"`
	Region       string  `json:"region"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit"`
	Currency     string  `json:"currency"`
	PricingModel string  `json:"pricing_model"`
}

// PricingSource answers pricing queries. Lookups are cheap to miss: an
// unknown resource type returns a zero price, not an error.
type PricingSource interface {
	Lookup(ctx context.Context, service, resourceType, region string) (PricingInfo, error)
}

// pricingCache caches pricing lookups by (service, type, region) under
// a lock. Entries never expire within a process lifetime; Reset exists
// for tests.
type pricingCache struct {
	mu      sync.Mutex
	entries map[pricingKey]PricingInfo
}

type pricingKey struct {
	service string
	typ     string
	region  string
}

func newPricingCache() *pricingCache {
	return &pricingCache{entries: make(map[pricingKey]PricingInfo)}
}

func (c *pricingCache) get(key pricingKey) (PricingInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.entries[key]
	return info, ok
}

func (c *pricingCache) put(key pricingKey, info PricingInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = info
}

// Reset clears the cache.
func (c *pricingCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[pricingKey]PricingInfo)
}

func (c *pricingCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// staticPrice is a base rate in the embedded price table.
type staticPrice struct {
	unit  string
	price float64
}

// staticPrices is the embedded on-demand price table, keyed by
// service then type. Rates are rough us-east-1 on-demand figures;
// estimates built on them are approximations by design.
var staticPrices = map[string]map[string]staticPrice{
	"EC2": {
		"instance": {unit: "Hrs", price: 0.0416},
		"volume":   {unit: "GB-Mo", price: 0.08},
		"snapshot": {unit: "GB-Mo", price: 0.05},
		"ami":      {unit: "GB-Mo", price: 0.05},
	},
	"RDS": {
		"db-instance": {unit: "Hrs", price: 0.171},
		"db-cluster":  {unit: "Hrs", price: 0.342},
		"snapshot":    {unit: "GB-Mo", price: 0.095},
	},
	"S3": {
		"bucket": {unit: "GB-Mo", price: 0.023},
	},
	"LAMBDA": {
		"function": {unit: "Requests", price: 0.0000002},
	},
	"DYNAMODB": {
		"table": {unit: "Requests", price: 0.00000125},
	},
	"ELB": {
		"load-balancer": {unit: "Hrs", price: 0.0225},
		"target-group":  {unit: "Units", price: 0},
	},
	"VPC": {
		"nat-gateway":  {unit: "Hrs", price: 0.045},
		"elastic-ip":   {unit: "Hrs", price: 0.005},
		"vpc-endpoint": {unit: "Hrs", price: 0.01},
	},
	"EKS": {
		"cluster": {unit: "Hrs", price: 0.10},
	},
	"ELASTICACHE": {
		"cluster": {unit: "Hrs", price: 0.068},
	},
	"REDSHIFT": {
		"cluster": {unit: "Hrs", price: 0.25},
	},
}

// regionMultipliers adjust the base rates for the regions that price
// noticeably differently. Unlisted regions use the base rate.
var regionMultipliers = map[string]float64{
	"us-east-1":      1.0,
	"us-west-2":      1.0,
	"eu-west-1":      1.02,
	"eu-central-1":   1.06,
	"ap-southeast-1": 1.08,
	"ap-northeast-1": 1.10,
	"sa-east-1":      1.25,
}

// StaticPricingSource serves the embedded price table.
type StaticPricingSource struct{}

// NewStaticPricingSource creates the default pricing source.
func NewStaticPricingSource() *StaticPricingSource {
	return &StaticPricingSource{}
}

// Lookup returns the embedded rate for (service, type, region), or a
// zero price when the type is not modeled.
func (s *StaticPricingSource) Lookup(ctx context.Context, service, resourceType, region string) (PricingInfo, error) {
	info := PricingInfo{
		Service:      service,
		Type:         resourceType,
		Region:       region,
		Unit:         "Units",
		Currency:     "USD",
		PricingModel: "on_demand",
	}

	byType, ok := staticPrices[strings.ToUpper(service)]
	if !ok {
		return info, nil
	}
	price, ok := byType[strings.ToLower(resourceType)]
	if !ok {
		return info, nil
	}

	info.Unit = price.unit
	info.PricePerUnit = price.price
	if mult, ok := regionMultipliers[region]; ok {
		info.PricePerUnit *= mult
	}
	return info, nil
}
