package cost

import (
	"context"
	"time"

	"github.com/yairfalse/rikasta/types"
)

// ActivitySource provides per-metric activity time series for a
// resource over a trailing window.
type ActivitySource interface {
	Metrics(ctx context.Context, r types.Resource, window time.Duration) (map[string][]Datapoint, error)
}

// activityThresholds define, per metric, the value a datapoint must
// exceed to count as activity.
var activityThresholds = map[string]float64{
	"cpu_utilization":      5.0, // percent
	"database_connections": 1.0,
	"connections":          1.0,
	"request_count":        10.0,
	"requests":             10.0,
	"invocations":          10.0,
}

// isActive reports whether a datapoint for the given metric counts as
// activity. Unknown metrics count any positive value.
func isActive(metric string, value float64) bool {
	if threshold, ok := activityThresholds[metric]; ok {
		return value > threshold
	}
	return value > 0
}

// NoActivitySource reports no activity for any resource. It is the
// fallback when no metrics client is configured; every candidate then
// appears fully inactive.
type NoActivitySource struct{}

// Metrics always returns an empty series.
func (NoActivitySource) Metrics(ctx context.Context, r types.Resource, window time.Duration) (map[string][]Datapoint, error) {
	return map[string][]Datapoint{}, nil
}
