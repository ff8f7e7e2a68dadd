// Package aws provides the CloudWatch-backed activity source for
// forgotten-resource detection.
package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/yairfalse/rikasta/cost"
	"github.com/yairfalse/rikasta/telemetry"
	"github.com/yairfalse/rikasta/types"
)

// metricPeriodSeconds is the CloudWatch aggregation period (1 hour).
const metricPeriodSeconds = 3600

// CloudWatchAPI is the slice of the CloudWatch client the activity
// source needs.
type CloudWatchAPI interface {
	GetMetricData(ctx context.Context, input *cloudwatch.GetMetricDataInput, opts ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// metricSpec maps one activity indicator to its CloudWatch metric.
type metricSpec struct {
	indicator string // key under which the series is reported
	namespace string
	metric    string
	dimension string
	stat      string
}

// serviceMetrics lists the activity indicators queried per service.
var serviceMetrics = map[string][]metricSpec{
	"EC2": {
		{indicator: "cpu_utilization", namespace: "AWS/EC2", metric: "CPUUtilization", dimension: "InstanceId", stat: "Average"},
	},
	"RDS": {
		{indicator: "database_connections", namespace: "AWS/RDS", metric: "DatabaseConnections", dimension: "DBInstanceIdentifier", stat: "Average"},
		{indicator: "cpu_utilization", namespace: "AWS/RDS", metric: "CPUUtilization", dimension: "DBInstanceIdentifier", stat: "Average"},
	},
	"LAMBDA": {
		{indicator: "invocations", namespace: "AWS/Lambda", metric: "Invocations", dimension: "FunctionName", stat: "Sum"},
	},
	"ELB": {
		{indicator: "request_count", namespace: "AWS/ApplicationELB", metric: "RequestCount", dimension: "LoadBalancer", stat: "Sum"},
	},
	"DYNAMODB": {
		{indicator: "requests", namespace: "AWS/DynamoDB", metric: "ConsumedReadCapacityUnits", dimension: "TableName", stat: "Sum"},
	},
}

// ActivitySource queries CloudWatch for a resource's activity
// indicators. It implements cost.ActivitySource.
type ActivitySource struct {
	client CloudWatchAPI
	logger *telemetry.Logger
}

// NewActivitySource creates an activity source over an existing
// CloudWatch client.
func NewActivitySource(client CloudWatchAPI) *ActivitySource {
	return &ActivitySource{
		client: client,
		logger: telemetry.NewLogger("cloudwatch-activity"),
	}
}

// NewActivitySourceFromConfig builds the CloudWatch client from the
// default AWS credential chain for the given region.
func NewActivitySourceFromConfig(ctx context.Context, region string) (*ActivitySource, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewActivitySource(cloudwatch.NewFromConfig(cfg)), nil
}

// Metrics fetches the resource's activity indicators over the trailing
// window. Services with no known indicators yield an empty map.
func (s *ActivitySource) Metrics(ctx context.Context, r types.Resource, window time.Duration) (map[string][]cost.Datapoint, error) {
	specs := serviceMetrics[strings.ToUpper(r.Service)]
	indicators := make(map[string][]cost.Datapoint, len(specs))
	if len(specs) == 0 || r.ID == "" {
		return indicators, nil
	}

	now := time.Now().UTC()
	start := now.Add(-window)

	queries := make([]cwtypes.MetricDataQuery, 0, len(specs))
	for i, spec := range specs {
		queries = append(queries, cwtypes.MetricDataQuery{
			Id: awssdk.String(fmt.Sprintf("m%d", i)),
			MetricStat: &cwtypes.MetricStat{
				Metric: &cwtypes.Metric{
					Namespace:  awssdk.String(spec.namespace),
					MetricName: awssdk.String(spec.metric),
					Dimensions: []cwtypes.Dimension{
						{Name: awssdk.String(spec.dimension), Value: awssdk.String(r.ID)},
					},
				},
				Period: awssdk.Int32(metricPeriodSeconds),
				Stat:   awssdk.String(spec.stat),
			},
		})
	}

	out, err := s.client.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		MetricDataQueries: queries,
		StartTime:         awssdk.Time(start),
		EndTime:           awssdk.Time(now),
	})
	if err != nil {
		return nil, fmt.Errorf("get metric data for %s: %w", r.ID, err)
	}

	for _, result := range out.MetricDataResults {
		if result.Id == nil {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(*result.Id, "m%d", &idx); err != nil || idx >= len(specs) {
			continue
		}

		series := make([]cost.Datapoint, 0, len(result.Values))
		for i := range result.Values {
			if i >= len(result.Timestamps) {
				break
			}
			series = append(series, cost.Datapoint{
				Timestamp: result.Timestamps[i],
				Value:     result.Values[i],
			})
		}
		indicators[specs[idx].indicator] = series
	}

	s.logger.WithContext(ctx).Debug().
		Str("resource_id", r.ID).
		Str("service", r.Service).
		Int("indicators", len(indicators)).
		Msg("fetched activity metrics")

	return indicators, nil
}
