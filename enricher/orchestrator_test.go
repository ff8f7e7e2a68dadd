package enricher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/rikasta/types"
)

// stubAnalyzer stamps its name on every resource it sees and can be
// told to fail for specific resource ids.
type stubAnalyzer struct {
	name        string
	failEnrich  map[string]bool
	failSummary bool
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Enrich(ctx context.Context, r types.Resource) (types.Resource, error) {
	if s.failEnrich[r.ID] {
		return r, fmt.Errorf("induced failure for %s", r.ID)
	}
	r.SetExtra("touched_by_"+s.name, true)
	return r, nil
}

func (s *stubAnalyzer) Summarize(ctx context.Context, resources []types.Resource) (map[string]any, error) {
	if s.failSummary {
		return nil, fmt.Errorf("summary failure")
	}
	return map[string]any{"count": len(resources)}, nil
}

func makeResources(n int) []types.Resource {
	resources := make([]types.Resource, 0, n)
	for i := 0; i < n; i++ {
		resources = append(resources, types.Resource{
			Service: "EC2",
			Type:    "instance",
			ID:      fmt.Sprintf("i-%03d", i),
			Region:  "us-east-1",
		})
	}
	return resources
}

func TestRunRejectsEmptyInput(t *testing.T) {
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, DefaultOptions(), nil)

	_, err := o.Run(context.Background(), nil)
	assert.Error(t, err)
	_, err = o.Run(context.Background(), []types.Resource{})
	assert.Error(t, err)
}

func TestSequentialPreservesOrder(t *testing.T) {
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, Options{Sequential: true}, nil)
	resources := makeResources(10)

	ds, err := o.Run(context.Background(), resources)
	require.NoError(t, err)
	require.Len(t, ds.Resources, 10)
	for i, r := range ds.Resources {
		assert.Equal(t, resources[i].ID, r.ID)
	}
}

func TestParallelCompleteness(t *testing.T) {
	chain := []Analyzer{&stubAnalyzer{name: "a"}, &stubAnalyzer{name: "b"}}
	resources := makeResources(50)

	sequential, err := NewOrchestrator(chain, Options{Sequential: true}, nil).Run(context.Background(), resources)
	require.NoError(t, err)

	parallel, err := NewOrchestrator(chain, Options{Workers: 8}, nil).Run(context.Background(), resources)
	require.NoError(t, err)

	require.Len(t, parallel.Resources, len(resources))

	wantIDs := make(map[string]bool, len(resources))
	for _, r := range sequential.Resources {
		wantIDs[r.ID] = true
	}
	for i, r := range parallel.Resources {
		assert.True(t, wantIDs[r.ID])
		// completed results are re-sorted by input position
		assert.Equal(t, resources[i].ID, r.ID)
		assert.True(t, r.GetBool("touched_by_a"))
		assert.True(t, r.GetBool("touched_by_b"))
	}
}

func TestErrorIsolation(t *testing.T) {
	chain := []Analyzer{
		&stubAnalyzer{name: "a"},
		&stubAnalyzer{name: "b", failEnrich: map[string]bool{"i-001": true}},
		&stubAnalyzer{name: "c"},
	}
	o := NewOrchestrator(chain, Options{Sequential: true}, nil)
	resources := makeResources(3)

	ds, err := o.Run(context.Background(), resources)
	require.NoError(t, err)
	require.Len(t, ds.Resources, 3, "the failing resource stays in the output")

	failed := ds.Resources[1]
	assert.True(t, failed.GetBool("touched_by_a"), "pre-failure enrichment is retained")
	_, hasB := failed.Extra["touched_by_b"]
	assert.False(t, hasB)
	assert.True(t, failed.GetBool("touched_by_c"), "the chain continues past the failing analyzer")

	for _, i := range []int{0, 2} {
		assert.True(t, ds.Resources[i].GetBool("touched_by_b"), "other resources are unaffected")
	}

	assert.Equal(t, 1, ds.Metadata.Statistics.FailedResources)
	assert.Equal(t, 2, ds.Metadata.Statistics.ProcessedResources)
	assert.True(t, ds.ErrorSummary.HasWarnings)
	assert.False(t, ds.ErrorSummary.HasErrors)
	require.Len(t, ds.ErrorSummary.Warnings, 1)
	assert.Contains(t, ds.ErrorSummary.Warnings[0], "i-001")
}

func TestRunDoesNotMutateCallerResources(t *testing.T) {
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, Options{Sequential: true}, nil)

	original := types.Resource{
		Service: "EC2",
		Type:    "security-group",
		ID:      "sg-1",
		Extra: map[string]any{
			"inbound_rules": []any{
				map[string]any{"protocol": "tcp", "from_port": float64(22), "cidr_blocks": []any{"0.0.0.0/0"}},
			},
		},
	}
	input := []types.Resource{original}

	ds, err := o.Run(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, ds.Resources[0].GetBool("touched_by_a"))
	_, mutated := input[0].Extra["touched_by_a"]
	assert.False(t, mutated, "caller's original record must stay untouched")
	require.Len(t, input[0].Extra, 1)
}

func TestAbandonedEnrichmentIsAnError(t *testing.T) {
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, Options{Sequential: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds, err := o.Run(ctx, makeResources(2))
	require.NoError(t, err)

	require.Len(t, ds.Resources, 2, "abandoned resources stay in the output")
	assert.Equal(t, 2, ds.Metadata.Statistics.FailedResources)
	assert.True(t, ds.ErrorSummary.HasErrors)
	assert.False(t, ds.ErrorSummary.HasWarnings)
	require.Len(t, ds.ErrorSummary.Errors, 2)
	assert.Contains(t, ds.ErrorSummary.Errors[0], "enrichment abandoned")
}

func TestSummaryFailureIsolation(t *testing.T) {
	chain := []Analyzer{
		&stubAnalyzer{name: "a", failSummary: true},
		&stubAnalyzer{name: "b"},
	}
	o := NewOrchestrator(chain, Options{Sequential: true}, nil)

	ds, err := o.Run(context.Background(), makeResources(2))
	require.NoError(t, err)

	assert.Empty(t, ds.Summaries["a"], "failed summary yields an empty map")
	assert.Equal(t, 2, ds.Summaries["b"]["count"])
	assert.True(t, ds.ErrorSummary.HasErrors)
	require.Len(t, ds.ErrorSummary.Errors, 1)
	assert.Contains(t, ds.ErrorSummary.Errors[0], "summary a")
}

func TestStatisticsPerAnalyzer(t *testing.T) {
	chain := []Analyzer{
		&stubAnalyzer{name: "a"},
		&stubAnalyzer{name: "b", failEnrich: map[string]bool{"i-000": true}},
	}
	o := NewOrchestrator(chain, Options{Sequential: true}, nil)

	ds, err := o.Run(context.Background(), makeResources(4))
	require.NoError(t, err)

	stats := ds.Metadata.Statistics
	assert.Equal(t, 4, stats.TotalResources)
	assert.Equal(t, 4, stats.PerAnalyzer["a"])
	assert.Equal(t, 3, stats.PerAnalyzer["b"])
	assert.Greater(t, stats.Elapsed, time.Duration(0))
}

func TestComplianceSummary(t *testing.T) {
	resources := []types.Resource{
		{ID: "a", ComplianceStatus: "compliant"},
		{ID: "b", ComplianceStatus: "compliant"},
		{ID: "c", ComplianceStatus: "non_compliant"},
		{ID: "d"},
	}

	summary := complianceSummary(resources)
	assert.Equal(t, 2, summary["compliant"].Count)
	assert.InDelta(t, 50.0, summary["compliant"].Percent, 0.01)
	assert.Equal(t, 1, summary["non_compliant"].Count)
	assert.Equal(t, 1, summary["unknown"].Count)
}

type captureRecorder struct {
	recorded *Dataset
	err      error
}

func (c *captureRecorder) Record(ctx context.Context, ds *Dataset) error {
	c.recorded = ds
	return c.err
}

func TestRecorderReceivesDataset(t *testing.T) {
	rec := &captureRecorder{}
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, Options{Sequential: true}, rec)

	ds, err := o.Run(context.Background(), makeResources(2))
	require.NoError(t, err)
	assert.Same(t, ds, rec.recorded)
}

func TestRecorderFailureIsRecordedNotRaised(t *testing.T) {
	rec := &captureRecorder{err: fmt.Errorf("disk full")}
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, Options{Sequential: true}, rec)

	ds, err := o.Run(context.Background(), makeResources(1))
	require.NoError(t, err)
	assert.True(t, ds.ErrorSummary.HasErrors)
	assert.Contains(t, ds.ErrorSummary.Errors[0], "disk full")
}

func TestCustomAttributesDiscovered(t *testing.T) {
	o := NewOrchestrator([]Analyzer{&stubAnalyzer{name: "a"}}, Options{Sequential: true}, nil)

	ds, err := o.Run(context.Background(), makeResources(1))
	require.NoError(t, err)
	assert.Contains(t, ds.CustomAttributes, "touched_by_a")
}
