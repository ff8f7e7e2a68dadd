package enricher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/rikasta/telemetry"
	"github.com/yairfalse/rikasta/types"
)

// Orchestrator runs the analyzer chain over a resource set. Analyzers
// apply in the order given at construction; each receives the previous
// analyzer's output.
type Orchestrator struct {
	analyzers []Analyzer
	opts      Options
	recorder  DatasetRecorder
	logger    *telemetry.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator over the given analyzer
// chain. The recorder may be nil.
func NewOrchestrator(analyzers []Analyzer, opts Options, recorder DatasetRecorder) *Orchestrator {
	return &Orchestrator{
		analyzers: analyzers,
		opts:      opts.normalized(),
		recorder:  recorder,
		logger:    telemetry.NewLogger("enrichment-orchestrator"),
		now:       time.Now,
	}
}

// enrichOutcome is one resource's result plus the diagnostics its
// chain produced, tagged with the input position.
type enrichOutcome struct {
	index    int
	resource types.Resource
	applied  map[string]int
	errors   []string
	warnings []string
	failed   bool
}

// Run enriches every resource, summarizes per analyzer, and assembles
// the dataset. Only input-contract violations return an error;
// per-resource and per-summary failures land in the error summary.
func (o *Orchestrator) Run(ctx context.Context, resources []types.Resource) (*Dataset, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("resource list must not be empty")
	}
	started := o.now()

	enrichCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	var outcomes []enrichOutcome
	if o.opts.Sequential {
		outcomes = o.enrichSequential(enrichCtx, resources)
	} else {
		outcomes = o.enrichParallel(enrichCtx, resources)
	}

	stats := Statistics{
		TotalResources: len(resources),
		PerAnalyzer:    make(map[string]int),
	}
	enriched := make([]types.Resource, len(resources))
	for _, out := range outcomes {
		enriched[out.index] = out.resource
		if out.failed {
			stats.FailedResources++
		} else {
			stats.ProcessedResources++
		}
		stats.Errors = append(stats.Errors, out.errors...)
		stats.Warnings = append(stats.Warnings, out.warnings...)
		for name, n := range out.applied {
			stats.PerAnalyzer[name] += n
		}
	}

	summaries := o.summarize(ctx, enriched, &stats)

	stats.Elapsed = o.now().Sub(started)
	telemetry.ResourcesEnriched.Add(ctx, int64(stats.ProcessedResources))
	telemetry.EnrichmentFailures.Add(ctx, int64(stats.FailedResources))
	telemetry.PipelineDuration.Record(ctx, stats.Elapsed.Seconds())

	ds := assembleDataset(enriched, summaries, stats, started)

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, ds); err != nil {
			o.logger.WithContext(ctx).Error().Err(err).Msg("recording dataset failed")
			ds.ErrorSummary.Errors = append(ds.ErrorSummary.Errors, fmt.Sprintf("recording dataset: %v", err))
			ds.ErrorSummary.HasErrors = true
		}
	}

	o.logger.WithContext(ctx).Info().
		Int("total", stats.TotalResources).
		Int("processed", stats.ProcessedResources).
		Int("failed", stats.FailedResources).
		Dur("elapsed", stats.Elapsed).
		Msg("enrichment run complete")

	return ds, nil
}

func (o *Orchestrator) enrichSequential(ctx context.Context, resources []types.Resource) []enrichOutcome {
	outcomes := make([]enrichOutcome, 0, len(resources))
	for i, r := range resources {
		outcomes = append(outcomes, o.enrichOne(ctx, i, r))
	}
	return outcomes
}

// enrichParallel fans resources out over a bounded pool. Results carry
// their input index, so assembly restores input order regardless of
// completion order.
func (o *Orchestrator) enrichParallel(ctx context.Context, resources []types.Resource) []enrichOutcome {
	var mu sync.Mutex
	outcomes := make([]enrichOutcome, 0, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for i, r := range resources {
		g.Go(func() error {
			out := o.enrichOne(gctx, i, r)
			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()
			return nil
		})
	}
	// workers never return errors; failures are recorded per outcome
	_ = g.Wait()

	return outcomes
}

// enrichOne runs the full chain for one resource. The chain works on a
// deep copy; the caller's record is never touched. An analyzer failure
// keeps the pre-failure state and moves on to the next analyzer; a
// context deadline abandons the rest of the chain.
func (o *Orchestrator) enrichOne(ctx context.Context, index int, r types.Resource) enrichOutcome {
	out := enrichOutcome{
		index:    index,
		resource: r.Clone(),
		applied:  make(map[string]int),
	}

	for _, analyzer := range o.analyzers {
		// a blown global timeout is a processing error, not a warning
		if err := ctx.Err(); err != nil {
			out.errors = append(out.errors, fmt.Sprintf("resource %s: enrichment abandoned: %v", r.Key(), err))
			out.failed = true
			return out
		}

		enriched, err := analyzer.Enrich(ctx, out.resource)
		if err != nil {
			o.logger.LogEnrichmentFailure(ctx, analyzer.Name(), r.Key(), err)
			out.warnings = append(out.warnings, fmt.Sprintf("analyzer %s on resource %s: %v", analyzer.Name(), r.Key(), err))
			out.failed = true
			continue
		}
		out.resource = enriched
		out.applied[analyzer.Name()]++
	}

	return out
}

// summarize runs each analyzer's set-level summary. A failed summary
// yields an empty map plus a recorded error and never blocks the
// others.
func (o *Orchestrator) summarize(ctx context.Context, resources []types.Resource, stats *Statistics) map[string]map[string]any {
	summaries := make(map[string]map[string]any, len(o.analyzers))
	for _, analyzer := range o.analyzers {
		summary, err := analyzer.Summarize(ctx, resources)
		if err != nil {
			o.logger.LogSummaryFailure(ctx, analyzer.Name(), err)
			stats.Errors = append(stats.Errors, fmt.Sprintf("summary %s: %v", analyzer.Name(), err))
			summaries[analyzer.Name()] = map[string]any{}
			continue
		}
		summaries[analyzer.Name()] = summary
	}
	return summaries
}
