// Package enricher orchestrates the per-resource analyzer chain and
// assembles the final enriched dataset.
package enricher

import (
	"context"
	"time"

	"github.com/yairfalse/rikasta/types"
)

// Analyzer is the enrichment contract every analyzer implements.
// Enrich must treat its input as immutable and return the annotated
// copy; Summarize runs once over the whole enriched set.
type Analyzer interface {
	Name() string
	Enrich(ctx context.Context, r types.Resource) (types.Resource, error)
	Summarize(ctx context.Context, resources []types.Resource) (map[string]any, error)
}

// DatasetRecorder persists a completed dataset. The orchestrator calls
// it once per run when a recorder is configured.
type DatasetRecorder interface {
	Record(ctx context.Context, ds *Dataset) error
}

// Options tune a single orchestrator run.
type Options struct {
	Sequential bool          // single worker, output order == input order
	Workers    int           // parallel worker-pool size
	Timeout    time.Duration // wall-clock budget for the whole enrichment phase
}

// DefaultOptions returns the orchestrator defaults.
func DefaultOptions() Options {
	return Options{
		Workers: 4,
		Timeout: 5 * time.Minute,
	}
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultOptions().Workers
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultOptions().Timeout
	}
	return o
}
