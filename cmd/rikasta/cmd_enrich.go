package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/rikasta/config"
	"github.com/yairfalse/rikasta/cost"
	"github.com/yairfalse/rikasta/enricher"
	"github.com/yairfalse/rikasta/network"
	"github.com/yairfalse/rikasta/normalizer"
	"github.com/yairfalse/rikasta/providers/aws"
	"github.com/yairfalse/rikasta/security"
	"github.com/yairfalse/rikasta/storage"
	"github.com/yairfalse/rikasta/telemetry"
)

var (
	enrichInput      string
	enrichOutput     string
	enrichConfigPath string
	enrichSequential bool
	enrichWorkers    int
	enrichTimeout    time.Duration
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Normalize and enrich a discovery inventory",
	Long: `Read raw discovery records from a JSON file, normalize and
deduplicate them, run the analyzer chain, and write the enriched
dataset as JSON.`,
	Example: `  rikasta enrich --input inventory.json --output dataset.json
  rikasta enrich --input inventory.json --sequential
  rikasta enrich --input - --workers 8 --timeout 2m`,
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().StringVarP(&enrichInput, "input", "i", "-", "Input JSON file ('-' for stdin)")
	enrichCmd.Flags().StringVarP(&enrichOutput, "output", "o", "-", "Output JSON file ('-' for stdout)")
	enrichCmd.Flags().StringVarP(&enrichConfigPath, "config", "c", "", "Configuration file")
	enrichCmd.Flags().BoolVar(&enrichSequential, "sequential", false, "Single-worker mode with deterministic order")
	enrichCmd.Flags().IntVar(&enrichWorkers, "workers", 0, "Parallel worker-pool size (overrides config)")
	enrichCmd.Flags().DurationVar(&enrichTimeout, "timeout", 0, "Global enrichment timeout (overrides config)")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadEnrichConfig()
	if err != nil {
		return err
	}

	rawItems, err := readInventory(enrichInput)
	if err != nil {
		return err
	}

	resources, err := normalizer.New().Normalize(rawItems)
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}
	telemetry.ResourcesNormalized.Add(ctx, int64(len(resources)))

	analyzers, err := buildAnalyzers(ctx, cfg)
	if err != nil {
		return err
	}

	var recorder enricher.DatasetRecorder
	if cfg.Store.Enabled {
		store, err := storage.NewDatasetStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("opening dataset store: %w", err)
		}
		defer store.Close()
		recorder = store
	}

	orchestrator := enricher.NewOrchestrator(analyzers, enricher.Options{
		Sequential: cfg.Pipeline.Sequential,
		Workers:    cfg.Pipeline.Workers,
		Timeout:    cfg.Pipeline.Timeout,
	}, recorder)

	dataset, err := orchestrator.Run(ctx, resources)
	if err != nil {
		return fmt.Errorf("enrichment failed: %w", err)
	}

	return writeDataset(enrichOutput, dataset)
}

func loadEnrichConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if enrichConfigPath != "" {
		loaded, err := config.LoadConfig(enrichConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if enrichSequential {
		cfg.Pipeline.Sequential = true
	}
	if enrichWorkers > 0 {
		cfg.Pipeline.Workers = enrichWorkers
	}
	if enrichTimeout > 0 {
		cfg.Pipeline.Timeout = enrichTimeout
	}
	return cfg, nil
}

// buildAnalyzers assembles the enabled analyzer chain in its fixed
// order: network, security, cost.
func buildAnalyzers(ctx context.Context, cfg *config.Config) ([]enricher.Analyzer, error) {
	var analyzers []enricher.Analyzer

	if cfg.Analyzers.Network {
		analyzers = append(analyzers, network.NewAnalyzer())
	}
	if cfg.Analyzers.Security {
		analyzers = append(analyzers, security.NewAnalyzer())
	}
	if cfg.Analyzers.Cost {
		var activity cost.ActivitySource
		if cfg.Cost.UseCloudWatch {
			source, err := aws.NewActivitySourceFromConfig(ctx, cfg.Region)
			if err != nil {
				return nil, fmt.Errorf("creating CloudWatch activity source: %w", err)
			}
			activity = source
		}
		analyzers = append(analyzers, cost.NewAnalyzer(cost.Config{
			ExpensiveThreshold: cfg.Cost.ExpensiveThreshold,
			HighCostThreshold:  cfg.Cost.HighCostThreshold,
			InactivityDays:     cfg.Cost.InactivityDays,
			TrendAlertPercent:  cfg.Cost.TrendAlertPercent,
		}, nil, activity))
	}

	if len(analyzers) == 0 {
		return nil, fmt.Errorf("no analyzers enabled")
	}
	return analyzers, nil
}

func readInventory(path string) ([]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- path is intentional user input
	}
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}

	var rawItems []any
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return nil, fmt.Errorf("parsing inventory: %w", err)
	}
	return rawItems, nil
}

func writeDataset(path string, dataset *enricher.Dataset) error {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644) // #nosec G306 -- report output
}
