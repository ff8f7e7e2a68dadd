package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	debug   bool

	rootCmd = &cobra.Command{
		Use:   "rikasta",
		Short: "Cloud Resource Enrichment Pipeline",
		Long: `Rikasta - Cloud Resource Enrichment Pipeline

Rikasta turns raw cloud-resource inventory records into a normalized,
deduplicated dataset annotated with network utilization, security risk
assessment, and cost analysis.

Feed it the JSON output of your discovery stage; it hands back an
enriched dataset ready for reporting.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`Rikasta {{.Version}} - Cloud Resource Enrichment Pipeline
`)
}
