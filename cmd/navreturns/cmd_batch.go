package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/navreturns/internal/config"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/work/batch"
)

// batchOptions are the batch command flags. Empty values keep the configuration.
type batchOptions struct {
	input       string
	output      string
	jsonOutput  string
	methodology string
	workers     int
	publish     bool
}

var batchOpts batchOptions

// batchCmd implements 'navreturns batch'
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Compute returns for every scheme in the scheme list",
	Long: `Read the scheme list, fetch and compute every fund, write the CSV export
(and optionally JSON), store the results in the results database and
optionally publish the CSV to the configured bucket.

Examples:
  navreturns batch
  navreturns batch --input schemes.csv --output returns.csv --json returns.json
  navreturns batch --methodology lumpsum --workers 4
  navreturns batch --publish`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchOpts.input, "input", "", "Scheme list CSV (default SCHEMES_FILE)")
	batchCmd.Flags().StringVar(&batchOpts.output, "output", "", "CSV export path (default OUTPUT_FILE)")
	batchCmd.Flags().StringVar(&batchOpts.jsonOutput, "json", "", "Optional JSON export path")
	batchCmd.Flags().StringVar(&batchOpts.methodology, "methodology", "", "periodic or lumpsum (default METHODOLOGY)")
	batchCmd.Flags().IntVar(&batchOpts.workers, "workers", 0, "Concurrent fetches (default MAX_WORKERS)")
	batchCmd.Flags().BoolVar(&batchOpts.publish, "publish", false, "Upload the CSV export to the configured bucket")
}

// apply overlays the flags on cfg
func (o batchOptions) apply(cfg *config.Config) error {
	if o.input != "" {
		cfg.SchemesFile = o.input
	}
	if o.output != "" {
		cfg.OutputFile = o.output
	}
	if o.jsonOutput != "" {
		cfg.OutputJSONFile = o.jsonOutput
	}
	if o.methodology != "" {
		m, err := domain.ParseMethodology(o.methodology)
		if err != nil {
			return err
		}
		cfg.Methodology = string(m)
	}
	if o.workers > 0 {
		cfg.MaxWorkers = o.workers
	}
	if !o.publish {
		cfg.Publish.Bucket = ""
	} else if !cfg.Publish.Enabled() {
		return fmt.Errorf("--publish needs R2_BUCKET and credentials")
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := batchOpts.apply(cfg); err != nil {
		return fmt.Errorf("invalid batch parameters: %w", err)
	}
	log := newLogger(cfg)

	ctx, stop := signalContext()
	defer stop()

	container, jobs, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	log.Info().
		Str("command", "batch").
		Str("input", cfg.ResolvePath(cfg.SchemesFile)).
		Str("methodology", cfg.Methodology).
		Int("workers", cfg.MaxWorkers).
		Bool("publish", cfg.Publish.Enabled()).
		Msg("Starting batch")

	report, err := jobs.Refresh.Execute(ctx)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	printReport(cmd.OutOrStdout(), report, cfg.ResolvePath(cfg.OutputFile))
	return nil
}

func printReport(w io.Writer, report *batch.RunReport, output string) {
	fmt.Fprintf(w, "Run %s (%s)\n", report.ID, report.Methodology)
	fmt.Fprintf(w, "  Funds:     %d\n", report.Total)
	fmt.Fprintf(w, "  Succeeded: %d\n", report.Succeeded)
	fmt.Fprintf(w, "  Failed:    %d\n", report.Failed)
	fmt.Fprintf(w, "  Duration:  %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  Output:    %s\n", output)
}
