package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/feeschedule/internal/exitcode"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Locate, extract and reconcile fee-schedule documents into the database",
	RunE:  runIngest,
}

func addDocumentFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&cfg.URLs, "url", nil, "Document URL to process instead of locating (repeatable)")
	f.IntVar(&cfg.FetchWorkers, "fetch-workers", cfg.FetchWorkers, "Documents fetched and extracted ahead of the one being written")
}

func addIngestFlags(cmd *cobra.Command) {
	addDocumentFlags(cmd)
	f := cmd.Flags()
	f.BoolVar(&cfg.Force, "force", false, "Reload documents whose SHA-256 matches the last successful load")
	f.BoolVar(&cfg.Migrate, "migrate", false, "Apply schema migrations before ingesting")
	f.StringVar(&cfg.ArchiveDir, "archive-dir", "", "Write each document's records to a Parquet file in this directory")
	f.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file after each run")
}

func init() {
	addIngestFlags(ingestCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ValidateWithDSN(); err != nil {
		return fail(exitcode.ConfigError, err)
	}

	pool, err := openPool(ctx, cfg.Migrate)
	if err != nil {
		return err
	}
	defer pool.Close()

	summary, err := ingestOnce(ctx, pool)
	if err != nil {
		return err
	}

	fmt.Printf("Ingest complete: %d/%d documents processed, %d skipped, %d failed; %d inserted, %d updated, %d duplicates (%.1fs)\n",
		summary.Processed, summary.Located, summary.Skipped, len(summary.Failed),
		summary.Inserted, summary.Updated, summary.Duplicates, summary.Duration.Seconds())
	for _, f := range summary.Failed {
		fmt.Printf("  FAILED %s [%s]: %s\n", f.URL, f.Phase, f.Reason)
	}
	return summaryError(summary)
}
