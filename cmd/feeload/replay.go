package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/feeschedule/internal/exitcode"
	"github.com/gyeh/feeschedule/internal/ingest"
	"github.com/gyeh/feeschedule/internal/store"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Reconcile an archived document's records against the database",
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Archive Parquet file written by --archive-dir or plan --out (required)")
	f.BoolVar(&cfg.Migrate, "migrate", false, "Apply schema migrations before replaying")
	_ = replayCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
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

	ds, err := ingest.Replay(ctx, store.New(pool, log), cfg.FilePath, log)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return fail(exitcode.Interrupted, err)
	case errors.Is(err, ingest.ErrNoData):
		return fail(exitcode.ConfigError, fmt.Errorf("replay %s: %w", cfg.FilePath, err))
	default:
		return fail(exitcode.PartialFailed, fmt.Errorf("replay %s: %w", cfg.FilePath, err))
	}

	fmt.Printf("Replay complete: %d records (%d invalid), %d inserted, %d updated, %d duplicates\n",
		ds.RowsValid, ds.RowsDropped, ds.Inserted, ds.Updated, ds.Duplicates)
	return nil
}
