package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/gyeh/feeschedule/internal/archive"
	"github.com/gyeh/feeschedule/internal/exitcode"
	"github.com/gyeh/feeschedule/internal/extract"
	"github.com/gyeh/feeschedule/internal/fetch"
	"github.com/gyeh/feeschedule/internal/ingest"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/reconcile"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run extraction and stats (no writes)",
	RunE:  runPlan,
}

func init() {
	addDocumentFlags(planCmd)
	f := planCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Local PDF to inspect instead of fetching")
	f.StringVar(&cfg.OutPath, "out", "", "Export the normalized records to a .csv or .parquet file")
	rootCmd.AddCommand(planCmd)
}

// source is one document to inspect.
type source struct {
	name string
	data []byte
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return fail(exitcode.ConfigError, err)
	}
	headers, err := cfg.Headers()
	if err != nil {
		return fail(exitcode.ConfigError, err)
	}
	ex := extract.New(headers, log)

	var sources []string
	var client *fetch.Client
	if cfg.FilePath != "" {
		sources = []string{cfg.FilePath}
	} else {
		client = fetch.New(nil, cfg.Fetch, log)
		if sources, err = documentURLs(ctx, client); err != nil {
			return err
		}
	}

	fmt.Println("=== feeload plan ===")
	var export []model.ArchiveRow
	failed := 0
	for _, name := range sources {
		if ctx.Err() != nil {
			return fail(exitcode.Interrupted, ctx.Err())
		}

		src, err := readSource(ctx, client, name)
		if err != nil {
			failed++
			fmt.Printf("\nDocument:   %s\nError:      %v\n", name, err)
			continue
		}
		rows, err := planDocument(ctx, ex, headers, src)
		if err != nil {
			failed++
			fmt.Printf("Error:      %v\n", err)
			continue
		}
		export = append(export, rows...)
	}

	if cfg.OutPath != "" {
		if err := writeExport(cfg.OutPath, export); err != nil {
			return fail(exitcode.UsageError, err)
		}
		fmt.Printf("\nExported %d records to %s\n", len(export), cfg.OutPath)
	}
	if failed > 0 {
		return fail(exitcode.PartialFailed, fmt.Errorf("%d of %d documents could not be extracted", failed, len(sources)))
	}
	return nil
}

func readSource(ctx context.Context, client *fetch.Client, name string) (*source, error) {
	if client == nil {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		return &source{name: name, data: data}, nil
	}
	data, err := client.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	return &source{name: name, data: data}, nil
}

// planDocument prints the extraction report of one document and returns its
// normalized records in export form.
func planDocument(ctx context.Context, ex *extract.Extractor, headers *normalize.HeaderMap, src *source) ([]model.ArchiveRow, error) {
	sha := normalize.BytesHash(src.data)
	fmt.Println()
	fmt.Printf("Document:   %s\n", src.name)
	fmt.Printf("SHA-256:    %s\n", sha)
	fmt.Printf("Size:       %d bytes\n", len(src.data))

	res, err := ex.Parse(ctx, src.data)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ingest.ErrNoData
	}

	recs, dropped := ingest.Normalize(res.Rows, headers, log)
	batch := reconcile.Reconcile(recs, nil)

	found := "found"
	if !res.HeaderFound {
		found = fmt.Sprintf("no %q cell, using first row", normalize.HeaderToken)
	}
	fmt.Printf("Pages:      %d (%d tables)\n", res.Pages, res.Tables)
	fmt.Printf("Header row: %d (%s)\n", res.HeaderIndex+1, found)
	fmt.Println("Columns:")
	for _, c := range res.Columns {
		fmt.Printf("  %-28s → %s\n", normalize.HeaderKey(c.Header), c.Field)
	}
	if len(res.Ignored) > 0 {
		fmt.Printf("Ignored:    %s\n", strings.Join(res.Ignored, ", "))
	}
	fmt.Printf("Rows:       %d raw, %d valid, %d invalid\n", len(res.Rows), len(recs), dropped)
	fmt.Printf("Keys:       %d distinct, %d repeated in document\n", len(reconcile.Keys(recs)), batch.Superseded)

	rows := make([]model.ArchiveRow, len(recs))
	for i := range recs {
		rows[i] = model.NewArchiveRow(src.name, sha, int64(i+1), &recs[i])
	}
	return rows, nil
}

func writeExport(path string, rows []model.ArchiveRow) error {
	switch {
	case strings.HasSuffix(path, ".parquet"):
		return archive.WriteFile(path, rows)
	case strings.HasSuffix(path, ".csv"):
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export: %w", err)
		}
		if err := gocsv.MarshalFile(&rows, f); err != nil {
			f.Close()
			return fmt.Errorf("write csv export: %w", err)
		}
		return f.Close()
	}
	return errors.New("--out must end in .csv or .parquet")
}
