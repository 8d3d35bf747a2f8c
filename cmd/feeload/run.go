package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/feeschedule/internal/db"
	"github.com/gyeh/feeschedule/internal/exitcode"
	"github.com/gyeh/feeschedule/internal/extract"
	"github.com/gyeh/feeschedule/internal/fetch"
	"github.com/gyeh/feeschedule/internal/ingest"
	"github.com/gyeh/feeschedule/internal/locate"
	"github.com/gyeh/feeschedule/internal/metrics"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/store"
)

// openPool connects and, when requested, migrates. Failure is fatal.
func openPool(ctx context.Context, migrate bool) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return nil, fail(exitcode.DBConnError, fmt.Errorf("database connection failed: %w", err))
	}
	if migrate {
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fail(exitcode.DBConnError, err)
		}
	}
	return pool, nil
}

// documentURLs returns the explicit --url list, or locates the documents on
// the listing page.
func documentURLs(ctx context.Context, client *fetch.Client) ([]string, error) {
	if len(cfg.URLs) > 0 {
		return cfg.URLs, nil
	}
	urls, err := locate.Locate(ctx, client, cfg.ListingURL, cfg.LinkFilter)
	if err != nil {
		return nil, fail(exitcode.LocateError, err)
	}
	log.Info().Str("listing", cfg.ListingURL).Int("documents", len(urls)).Msg("located documents")
	return urls, nil
}

// ingestOnce runs one full pass over the located documents.
func ingestOnce(ctx context.Context, pool *pgxpool.Pool) (*model.RunSummary, error) {
	headers, err := cfg.Headers()
	if err != nil {
		return nil, fail(exitcode.ConfigError, err)
	}
	client := fetch.New(nil, cfg.Fetch, log)

	urls, err := documentURLs(ctx, client)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	p := ingest.New(client, extract.New(headers, log), headers, store.New(pool, log), rec, log, ingest.Options{
		Force:        cfg.Force,
		FetchWorkers: cfg.FetchWorkers,
		ArchiveDir:   cfg.ArchiveDir,
	})
	summary := p.Run(ctx, urls)

	if cfg.MetricsFile != "" {
		if err := rec.WriteFile(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("could not write metrics file")
		}
	}
	return summary, nil
}

// summaryError maps a finished run to its exit status.
func summaryError(s *model.RunSummary) error {
	switch {
	case s.Interrupted:
		return fail(exitcode.Interrupted, fmt.Errorf("interrupted after %d of %d documents", s.Processed, s.Located))
	case len(s.Failed) > 0:
		return fail(exitcode.PartialFailed, fmt.Errorf("%d of %d documents failed", len(s.Failed), s.Processed))
	}
	return nil
}
