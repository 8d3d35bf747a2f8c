package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/store"
)

// Document phases.
const (
	PhaseFetch   = "fetch"
	PhaseExtract = "extract"
	PhasePersist = "persist"
)

// ErrNoData marks a document that produced no rows.
var ErrNoData = errors.New("no data extracted")

// DocumentError wraps a document failure with the phase where it occurred.
type DocumentError struct {
	URL   string
	Phase string
	Err   error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.URL, e.Phase, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Fetcher downloads a document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns document bytes into raw rows. It reports failure as an
// empty result.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) []model.RawRow
}

// Store is the persistence collaborator. *store.Gateway implements it.
type Store interface {
	Document(ctx context.Context, fn func(ctx context.Context, w store.Writer) error) error
	RegisterDocument(ctx context.Context, runID uuid.UUID, url, sha string, status model.DocumentStatus) (int64, error)
	FinishDocument(ctx context.Context, id int64, s *model.DocumentSummary, reason string) error
	LastLoadedDigest(ctx context.Context, url string) (string, bool, error)
}

// Recorder receives per-document outcomes. *metrics.Recorder implements it.
type Recorder interface {
	Document(s *model.DocumentSummary)
	Failed()
	RunFinished()
}

// Options tunes a run.
type Options struct {
	// Force reloads documents whose digest matches the last successful load.
	Force bool
	// FetchWorkers is how many documents are fetched and extracted ahead of
	// the one being persisted. Values below 1 mean 1.
	FetchWorkers int
	// ArchiveDir receives a Parquet copy of each document's records when set.
	ArchiveDir string
}

// Pipeline processes located documents one at a time.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	headers   *normalize.HeaderMap
	store     Store
	recorder  Recorder
	log       zerolog.Logger
	opts      Options
}

// New creates a Pipeline. recorder may be nil.
func New(f Fetcher, ex Extractor, headers *normalize.HeaderMap, st Store, recorder Recorder, log zerolog.Logger, opts Options) *Pipeline {
	if opts.FetchWorkers < 1 {
		opts.FetchWorkers = 1
	}
	return &Pipeline{
		fetcher:   f,
		extractor: ex,
		headers:   headers,
		store:     st,
		recorder:  recorder,
		log:       log,
		opts:      opts,
	}
}

// Run processes urls in order. Document failures are collected in the
// summary and never stop the run. When ctx ends, no further document is
// started and the summary is marked interrupted.
func (p *Pipeline) Run(ctx context.Context, urls []string) *model.RunSummary {
	start := time.Now()
	runID := uuid.New()
	log := p.log.With().Str("run_id", runID.String()).Logger()

	summary := &model.RunSummary{RunID: runID.String(), Located: len(urls)}
	log.Info().Int("documents", len(urls)).Int("fetch_workers", p.opts.FetchWorkers).Msg("starting run")

	p.prefetch(ctx, urls, func(doc *prepared) bool {
		if ctx.Err() != nil {
			return false
		}
		summary.Processed++

		ds, derr := p.persist(ctx, runID, doc)
		if derr != nil {
			summary.Failed = append(summary.Failed, model.FailedDocument{
				URL:    derr.URL,
				Phase:  derr.Phase,
				Reason: derr.Err.Error(),
			})
			if p.recorder != nil {
				p.recorder.Failed()
			}
			log.Warn().Err(derr.Err).Str("document", derr.URL).Str("phase", derr.Phase).Msg("document failed")
			return true
		}

		summary.Documents = append(summary.Documents, *ds)
		if ds.Status == model.StatusSkipped {
			summary.Skipped++
		}
		summary.Inserted += ds.Inserted
		summary.Updated += ds.Updated
		summary.Duplicates += ds.Duplicates
		if p.recorder != nil {
			p.recorder.Document(ds)
		}
		return true
	})

	summary.Interrupted = ctx.Err() != nil
	summary.Duration = time.Since(start)
	if p.recorder != nil {
		p.recorder.RunFinished()
	}

	ev := log.Info()
	if summary.Interrupted {
		ev = log.Warn().Bool("interrupted", true)
	}
	ev.Int("located", summary.Located).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", len(summary.Failed)).
		Int64("inserted", summary.Inserted).
		Int64("updated", summary.Updated).
		Int64("duplicates", summary.Duplicates).
		Str("total_duration", summary.Duration.String()).
		Msg("run complete")
	for _, f := range summary.Failed {
		log.Warn().Str("document", f.URL).Str("phase", f.Phase).Str("reason", f.Reason).Msg("failed document")
	}
	return summary
}
