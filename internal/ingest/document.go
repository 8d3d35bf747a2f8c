package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/archive"
	"github.com/gyeh/feeschedule/internal/model"
)

// persist normalizes, reconciles and writes one prepared document, and
// keeps its registry entry current.
func (p *Pipeline) persist(ctx context.Context, runID uuid.UUID, doc *prepared) (*model.DocumentSummary, *DocumentError) {
	log := p.log.With().Str("document", doc.url).Logger()
	ds := &model.DocumentSummary{URL: doc.url, SHA256: doc.sha}

	if doc.err != nil {
		ds.Status = model.StatusFailed
		ds.Duration = time.Since(doc.start)
		if id, err := p.register(ctx, runID, ds, log); err == nil {
			p.finish(ctx, id, ds, doc.err.Err.Error(), log)
		}
		return nil, doc.err
	}

	if doc.skipped {
		ds.Status = model.StatusSkipped
		ds.Duration = time.Since(doc.start)
		if id, err := p.register(ctx, runID, ds, log); err == nil {
			p.finish(ctx, id, ds, "", log)
		}
		log.Info().Str("sha256", doc.sha).Msg("document unchanged since last load, skipping (use --force to reload)")
		return ds, nil
	}

	ds.Status = model.StatusProcessing
	id, err := p.register(ctx, runID, ds, log)
	if err != nil {
		return nil, &DocumentError{URL: doc.url, Phase: PhasePersist, Err: err}
	}

	fail := func(phase string, err error) (*model.DocumentSummary, *DocumentError) {
		ds.Status = model.StatusFailed
		ds.Duration = time.Since(doc.start)
		p.finish(ctx, id, ds, err.Error(), log)
		return nil, &DocumentError{URL: doc.url, Phase: phase, Err: err}
	}

	if len(doc.rows) == 0 {
		return fail(PhaseExtract, ErrNoData)
	}

	recs, dropped := Normalize(doc.rows, p.headers, log)
	ds.RowsRaw = int64(len(doc.rows))
	ds.RowsValid = int64(len(recs))
	ds.RowsDropped = dropped

	if p.opts.ArchiveDir != "" {
		path, err := archive.WriteDocument(p.opts.ArchiveDir, doc.url, doc.sha, recs)
		if err != nil {
			log.Warn().Err(err).Msg("archive write failed (non-fatal)")
		} else {
			log.Debug().Str("path", path).Msg("archived records")
		}
	}

	res, w, err := Apply(ctx, p.store, recs)
	if err != nil {
		return fail(PhasePersist, err)
	}

	ds.Status = model.StatusLoaded
	ds.Inserted = w.Inserted
	ds.Updated = w.Updated
	ds.Duplicates = int64(res.Duplicates)
	ds.Superseded = int64(res.Superseded)
	ds.Duration = time.Since(doc.start)
	p.finish(ctx, id, ds, "", log)

	log.Info().
		Int("total", res.Seen).
		Int64("inserted", ds.Inserted).
		Int64("updated", ds.Updated).
		Int64("duplicates", ds.Duplicates).
		Int64("superseded", ds.Superseded).
		Int64("invalid", ds.RowsDropped).
		Str("duration", ds.Duration.String()).
		Msg("document loaded")
	return ds, nil
}

// Registry writes ignore cancellation of ctx.
func (p *Pipeline) register(ctx context.Context, runID uuid.UUID, ds *model.DocumentSummary, log zerolog.Logger) (int64, error) {
	id, err := p.store.RegisterDocument(context.WithoutCancel(ctx), runID, ds.URL, ds.SHA256, ds.Status)
	if err != nil {
		log.Warn().Err(err).Msg("register document failed")
		return 0, err
	}
	return id, nil
}

func (p *Pipeline) finish(ctx context.Context, id int64, ds *model.DocumentSummary, reason string, log zerolog.Logger) {
	if err := p.store.FinishDocument(context.WithoutCancel(ctx), id, ds, reason); err != nil {
		log.Warn().Err(err).Int64("document_id", id).Msg("finish document failed")
	}
}
