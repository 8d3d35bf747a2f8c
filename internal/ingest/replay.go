package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/archive"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
)

// Replay reconciles the records of an archive file against the store. Rows
// that fail the validity filter are dropped and counted, the same as rows of
// a freshly extracted document. The archive's source URL and digest fill the
// returned summary; the document registry is not touched.
func Replay(ctx context.Context, st Store, path string, log zerolog.Logger) (*model.DocumentSummary, error) {
	start := time.Now()
	rows, err := archive.ReadAll(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	ds := &model.DocumentSummary{
		URL:     rows[0].SourceURL,
		SHA256:  rows[0].SourceSHA256,
		RowsRaw: int64(len(rows)),
	}
	log = log.With().Str("file", path).Str("document", ds.URL).Logger()

	recs := make([]model.FeeScheduleRecord, 0, len(rows))
	for i := range rows {
		rec := rows[i].Record()
		if err := normalize.Validate(&rec); err != nil {
			ds.RowsDropped++
			log.Debug().Err(err).Int64("row", rows[i].RowNumber).Str("code", rec.Code).Msg("invalid archived row dropped")
			continue
		}
		recs = append(recs, rec)
	}
	ds.RowsValid = int64(len(recs))
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: all %d archived rows invalid", ErrNoData, len(rows))
	}

	res, w, err := Apply(ctx, st, recs)
	if err != nil {
		return nil, err
	}
	ds.Status = model.StatusLoaded
	ds.Inserted = w.Inserted
	ds.Updated = w.Updated
	ds.Duplicates = int64(res.Duplicates)
	ds.Superseded = int64(res.Superseded)
	ds.Duration = time.Since(start)

	log.Info().
		Int("total", res.Seen).
		Int64("inserted", ds.Inserted).
		Int64("updated", ds.Updated).
		Int64("duplicates", ds.Duplicates).
		Int64("superseded", ds.Superseded).
		Int64("invalid", ds.RowsDropped).
		Str("duration", ds.Duration.String()).
		Msg("replay complete")
	return ds, nil
}
