package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/reconcile"
	"github.com/gyeh/feeschedule/internal/store"
)

// Normalize converts raw rows into valid records. Rows with no usable value
// and rows missing a key field are dropped and counted.
func Normalize(rows []model.RawRow, headers *normalize.HeaderMap, log zerolog.Logger) ([]model.FeeScheduleRecord, int64) {
	recs := make([]model.FeeScheduleRecord, 0, len(rows))
	var dropped int64
	for i, row := range rows {
		rec, ok := normalize.Record(row, headers)
		if !ok {
			dropped++
			log.Debug().Int("row", i+1).Msg("row has no usable fields, dropped")
			continue
		}
		if err := normalize.Validate(rec); err != nil {
			dropped++
			log.Debug().Err(err).Int("row", i+1).Str("code", rec.Code).Msg("invalid row dropped")
			continue
		}
		recs = append(recs, *rec)
	}
	return recs, dropped
}

// Written reports the rows a unit of work changed.
type Written struct {
	Inserted int64
	Updated  int64
}

// Apply reconciles recs against the store and writes the outcome as one
// atomic unit.
func Apply(ctx context.Context, st Store, recs []model.FeeScheduleRecord) (reconcile.Result, Written, error) {
	var res reconcile.Result
	var w Written

	err := st.Document(ctx, func(ctx context.Context, u store.Writer) error {
		existing, err := u.Lookup(ctx, reconcile.Keys(recs))
		if err != nil {
			return err
		}

		res = reconcile.Reconcile(recs, existing)

		if w.Inserted, err = u.Insert(ctx, res.New); err != nil {
			return err
		}
		if w.Updated, err = u.Update(ctx, res.Changed); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return reconcile.Result{}, Written{}, err
	}
	return res, w, nil
}
