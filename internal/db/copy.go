package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/feeschedule/internal/model"
)

// RecordSource implements pgx.CopyFromSource over a slice of records.
type RecordSource struct {
	recs []model.FeeScheduleRecord
	idx  int
}

// NewRecordSource creates a CopyFromSource for COPY into the records table.
func NewRecordSource(recs []model.FeeScheduleRecord) *RecordSource {
	return &RecordSource{recs: recs, idx: -1}
}

// Next advances to the next record.
func (s *RecordSource) Next() bool {
	s.idx++
	return s.idx < len(s.recs)
}

// Values returns the current record in model.Columns order.
func (s *RecordSource) Values() ([]any, error) {
	return s.recs[s.idx].CopyValues(), nil
}

// Err always returns nil; the slice cannot fail mid-iteration.
func (s *RecordSource) Err() error {
	return nil
}

var _ pgx.CopyFromSource = (*RecordSource)(nil)
