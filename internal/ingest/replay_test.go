package ingest_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/feeschedule/internal/archive"
	"github.com/gyeh/feeschedule/internal/ingest"
	"github.com/gyeh/feeschedule/internal/model"
)

const replayURL = "https://www.pa.gov/content/2024-part-b.pdf"

func writeArchive(t *testing.T, recs []model.FeeScheduleRecord) string {
	t.Helper()
	rows := make([]model.ArchiveRow, len(recs))
	for i := range recs {
		rows[i] = model.NewArchiveRow(replayURL, "beef", int64(i+1), &recs[i])
	}
	p := filepath.Join(t.TempDir(), "replay.parquet")
	require.NoError(t, archive.WriteFile(p, rows))
	return p
}

func TestReplay_StoresEveryArchivedRecord(t *testing.T) {
	recs := make([]model.FeeScheduleRecord, 0, 601)
	for i := 0; i < 600; i++ {
		recs = append(recs, model.FeeScheduleRecord{
			Code:              fmt.Sprintf("C%04d", i),
			Modifier:          strPtr(fmt.Sprintf("M%d", i)),
			Location:          "004",
			FeeScheduleAmount: strPtr(fmt.Sprintf("%d.00", i)),
		})
	}
	// Edited by hand after archiving: no code.
	recs = append(recs, model.FeeScheduleRecord{Code: "  ", Location: "004", FeeScheduleAmount: strPtr("1.00")})
	p := writeArchive(t, recs)

	st := newFakeStore(model.FeeScheduleRecord{Code: "C0000", Modifier: strPtr("M0"), Location: "004", FeeScheduleAmount: strPtr("9.99")})

	ds, err := ingest.Replay(context.Background(), st, p, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, replayURL, ds.URL)
	assert.Equal(t, "beef", ds.SHA256)
	assert.Equal(t, model.StatusLoaded, ds.Status)
	assert.EqualValues(t, 601, ds.RowsRaw)
	assert.EqualValues(t, 600, ds.RowsValid)
	assert.EqualValues(t, 1, ds.RowsDropped)
	assert.EqualValues(t, 599, ds.Inserted)
	assert.EqualValues(t, 1, ds.Updated)
	assert.Zero(t, ds.Duplicates)

	for i := 0; i < 600; i++ {
		got := st.record(t, fmt.Sprintf("C%04d", i), strPtr(fmt.Sprintf("M%d", i)), "004")
		assert.Equal(t, recs[i], got, "row %d", i+1)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Len(t, st.records, 600)
	assert.Empty(t, st.entries)
}

func TestReplay_SecondPassIsAllDuplicates(t *testing.T) {
	p := writeArchive(t, []model.FeeScheduleRecord{
		{Code: "00100", Location: "004", FeeScheduleAmount: strPtr("1.00")},
		{Code: "00100", Modifier: strPtr("26"), Location: "004", FeeScheduleAmount: strPtr("2.00")},
	})
	st := newFakeStore()
	ctx := context.Background()

	first, err := ingest.Replay(ctx, st, p, zerolog.Nop())
	require.NoError(t, err)
	assert.EqualValues(t, 2, first.Inserted)

	second, err := ingest.Replay(ctx, st, p, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.Updated)
	assert.EqualValues(t, 2, second.Duplicates)
}

func TestReplay_NoValidRows(t *testing.T) {
	p := writeArchive(t, []model.FeeScheduleRecord{
		{Code: "00100", FeeScheduleAmount: strPtr("1.00")},
		{Location: "004"},
	})
	st := newFakeStore()

	_, err := ingest.Replay(context.Background(), st, p, zerolog.Nop())
	require.ErrorIs(t, err, ingest.ErrNoData)
	assert.Empty(t, st.records)
}

func TestReplay_EmptyArchive(t *testing.T) {
	p := writeArchive(t, nil)

	_, err := ingest.Replay(context.Background(), newFakeStore(), p, zerolog.Nop())
	assert.ErrorIs(t, err, ingest.ErrNoData)
}

func TestReplay_WriteFailureLeavesStoreUntouched(t *testing.T) {
	p := writeArchive(t, []model.FeeScheduleRecord{
		{Code: "00100", Location: "004", FeeScheduleAmount: strPtr("2.00")},
		{Code: "99999", Location: "004", FeeScheduleAmount: strPtr("9.00")},
	})
	st := newFakeStore(model.FeeScheduleRecord{Code: "00100", Location: "004", FeeScheduleAmount: strPtr("1.00")})
	st.failCodes["99999"] = true

	_, err := ingest.Replay(context.Background(), st, p, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, "1.00", *st.record(t, "00100", nil, "004").FeeScheduleAmount)
}
