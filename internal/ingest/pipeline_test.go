package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/feeschedule/internal/extract"
	"github.com/gyeh/feeschedule/internal/ingest"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/pdffixture"
	"github.com/gyeh/feeschedule/internal/reconcile"
	"github.com/gyeh/feeschedule/internal/store"
)

// ---------- fixtures ----------

func strPtr(s string) *string { return &s }

// feeDoc renders a one-page schedule with a banner above the header row.
func feeDoc(rows ...[]string) []byte {
	t := pdffixture.Table{
		{"Workers Compensation Part B Fee Schedule"},
		{"CPT/HCPC\nCode", "Modifier", "Medicare\nLocation", "Fee Schedule\nAmount"},
	}
	t = append(t, rows...)
	return pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{Tables: []pdffixture.Table{t}}}})
}

type fakeFetcher struct {
	mu     sync.Mutex
	docs   map[string][]byte
	errs   map[string]error
	delays map[string]time.Duration
	hook   func(url string)
	calls  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook, delay := f.hook, f.delays[url]
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if data, ok := f.docs[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("GET %s: unexpected status 404 Not Found", url)
}

type registryEntry struct {
	url    string
	sha    string
	status model.DocumentStatus
	reason string
	counts model.DocumentSummary
}

// fakeStore keeps records in memory and applies a document's writes only
// when its unit returns nil.
type fakeStore struct {
	mu        sync.Mutex
	records   map[model.Key]model.FeeScheduleRecord
	loaded    map[string]string
	entries   []registryEntry
	failCodes map[string]bool
}

func newFakeStore(recs ...model.FeeScheduleRecord) *fakeStore {
	s := &fakeStore{
		records:   make(map[model.Key]model.FeeScheduleRecord),
		loaded:    make(map[string]string),
		failCodes: make(map[string]bool),
	}
	for _, r := range recs {
		s.records[r.Key()] = r
	}
	return s
}

func (s *fakeStore) Document(ctx context.Context, fn func(ctx context.Context, w store.Writer) error) error {
	s.mu.Lock()
	u := &fakeUnit{store: s, staged: maps.Clone(s.records)}
	s.mu.Unlock()

	if err := fn(ctx, u); err != nil {
		return err
	}
	s.mu.Lock()
	s.records = u.staged
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) RegisterDocument(_ context.Context, _ uuid.UUID, url, sha string, status model.DocumentStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, registryEntry{url: url, sha: sha, status: status})
	return int64(len(s.entries)), nil
}

func (s *fakeStore) FinishDocument(_ context.Context, id int64, ds *model.DocumentSummary, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &s.entries[id-1]
	e.status = ds.Status
	e.reason = reason
	e.counts = *ds
	if ds.Status == model.StatusLoaded {
		s.loaded[e.url] = e.sha
	}
	return nil
}

func (s *fakeStore) LastLoadedDigest(_ context.Context, url string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sha, ok := s.loaded[url]
	return sha, ok, nil
}

func (s *fakeStore) record(t *testing.T, code string, modifier *string, location string) model.FeeScheduleRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[model.NewKey(code, modifier, location)]
	if !ok {
		t.Fatalf("record %s/%v/%s not stored", code, modifier, location)
	}
	return rec
}

type fakeUnit struct {
	store  *fakeStore
	staged map[model.Key]model.FeeScheduleRecord
}

func (u *fakeUnit) Lookup(_ context.Context, keys []model.Key) (reconcile.Lookup, error) {
	found := make(reconcile.Lookup)
	for _, k := range keys {
		if rec, ok := u.staged[k]; ok {
			found[k] = rec.Values()
		}
	}
	return found, nil
}

func (u *fakeUnit) Insert(_ context.Context, recs []model.FeeScheduleRecord) (int64, error) {
	for _, r := range recs {
		if u.store.failCodes[r.Code] {
			return 0, errors.New("copy records: duplicate key value violates unique constraint")
		}
		u.staged[r.Key()] = r
	}
	return int64(len(recs)), nil
}

func (u *fakeUnit) Update(_ context.Context, recs []model.FeeScheduleRecord) (int64, error) {
	for _, r := range recs {
		u.staged[r.Key()] = r
	}
	return int64(len(recs)), nil
}

type fakeRecorder struct {
	documents, failed, runs int
}

func (r *fakeRecorder) Document(*model.DocumentSummary) { r.documents++ }
func (r *fakeRecorder) Failed()                         { r.failed++ }
func (r *fakeRecorder) RunFinished()                    { r.runs++ }

func newPipeline(f ingest.Fetcher, st ingest.Store, opts ingest.Options) *ingest.Pipeline {
	headers := normalize.DefaultHeaders()
	return ingest.New(f, extract.New(headers, zerolog.Nop()), headers, st, nil, zerolog.Nop(), opts)
}

// ---------- tests ----------

func TestRun_TransportErrorContinues(t *testing.T) {
	const a, b, c = "https://www.pa.gov/a-part-b.pdf", "https://www.pa.gov/b-part-b.pdf", "https://www.pa.gov/c-part-b.pdf"
	f := &fakeFetcher{
		docs: map[string][]byte{
			a: feeDoc([]string{"00100", "", "004", "10.00"}),
			c: feeDoc([]string{"00300", "", "004", "30.00"}, []string{"00301", "26", "004", "31.00"}),
		},
		errs: map[string]error{b: errors.New("dial tcp 203.0.113.7:443: connect: connection refused")},
	}
	st := newFakeStore()
	rec := &fakeRecorder{}
	headers := normalize.DefaultHeaders()
	p := ingest.New(f, extract.New(headers, zerolog.Nop()), headers, st, rec, zerolog.Nop(), ingest.Options{})

	summary := p.Run(context.Background(), []string{a, b, c})

	assert.Equal(t, 3, summary.Located)
	assert.Equal(t, 3, summary.Processed)
	assert.False(t, summary.Interrupted)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, model.FailedDocument{
		URL:    b,
		Phase:  ingest.PhaseFetch,
		Reason: "dial tcp 203.0.113.7:443: connect: connection refused",
	}, summary.Failed[0])

	require.Len(t, summary.Documents, 2)
	assert.Equal(t, a, summary.Documents[0].URL)
	assert.Equal(t, c, summary.Documents[1].URL)
	assert.EqualValues(t, 3, summary.Inserted)

	assert.Equal(t, 2, rec.documents)
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, 1, rec.runs)

	require.Len(t, st.entries, 3)
	assert.Equal(t, model.StatusFailed, st.entries[1].status)
	assert.Contains(t, st.entries[1].reason, "connection refused")
}

func TestRun_NoDataIsAFailure(t *testing.T) {
	const url = "https://www.pa.gov/broken-part-b.pdf"
	f := &fakeFetcher{docs: map[string][]byte{url: []byte("<html>moved</html>")}}
	st := newFakeStore()

	summary := newPipeline(f, st, ingest.Options{}).Run(context.Background(), []string{url})

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, ingest.PhaseExtract, summary.Failed[0].Phase)
	assert.Equal(t, ingest.ErrNoData.Error(), summary.Failed[0].Reason)
	assert.Empty(t, summary.Documents)
	require.Len(t, st.entries, 1)
	assert.Equal(t, model.StatusFailed, st.entries[0].status)
	assert.NotEmpty(t, st.entries[0].sha)
}

func TestRun_ReconcilesAgainstStore(t *testing.T) {
	const url = "https://www.pa.gov/2024-part-b.pdf"
	st := newFakeStore(
		model.FeeScheduleRecord{Code: "0001U", Location: "004", FeeScheduleAmount: strPtr("12.34")},
		model.FeeScheduleRecord{Code: "00100", Modifier: strPtr("26"), Location: "004", FeeScheduleAmount: strPtr("5.00")},
	)
	f := &fakeFetcher{docs: map[string][]byte{url: feeDoc(
		[]string{"0001U", "X", "004", "56.78"}, // modifier X is absent: changed
		[]string{"00100", "26", "004", "5.00"}, // duplicate
		[]string{"00842", "", "004", "69.62"},  // new
		[]string{"00843", "", "", "1.00"},      // no location: dropped
		[]string{"00842", "", "004", "70.00"},  // same key again: replaces the new row
		[]string{"00844", "N/A", "004", "N/A"}, // new, modifier absent
	)}}

	summary := newPipeline(f, st, ingest.Options{}).Run(context.Background(), []string{url})
	require.Empty(t, summary.Failed)
	require.Len(t, summary.Documents, 1)

	ds := summary.Documents[0]
	assert.Equal(t, model.StatusLoaded, ds.Status)
	assert.EqualValues(t, 6, ds.RowsRaw)
	assert.EqualValues(t, 5, ds.RowsValid)
	assert.EqualValues(t, 1, ds.RowsDropped)
	assert.EqualValues(t, 2, ds.Inserted)
	assert.EqualValues(t, 1, ds.Updated)
	assert.EqualValues(t, 2, ds.Duplicates)
	assert.EqualValues(t, 1, ds.Superseded)

	assert.Equal(t, "56.78", *st.record(t, "0001U", nil, "004").FeeScheduleAmount)
	assert.Equal(t, "70.00", *st.record(t, "00842", nil, "004").FeeScheduleAmount)
	assert.Nil(t, st.record(t, "00844", nil, "004").FeeScheduleAmount)
}

func TestRun_WriteFailureRollsBackDocument(t *testing.T) {
	const bad, good = "https://www.pa.gov/bad-part-b.pdf", "https://www.pa.gov/good-part-b.pdf"
	st := newFakeStore(model.FeeScheduleRecord{Code: "00100", Location: "004", FeeScheduleAmount: strPtr("1.00")})
	st.failCodes["99999"] = true
	f := &fakeFetcher{docs: map[string][]byte{
		bad:  feeDoc([]string{"00100", "", "004", "2.00"}, []string{"99999", "", "004", "9.00"}),
		good: feeDoc([]string{"00200", "", "004", "3.00"}),
	}}

	summary := newPipeline(f, st, ingest.Options{}).Run(context.Background(), []string{bad, good})

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, bad, summary.Failed[0].URL)
	assert.Equal(t, ingest.PhasePersist, summary.Failed[0].Phase)
	// The update in the failed document never landed.
	assert.Equal(t, "1.00", *st.record(t, "00100", nil, "004").FeeScheduleAmount)
	st.record(t, "00200", nil, "004")
	assert.EqualValues(t, 1, summary.Inserted)
}

func TestRun_SkipsUnchangedDocuments(t *testing.T) {
	const url = "https://www.pa.gov/2024-part-b.pdf"
	f := &fakeFetcher{docs: map[string][]byte{url: feeDoc([]string{"00100", "", "004", "1.00"})}}
	st := newFakeStore()
	ctx := context.Background()

	first := newPipeline(f, st, ingest.Options{}).Run(ctx, []string{url})
	require.Len(t, first.Documents, 1)
	assert.EqualValues(t, 1, first.Inserted)

	second := newPipeline(f, st, ingest.Options{}).Run(ctx, []string{url})
	require.Len(t, second.Documents, 1)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, model.StatusSkipped, second.Documents[0].Status)

	forced := newPipeline(f, st, ingest.Options{Force: true}).Run(ctx, []string{url})
	require.Len(t, forced.Documents, 1)
	assert.Equal(t, 0, forced.Skipped)
	assert.EqualValues(t, 1, forced.Duplicates)
	assert.EqualValues(t, 0, forced.Inserted)
}

func TestRun_InterruptStopsBeforeNextDocument(t *testing.T) {
	const a, b, c = "https://www.pa.gov/a.pdf", "https://www.pa.gov/b.pdf", "https://www.pa.gov/c.pdf"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &fakeFetcher{
		docs: map[string][]byte{
			a: feeDoc([]string{"00100", "", "004", "1.00"}),
			b: feeDoc([]string{"00200", "", "004", "2.00"}),
			c: feeDoc([]string{"00300", "", "004", "3.00"}),
		},
		hook: func(url string) {
			if url == b {
				cancel()
			}
		},
	}
	st := newFakeStore()

	summary := newPipeline(f, st, ingest.Options{}).Run(ctx, []string{a, b, c})

	assert.True(t, summary.Interrupted)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.Failed)
	assert.EqualValues(t, 1, summary.Inserted)
	assert.NotContains(t, f.calls, c)
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := newPipeline(&fakeFetcher{}, newFakeStore(), ingest.Options{}).Run(ctx, []string{"https://www.pa.gov/a.pdf"})
	assert.True(t, summary.Interrupted)
	assert.Zero(t, summary.Processed)
}

func TestRun_PrefetchKeepsDiscoveryOrder(t *testing.T) {
	urls := []string{"https://www.pa.gov/1.pdf", "https://www.pa.gov/2.pdf", "https://www.pa.gov/3.pdf", "https://www.pa.gov/4.pdf"}
	f := &fakeFetcher{docs: map[string][]byte{}, delays: map[string]time.Duration{}}
	for i, u := range urls {
		f.docs[u] = feeDoc([]string{fmt.Sprintf("0010%d", i), "", "004", "1.00"})
		f.delays[u] = time.Duration(len(urls)-i) * 20 * time.Millisecond
	}

	summary := newPipeline(f, newFakeStore(), ingest.Options{FetchWorkers: 3}).Run(context.Background(), urls)

	require.Len(t, summary.Documents, len(urls))
	for i, ds := range summary.Documents {
		assert.Equal(t, urls[i], ds.URL)
	}
	assert.EqualValues(t, 4, summary.Inserted)
}

func TestRun_ArchivesRecords(t *testing.T) {
	const url = "https://www.pa.gov/content/2024-part-b.pdf"
	dir := t.TempDir()
	f := &fakeFetcher{docs: map[string][]byte{url: feeDoc([]string{"00100", "", "004", "1.00"})}}

	summary := newPipeline(f, newFakeStore(), ingest.Options{ArchiveDir: dir}).Run(context.Background(), []string{url})
	require.Len(t, summary.Documents, 1)

	matches, err := filepath.Glob(filepath.Join(dir, "2024-part-b-*.parquet"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestNormalize(t *testing.T) {
	rows := []model.RawRow{
		{"CPT/HCPC Code": "00842", "Modifier": "X", "Medicare Location": "004"},
		{"CPT/HCPC Code": " 00843 ", "Medicare Location": " 004 ", "Fee Schedule Amount": " 1,234.50 "},
		{"CPT/HCPC Code": "N/A", "Modifier": "-"},
		{"CPT/HCPC Code": "00844", "Medicare Location": "-"},
		{"Unknown": "value"},
	}
	recs, dropped := ingest.Normalize(rows, normalize.DefaultHeaders(), zerolog.Nop())

	require.Len(t, recs, 2)
	assert.EqualValues(t, 3, dropped)
	assert.Nil(t, recs[0].Modifier)
	assert.Equal(t, "004", recs[0].Location)
	assert.Equal(t, "00843", recs[1].Code)
	assert.Equal(t, "1,234.50", *recs[1].FeeScheduleAmount)
}
