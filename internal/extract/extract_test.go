package extract_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/feeschedule/internal/extract"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/pdffixture"
	"github.com/gyeh/feeschedule/internal/pdftable"
)

var header = []string{
	"CPT/HCPC\nCode", "Modifier", "Medicare\nLocation", "Global\nSurgery\nIndicator", "Fee Schedule\nAmount", "Notes",
}

func newExtractor() *extract.Extractor {
	return extract.New(normalize.DefaultHeaders(), zerolog.Nop())
}

func TestHeaderIndex(t *testing.T) {
	tests := []struct {
		name  string
		table pdftable.Table
		want  int
		found bool
	}{
		{"header first", pdftable.Table{{"CPT/HCPC Code", "Modifier"}, {"00100", ""}}, 0, true},
		{"banner rows", pdftable.Table{{"Fee Schedule", ""}, {"Effective 2024", ""}, {"Modifier", "CPT/HCPC\nCode"}}, 2, true},
		{"no token", pdftable.Table{{"Code", "Modifier"}, {"00100", ""}}, 0, false},
		{"empty", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extract.HeaderIndex(tt.table)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestParse_BannerBeforeHeader(t *testing.T) {
	page1 := pdffixture.Table{
		{"Workers Compensation Fee Schedule"},
		{"Effective January 1"},
		header,
		{"00842", "X", "004", "090", "69.62", "see note"},
		{"0001U", "", "004", "XXX", "12.34", ""},
	}
	page2 := pdffixture.Table{
		{"Workers Compensation Fee Schedule"},
		{"Effective January 1"},
		header,
		{"0002U", "26", "004", "N/A", "56.78", ""},
	}
	data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{
		{Tables: []pdffixture.Table{page1}},
		{Tables: []pdffixture.Table{page2}},
	}})

	res, err := newExtractor().Parse(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Tables)
	assert.Equal(t, 2, res.HeaderIndex)
	assert.True(t, res.HeaderFound)
	assert.Equal(t, []string{"Notes"}, res.Ignored)
	require.Len(t, res.Columns, 5)
	assert.Equal(t, model.FieldCode, res.Columns[0].Field)
	assert.Equal(t, "CPT/HCPC Code", res.Columns[0].Header)
	assert.Equal(t, model.FieldGlobalSurgeryIndicator, res.Columns[3].Field)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, model.RawRow{
		"CPT/HCPC Code":            "00842",
		"Modifier":                 "X",
		"Medicare Location":        "004",
		"Global Surgery Indicator": "090",
		"Fee Schedule Amount":      "69.62",
	}, res.Rows[0])
	assert.Equal(t, "", res.Rows[1]["Modifier"])
	assert.Equal(t, "0002U", res.Rows[2]["CPT/HCPC Code"])
	assert.Equal(t, "56.78", res.Rows[2]["Fee Schedule Amount"])
}

func TestParse_MultipleTablesPerPage(t *testing.T) {
	hdr := []string{"CPT/HCPC Code", "Medicare Location"}
	data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{
		Tables: []pdffixture.Table{
			{hdr, {"00100", "004"}},
			{hdr, {"00102", "004"}, {"00103", "004"}},
		},
	}}})

	res, err := newExtractor().Parse(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tables)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "00103", res.Rows[2]["CPT/HCPC Code"])
}

func TestParse_MissingTokenDefaultsToFirstRow(t *testing.T) {
	data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{
		Tables: []pdffixture.Table{{
			{"Modifier", "Medicare Location"},
			{"26", "004"},
		}},
	}}})

	res, err := newExtractor().Parse(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, res.HeaderFound)
	assert.Equal(t, 0, res.HeaderIndex)
	assert.Equal(t, []model.RawRow{{"Modifier": "26", "Medicare Location": "004"}}, res.Rows)
}

func TestExtract_FailsSoft(t *testing.T) {
	ctx := context.Background()
	ex := newExtractor()

	t.Run("corrupt bytes", func(t *testing.T) {
		assert.Empty(t, ex.Extract(ctx, "broken.pdf", []byte("%PDF-1.4 garbage")))
	})

	t.Run("no mapped header", func(t *testing.T) {
		data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{
			Tables: []pdffixture.Table{{{"Alpha", "Beta"}, {"1", "2"}}},
		}}})
		_, err := ex.Parse(ctx, data)
		assert.ErrorIs(t, err, extract.ErrNoHeader)
		assert.Empty(t, ex.Extract(ctx, "unknown.pdf", data))
	})

	t.Run("no tables", func(t *testing.T) {
		data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{}}})
		_, err := ex.Parse(ctx, data)
		assert.ErrorIs(t, err, extract.ErrNoTables)
		assert.Empty(t, ex.Extract(ctx, "blank.pdf", data))
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{
			Tables: []pdffixture.Table{{{"CPT/HCPC Code", "Medicare Location"}, {"00100", "004"}}},
		}}})
		_, err := ex.Parse(cctx, data)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtract_CustomHeaders(t *testing.T) {
	headers, err := normalize.NewHeaderMap(map[string]string{"Procedure Code": "code", "Locality": "location"})
	require.NoError(t, err)

	data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{
		Tables: []pdffixture.Table{{
			{"Procedure\nCode (CPT/HCPC)", "Locality"},
			{"99213", "004"},
		}},
	}}})
	rows := extract.New(headers, zerolog.Nop()).Extract(context.Background(), "custom.pdf", data)
	// The token matches but the header text itself is not a known variant.
	assert.Equal(t, []model.RawRow{{"Locality": "004"}}, rows)
}

func TestParse_DuplicateHeaderLaterColumnWins(t *testing.T) {
	data := pdffixture.Build(pdffixture.Document{Pages: []pdffixture.Page{{
		Tables: []pdffixture.Table{{
			{"CPT/HCPC Code", "Fee Schedule\nAmount", "Medicare Location", "Fee Schedule Amount"},
			{"00100", "1.00", "004", "2.00"},
		}},
	}}})
	var buf bytes.Buffer
	ex := extract.New(normalize.DefaultHeaders(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	res, err := ex.Parse(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2.00", res.Rows[0]["Fee Schedule Amount"])

	assert.Contains(t, buf.String(), "duplicate header, later column wins")
	assert.Contains(t, buf.String(), `"header":"Fee Schedule Amount"`)
	assert.Contains(t, buf.String(), `"column":4`)
	assert.Contains(t, buf.String(), `"previous_column":2`)
}
