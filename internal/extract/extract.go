// Package extract turns a fee-schedule PDF into raw rows keyed by header
// text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/pdftable"
)

var (
	ErrNoTables = errors.New("no tables on first page")
	ErrNoHeader = errors.New("no recognized header column")
)

// Column is one header cell that maps to a canonical field.
type Column struct {
	Index  int
	Header string
	Field  model.Field
}

// Result is the outcome of parsing one document.
type Result struct {
	Pages  int
	Tables int
	// HeaderIndex is the row of the first table holding the column headers.
	// It applies to every table of the document.
	HeaderIndex int
	// HeaderFound is false when no row carried normalize.HeaderToken and
	// HeaderIndex fell back to 0.
	HeaderFound bool
	Columns     []Column
	// Ignored lists header cells with no known mapping.
	Ignored []string
	Rows    []model.RawRow
}

// Extractor parses documents with a fixed header vocabulary.
type Extractor struct {
	headers *normalize.HeaderMap
	log     zerolog.Logger
}

// New creates an Extractor.
func New(headers *normalize.HeaderMap, log zerolog.Logger) *Extractor {
	return &Extractor{headers: headers, log: log}
}

// Extract returns the raw rows of a document. It never fails: unreadable
// documents, documents without a recognized header and internal panics all
// yield an empty slice and a log line.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) []model.RawRow {
	log := e.log.With().Str("document", name).Logger()
	start := time.Now()

	res, err := e.Parse(ctx, data)
	if err != nil {
		log.Warn().Err(err).Msg("extraction failed")
		return nil
	}
	if !res.HeaderFound {
		log.Warn().Str("token", normalize.HeaderToken).Msg("header token not found, using first row as header")
	}
	if len(res.Ignored) > 0 {
		log.Debug().Strs("headers", res.Ignored).Msg("ignoring unmapped columns")
	}

	log.Debug().
		Int("pages", res.Pages).
		Int("tables", res.Tables).
		Int("header_index", res.HeaderIndex).
		Int("columns", len(res.Columns)).
		Int("rows", len(res.Rows)).
		Dur("duration", time.Since(start)).
		Msg("extraction complete")
	return res.Rows
}

// Parse is Extract with the failure reason and layout details exposed.
func (e *Extractor) Parse(ctx context.Context, data []byte) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("extract panic: %v", r)
		}
	}()

	pages, err := pdftable.ReadPages(data)
	if err != nil {
		return nil, err
	}

	tables := make([][]pdftable.Table, len(pages))
	res = &Result{Pages: len(pages)}
	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tables[i] = pdftable.ExtractTables(p)
		res.Tables += len(tables[i])
	}

	if len(pages) == 0 || pages[0].Number != 1 || len(tables[0]) == 0 {
		return nil, ErrNoTables
	}
	first := tables[0][0]

	res.HeaderIndex, res.HeaderFound = HeaderIndex(first)
	if res.HeaderIndex >= len(first) {
		return nil, ErrNoHeader
	}
	res.Columns, res.Ignored = e.columns(first[res.HeaderIndex])
	if len(res.Columns) == 0 {
		return nil, ErrNoHeader
	}

	for _, pt := range tables {
		for _, t := range pt {
			for i, row := range t {
				if i <= res.HeaderIndex {
					continue
				}
				if raw := zip(res.Columns, row); raw != nil {
					res.Rows = append(res.Rows, raw)
				}
			}
		}
	}
	return res, nil
}

// HeaderIndex returns the first row with a cell containing the code column
// token. Without one it returns 0, false.
func HeaderIndex(t pdftable.Table) (int, bool) {
	for i, row := range t {
		for _, cell := range row {
			if strings.Contains(cell, normalize.HeaderToken) {
				return i, true
			}
		}
	}
	return 0, false
}

// columns maps header cells to fields. When two cells carry the same header
// text the later column supplies the value.
func (e *Extractor) columns(header []string) ([]Column, []string) {
	var cols []Column
	var ignored []string
	seen := make(map[string]int, len(header))
	for i, cell := range header {
		key := normalize.HeaderKey(cell)
		if key == "" {
			continue
		}
		f, ok := e.headers.Lookup(key)
		if !ok {
			ignored = append(ignored, key)
			continue
		}
		if prev, dup := seen[key]; dup {
			e.log.Debug().
				Str("header", key).
				Int("column", i+1).
				Int("previous_column", prev+1).
				Msg("duplicate header, later column wins")
		}
		seen[key] = i
		cols = append(cols, Column{Index: i, Header: key, Field: f})
	}
	return cols, ignored
}

// zip pairs cells with mapped headers by position. Cells beyond the header
// and headers beyond the row are dropped.
func zip(cols []Column, row []string) model.RawRow {
	var raw model.RawRow
	for _, c := range cols {
		if c.Index >= len(row) {
			break
		}
		if raw == nil {
			raw = make(model.RawRow, len(cols))
		}
		raw[c.Header] = row[c.Index]
	}
	return raw
}
