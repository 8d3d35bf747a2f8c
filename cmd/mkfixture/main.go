// mkfixture writes a fee-schedule PDF laid out like the published Part B
// tables, either from synthetic rows or from an archive Parquet file.
// Usage: go run ./cmd/mkfixture --out testdata/part-b-sample.pdf --rows 120 --per-page 40
//
//	go run ./cmd/mkfixture --in archive/e0665-e2310-1a2b3c4d5e6f.parquet --out replay.pdf
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gyeh/feeschedule/internal/archive"
	"github.com/gyeh/feeschedule/internal/extract"
	"github.com/gyeh/feeschedule/internal/ingest"
	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
	"github.com/gyeh/feeschedule/internal/pdffixture"
)

var header = []string{
	"CPT/HCPC\nCode",
	"Modifier",
	"Medicare\nLocation",
	"Global\nSurgery\nIndicator",
	"Multiple\nSurgery\nIndicator",
	"Prevailing\nCharge\nAmount",
	"Fee Schedule\nAmount",
	"Site of\nService\nAmount",
}

func main() {
	in := flag.String("in", "", "archive Parquet file to render (default: synthetic rows)")
	out := flag.String("out", "testdata/part-b-sample.pdf", "output PDF")
	numRows := flag.Int("rows", 120, "synthetic rows to generate")
	perPage := flag.Int("per-page", 40, "table rows per page")
	unruled := flag.Bool("unruled", false, "omit grid lines")
	check := flag.Bool("check", true, "re-extract the written PDF and print counts")
	flag.Parse()

	var rows [][]string
	if *in != "" {
		archived, err := archive.ReadAll(*in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read archive: %v\n", err)
			os.Exit(1)
		}
		for i := range archived {
			rows = append(rows, cells(archived[i].Record()))
		}
	} else {
		rows = synthetic(*numRows)
	}
	if *perPage < 1 {
		*perPage = 1
	}

	doc := pdffixture.Document{Unruled: *unruled}
	for start := 0; start < len(rows); start += *perPage {
		end := min(start+*perPage, len(rows))
		t := pdffixture.Table{
			{"Workers' Compensation Part B Fee Schedule"},
			header,
		}
		t = append(t, rows[start:end]...)
		doc.Pages = append(doc.Pages, pdffixture.Page{Tables: []pdffixture.Table{t}})
	}
	data := pdffixture.Build(doc)

	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rows on %d pages to %s (%d bytes)\n", len(rows), len(doc.Pages), *out, len(data))

	if !*check {
		return
	}
	headers := normalize.DefaultHeaders()
	res, err := extract.New(headers, zerolog.Nop()).Parse(context.Background(), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "re-extract: %v\n", err)
		os.Exit(1)
	}
	recs, dropped := ingest.Normalize(res.Rows, headers, zerolog.Nop())
	fmt.Printf("Re-extracted: %d tables, %d raw rows, %d valid, %d invalid\n",
		res.Tables, len(res.Rows), len(recs), dropped)
	if len(res.Rows) != len(rows) {
		fmt.Fprintf(os.Stderr, "row count mismatch: wrote %d, extracted %d\n", len(rows), len(res.Rows))
		os.Exit(1)
	}
}

// synthetic generates deterministic rows covering modifiers, sentinel cells
// and a repeated key.
func synthetic(n int) [][]string {
	modifiers := []string{"", "26", "TC", "X"}
	gsi := []string{"000", "010", "090", "XXX", "YYY"}
	var rows [][]string
	for i := 0; i < n; i++ {
		fee := fmt.Sprintf("%d.%02d", 10+i*7%900, i*13%100)
		site := fee
		if i%5 == 0 {
			site = "N/A"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%05d", 100+i/len(modifiers)),
			modifiers[i%len(modifiers)],
			"004",
			gsi[i%len(gsi)],
			fmt.Sprintf("%d", i%4),
			fee,
			fee,
			site,
		})
	}
	if len(rows) > 1 {
		// Same natural key as the first row with a different amount.
		dup := append([]string(nil), rows[0]...)
		dup[6] = "99.99"
		rows = append(rows, dup)
	}
	return rows
}

// cells renders a record back into table cells, writing absent values the
// way the published tables do.
func cells(r model.FeeScheduleRecord) []string {
	v := func(s *string) string {
		if s == nil {
			return "N/A"
		}
		return *s
	}
	mod := ""
	if r.Modifier != nil {
		mod = *r.Modifier
	}
	return []string{
		r.Code,
		mod,
		r.Location,
		v(r.GlobalSurgeryIndicator),
		v(r.MultipleSurgeryIndicator),
		v(r.PrevailingChargeAmount),
		v(r.FeeScheduleAmount),
		v(r.SiteOfServiceAmount),
	}
}
