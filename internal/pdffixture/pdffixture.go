// Package pdffixture writes small, uncompressed PDFs laid out like the
// published fee-schedule tables: Courier text in ruled grid cells, one or
// more tables per page. It exists so extraction can be exercised end to end
// without shipping third-party documents.
package pdffixture

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	pageWidth   = 612.0
	pageHeight  = 792.0
	margin      = 36.0
	cellPadding = 3.0
	tableGap    = 30.0
	// courierWidth is the advance of every Courier glyph in 1/1000 em.
	courierWidth = 600
)

// Table is a grid of cell texts. A row with a single cell spans the table's
// full width, like a title banner. "\n" wraps text inside a cell.
type Table [][]string

// Page holds the tables drawn top to bottom on one page.
type Page struct {
	Tables []Table
}

// Document describes a fixture PDF.
type Document struct {
	Pages    []Page
	FontSize float64
	// Unruled omits the grid lines so only whitespace separates columns.
	Unruled bool
}

// Build renders the document.
func Build(doc Document) []byte {
	size := doc.FontSize
	if size == 0 {
		size = 8
	}

	var streams []string
	for _, p := range doc.Pages {
		streams = append(streams, pageContent(p, size, !doc.Unruled))
	}
	return assemble(streams)
}

func pageContent(p Page, size float64, ruled bool) string {
	var b strings.Builder
	charW := size * courierWidth / 1000
	lineH := size * 1.2
	y := pageHeight - margin

	for _, t := range p.Tables {
		widths := columnWidths(t, charW)
		total := 0.0
		for _, w := range widths {
			total += w
		}

		for _, row := range t {
			lines := 1
			for _, cell := range row {
				lines = max(lines, len(strings.Split(cell, "\n")))
			}
			h := float64(lines)*lineH + 2*cellPadding
			bottom := y - h

			x := margin
			cells := row
			cellWidths := widths
			if len(row) == 1 && len(widths) > 1 {
				cellWidths = []float64{total}
			}
			for i, cell := range cells {
				if i >= len(cellWidths) {
					break
				}
				w := cellWidths[i]
				if ruled {
					fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re S\n", x, bottom, w, h)
				}
				for j, line := range strings.Split(cell, "\n") {
					if line == "" {
						continue
					}
					baseline := y - cellPadding - float64(j+1)*lineH + (lineH - size)
					fmt.Fprintf(&b, "BT /F1 %.2f Tf %.2f %.2f Td (%s) Tj ET\n",
						size, x+cellPadding, baseline, escape(line))
				}
				x += w
			}
			y = bottom
		}
		y -= tableGap
	}
	return b.String()
}

func columnWidths(t Table, charW float64) []float64 {
	n := 0
	for _, row := range t {
		n = max(n, len(row))
	}
	widths := make([]float64, n)
	for _, row := range t {
		if len(row) == 1 && n > 1 {
			continue
		}
		for i, cell := range row {
			for _, line := range strings.Split(cell, "\n") {
				widths[i] = max(widths[i], float64(len(line))*charW+2*cellPadding)
			}
		}
	}
	for i := range widths {
		widths[i] = max(widths[i], 4*charW)
	}
	return widths
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// assemble writes the object graph: catalog, page tree, one shared font, and
// a page plus content stream per page, followed by the xref table.
func assemble(streams []string) []byte {
	var buf bytes.Buffer
	var offsets []int

	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	n := len(streams)
	kids := make([]string, n)
	for i := range streams {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	widths := make([]string, 126-32+1)
	for i := range widths {
		widths[i] = fmt.Sprint(courierWidth)
	}

	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	obj(fmt.Sprintf("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>",
		strings.Join(widths, " ")))
	for i, s := range streams {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.0f %.0f] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageWidth, pageHeight, 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(s), s))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}
