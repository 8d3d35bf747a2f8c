// Package pdftable turns positioned PDF page content into tables.
//
// The pass is purely geometric. Glyphs are merged into text chunks, thin
// rectangles and box outlines become ruling lines, and when a page carries a
// grid of rulings the grid defines the cells. Pages without rulings fall back
// to a whitespace-stream layout where column anchors come from the widest
// line of each text block.
package pdftable

import (
	"math"
	"slices"
	"strings"
)

const (
	// snapTolerance merges rulings whose positions differ by less than this
	// many points.
	snapTolerance = 3.0
	// rulingMaxThickness is the widest rectangle still treated as a line.
	rulingMaxThickness = 2.0
	// lineTolerance is the fraction of font size within which two baselines
	// belong to the same text line.
	lineTolerance = 0.5
	// wordGap is the fraction of font size above which two glyphs on a line
	// belong to different chunks.
	wordGap = 0.3
	// spaceGap is the fraction of font size above which a space is inserted
	// between glyphs merged into one chunk.
	spaceGap = 0.1
	// blockGap is the number of font sizes of vertical whitespace that
	// separates two stream-mode tables.
	blockGap = 2.5
)

// Fragment is text drawn at one position. Y is the baseline in PDF user
// space, where the origin is the bottom-left corner of the page.
type Fragment struct {
	X, Y float64
	W    float64
	Size float64
	Text string
}

// Rect is a drawn rectangle with X0 <= X1 and Y0 <= Y1.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// NewRect builds a Rect from two arbitrary corners.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		X0: math.Min(x0, x1), Y0: math.Min(y0, y1),
		X1: math.Max(x0, x1), Y1: math.Max(y0, y1),
	}
}

// Page is the positioned content of one PDF page.
type Page struct {
	Number int
	Text   []Fragment
	Rects  []Rect
}

// Table is a grid of cell texts, rows top to bottom and cells left to right.
// Text wrapping inside a ruled cell is kept as "\n".
type Table [][]string

// ExtractTables returns the tables found on a page, top to bottom.
func ExtractTables(p Page) []Table {
	words := chunk(p.Text)
	if len(words) == 0 {
		return nil
	}

	verticals, horizontals := rulings(p.Rects)
	xs := positions(verticals)
	ys := positions(horizontals)
	if len(xs) >= 2 && len(ys) >= 2 {
		return ruledTables(p.Text, verticals, ys)
	}
	return streamTables(words)
}

// edge is a ruling line. For vertical edges pos is x and from/to span y; for
// horizontal edges pos is y and from/to span x.
type edge struct {
	pos, from, to float64
}

func (e edge) covers(v float64) bool {
	return e.from-snapTolerance <= v && v <= e.to+snapTolerance
}

func rulings(rects []Rect) (verticals, horizontals []edge) {
	for _, r := range rects {
		w, h := r.X1-r.X0, r.Y1-r.Y0
		switch {
		case w <= rulingMaxThickness && h <= rulingMaxThickness:
			continue
		case w <= rulingMaxThickness:
			verticals = append(verticals, edge{(r.X0 + r.X1) / 2, r.Y0, r.Y1})
		case h <= rulingMaxThickness:
			horizontals = append(horizontals, edge{(r.Y0 + r.Y1) / 2, r.X0, r.X1})
		default:
			verticals = append(verticals, edge{r.X0, r.Y0, r.Y1}, edge{r.X1, r.Y0, r.Y1})
			horizontals = append(horizontals, edge{r.Y0, r.X0, r.X1}, edge{r.Y1, r.X0, r.X1})
		}
	}
	return snap(verticals), snap(horizontals)
}

// snap clusters edges by position, then joins collinear edges whose spans
// touch so a column rule drawn cell by cell becomes one line.
func snap(edges []edge) []edge {
	if len(edges) == 0 {
		return nil
	}
	slices.SortFunc(edges, func(a, b edge) int { return cmpFloat(a.pos, b.pos) })

	var snapped []edge
	for i := 0; i < len(edges); {
		j, sum := i, 0.0
		for j < len(edges) && edges[j].pos-edges[i].pos <= snapTolerance {
			sum += edges[j].pos
			j++
		}
		mean := sum / float64(j-i)
		group := slices.Clone(edges[i:j])
		slices.SortFunc(group, func(a, b edge) int { return cmpFloat(a.from, b.from) })

		cur := edge{mean, group[0].from, group[0].to}
		for _, e := range group[1:] {
			if e.from <= cur.to+snapTolerance {
				cur.to = math.Max(cur.to, e.to)
				continue
			}
			snapped = append(snapped, cur)
			cur = edge{mean, e.from, e.to}
		}
		snapped = append(snapped, cur)
		i = j
	}
	return snapped
}

// positions returns the distinct positions of snapped edges, ascending.
func positions(edges []edge) []float64 {
	var out []float64
	for _, e := range edges {
		if len(out) == 0 || out[len(out)-1] != e.pos {
			out = append(out, e.pos)
		}
	}
	return out
}

// ruledTables places raw glyphs into grid cells before chunking so text
// never runs across a column rule.
func ruledTables(glyphs []Fragment, verticals []edge, ys []float64) []Table {
	// Bands run top to bottom.
	top := slices.Clone(ys)
	slices.Reverse(top)

	type band struct{ low, high float64 }
	var groups [][]band
	var cur []band
	for i := 0; i+1 < len(top); i++ {
		b := band{low: top[i+1], high: top[i]}
		mid := (b.low + b.high) / 2
		if slices.ContainsFunc(verticals, func(e edge) bool { return e.covers(mid) }) {
			cur = append(cur, b)
			continue
		}
		if len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}

	var tables []Table
	for _, bands := range groups {
		var cols []float64
		for _, e := range verticals {
			for _, b := range bands {
				if e.covers((b.low + b.high) / 2) {
					if !slices.Contains(cols, e.pos) {
						cols = append(cols, e.pos)
					}
					break
				}
			}
		}
		slices.Sort(cols)
		if len(cols) < 2 {
			continue
		}

		cells := make([][][]Fragment, len(bands))
		for i := range cells {
			cells[i] = make([][]Fragment, len(cols)-1)
		}
		for _, g := range glyphs {
			cx, cy := g.center()
			row := slices.IndexFunc(bands, func(b band) bool { return b.low < cy && cy <= b.high })
			if row < 0 {
				continue
			}
			col := -1
			for j := 0; j+1 < len(cols); j++ {
				if cols[j] <= cx && cx < cols[j+1] {
					col = j
					break
				}
			}
			if col < 0 {
				continue
			}
			cells[row][col] = append(cells[row][col], g)
		}

		t := make(Table, len(bands))
		for i := range bands {
			t[i] = make([]string, len(cols)-1)
			for j := range t[i] {
				t[i][j] = cellText(cells[i][j], "\n")
			}
		}
		tables = append(tables, t)
	}
	return tables
}

func streamTables(words []Fragment) []Table {
	lines := groupLines(words)

	var blocks [][][]Fragment
	var cur [][]Fragment
	for i, line := range lines {
		if i > 0 {
			prev := lines[i-1]
			size := math.Max(maxSize(prev), maxSize(line))
			if prev[0].Y-line[0].Y > blockGap*size {
				blocks = append(blocks, cur)
				cur = nil
			}
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}

	var tables []Table
	for _, block := range blocks {
		anchor := block[0]
		for _, line := range block[1:] {
			if len(line) > len(anchor) {
				anchor = line
			}
		}
		if len(block) < 2 || len(anchor) < 2 {
			continue
		}

		// Column k ends halfway through the gap before anchor chunk k+1.
		bounds := make([]float64, len(anchor)-1)
		for k := range bounds {
			bounds[k] = (anchor[k].X + anchor[k].W + anchor[k+1].X) / 2
		}

		t := make(Table, len(block))
		for i, line := range block {
			cells := make([][]Fragment, len(anchor))
			for _, w := range line {
				cx, _ := w.center()
				col, _ := slices.BinarySearch(bounds, cx)
				cells[col] = append(cells[col], w)
			}
			t[i] = make([]string, len(anchor))
			for j := range cells {
				t[i][j] = cellText(cells[j], " ")
			}
		}
		tables = append(tables, t)
	}
	return tables
}

func (f Fragment) center() (float64, float64) {
	return f.X + f.W/2, f.Y + f.Size*0.3
}

// chunk merges glyphs that sit next to each other on the same line into
// single fragments.
func chunk(glyphs []Fragment) []Fragment {
	var out []Fragment
	for _, line := range groupLines(glyphs) {
		var cur *Fragment
		var b strings.Builder
		flush := func() {
			if cur == nil {
				return
			}
			cur.Text = strings.TrimSpace(b.String())
			if cur.Text != "" {
				out = append(out, *cur)
			}
			cur = nil
			b.Reset()
		}

		for _, g := range line {
			size := math.Max(g.Size, 1)
			if cur != nil {
				gap := g.X - (cur.X + cur.W)
				if gap > wordGap*size {
					flush()
				} else if gap > spaceGap*size && !strings.HasSuffix(b.String(), " ") && g.Text != " " {
					b.WriteByte(' ')
				}
			}
			if cur == nil {
				c := g
				cur = &c
			}
			b.WriteString(g.Text)
			cur.W = g.X + g.W - cur.X
			cur.Size = math.Max(cur.Size, g.Size)
		}
		flush()
	}
	return out
}

// groupLines sorts fragments top to bottom and splits them into lines of
// fragments ordered left to right.
func groupLines(frags []Fragment) [][]Fragment {
	sorted := slices.Clone(frags)
	slices.SortStableFunc(sorted, func(a, b Fragment) int { return cmpFloat(b.Y, a.Y) })

	var lines [][]Fragment
	for _, f := range sorted {
		n := len(lines)
		if n > 0 {
			first := lines[n-1][0]
			tol := lineTolerance * math.Max(math.Max(first.Size, f.Size), 1)
			if first.Y-f.Y <= tol {
				lines[n-1] = append(lines[n-1], f)
				continue
			}
		}
		lines = append(lines, []Fragment{f})
	}
	for _, line := range lines {
		slices.SortStableFunc(line, func(a, b Fragment) int { return cmpFloat(a.X, b.X) })
	}
	return lines
}

func cellText(frags []Fragment, lineSep string) string {
	if len(frags) == 0 {
		return ""
	}
	lines := groupLines(chunk(frags))
	parts := make([]string, len(lines))
	for i, line := range lines {
		words := make([]string, len(line))
		for j, w := range line {
			words[j] = w.Text
		}
		parts[i] = strings.Join(words, " ")
	}
	return strings.Join(parts, lineSep)
}

func maxSize(line []Fragment) float64 {
	m := 1.0
	for _, f := range line {
		m = math.Max(m, f.Size)
	}
	return m
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
