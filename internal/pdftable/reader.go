package pdftable

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for documents without a readable page.
var ErrNoPages = errors.New("pdf has no readable pages")

// ReadPages parses a PDF held in memory and returns the positioned content of
// every page. The underlying reader panics on malformed content streams; those
// panics come back as errors.
func ReadPages(data []byte) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf content: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()

		page := Page{Number: i}
		for _, t := range content.Text {
			page.Text = append(page.Text, Fragment{
				X:    t.X,
				Y:    t.Y,
				W:    t.W,
				Size: t.FontSize,
				Text: t.S,
			})
		}
		for _, rc := range content.Rect {
			page.Rects = append(page.Rects, NewRect(rc.Min.X, rc.Min.Y, rc.Max.X, rc.Max.Y))
		}
		pages = append(pages, page)
	}

	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}
