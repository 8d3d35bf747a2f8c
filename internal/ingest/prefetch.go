package ingest

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/feeschedule/internal/model"
	"github.com/gyeh/feeschedule/internal/normalize"
)

// prepared is a fetched and extracted document waiting to be persisted.
type prepared struct {
	url     string
	start   time.Time
	sha     string
	rows    []model.RawRow
	skipped bool
	err     *DocumentError
}

// prepare runs the independent part of a document: download, digest check
// and extraction. It is safe to call concurrently.
func (p *Pipeline) prepare(ctx context.Context, url string) *prepared {
	doc := &prepared{url: url, start: time.Now()}

	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		doc.err = &DocumentError{URL: url, Phase: PhaseFetch, Err: err}
		return doc
	}
	doc.sha = normalize.BytesHash(data)

	if !p.opts.Force {
		last, ok, err := p.store.LastLoadedDigest(ctx, url)
		switch {
		case err != nil:
			p.log.Warn().Err(err).Str("document", url).Msg("could not read last loaded digest")
		case ok && last == doc.sha:
			doc.skipped = true
			return doc
		}
	}

	doc.rows = p.extractor.Extract(ctx, url, data)
	return doc
}

// prefetch prepares up to FetchWorkers documents ahead and hands them to
// handle strictly in input order. A document's slot is released only after
// handle returns, so with one worker documents are processed one at a time.
// handle returns false to stop.
func (p *Pipeline) prefetch(ctx context.Context, urls []string, handle func(*prepared) bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan struct{}, p.opts.FetchWorkers)
	results := make([]chan *prepared, len(urls))
	for i := range results {
		results[i] = make(chan *prepared, 1)
	}

	var g errgroup.Group
	g.Go(func() error {
		for i, url := range urls {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			g.Go(func() error {
				results[i] <- p.prepare(ctx, url)
				return nil
			})
		}
		return nil
	})

	for i := range urls {
		var doc *prepared
		select {
		case doc = <-results[i]:
		case <-ctx.Done():
		}
		if doc == nil || !handle(doc) {
			break
		}
		<-slots
	}

	cancel()
	_ = g.Wait()
}
