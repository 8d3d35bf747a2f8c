// Package locate finds fee-schedule document links on a listing page.
package locate

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Fetcher downloads a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Filter selects document anchors. An anchor matches when its id starts
// with IDPrefix and its href contains HrefContains, both compared
// case-insensitively. Empty fields match everything.
type Filter struct {
	IDPrefix     string
	HrefContains string
}

// DefaultFilter matches the download buttons of the Part B schedules.
var DefaultFilter = Filter{IDPrefix: "button-", HrefContains: "part-b"}

// Locate fetches listingURL and returns the matching document URLs,
// resolved against the listing page, de-duplicated, in page order.
func Locate(ctx context.Context, f Fetcher, listingURL string, filter Filter) ([]string, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	page, err := f.Fetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing page: %w", err)
	}

	links, err := Links(page, base, filter)
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Links extracts matching anchors from an HTML document.
func Links(page []byte, base *url.URL, filter Filter) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	idPrefix := strings.ToLower(filter.IDPrefix)
	hrefPart := strings.ToLower(filter.HrefContains)

	var links []string
	seen := make(map[string]struct{})
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.Data != "a" {
			continue
		}
		id, href := attr(n, "id"), attr(n, "href")
		if href == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(id), idPrefix) {
			continue
		}
		if !strings.Contains(strings.ToLower(href), hrefPart) {
			continue
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		s := abs.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		links = append(links, s)
	}
	return links, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
