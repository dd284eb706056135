// Package sitemap flattens a sitemap-index tree into the list of catalog
// page URLs it references.
package sitemap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"oemcatalog/ingest/internal/client"
	"oemcatalog/ingest/internal/domain"
	"strings"

	"github.com/antchfx/xmlquery"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrSitemap wraps every failure that aborts an expansion.
	ErrSitemap = errors.New("sitemap expansion failed")
	// ErrUnrecognizedSitemap is a document that is neither a sitemapindex nor a urlset.
	ErrUnrecognizedSitemap = errors.New("document is not a sitemap index or urlset")
)

type Expander struct {
	fetcher client.Fetcher
}

func NewExpander(fetcher client.Fetcher) *Expander {
	return &Expander{fetcher: fetcher}
}

// Expand walks the tree below rootURL and returns every leaf page URL once,
// in first-seen order. Each sitemap URL is fetched at most once, so cycles
// and repeated references terminate. Any fetch or parse failure aborts the
// whole expansion.
func (e *Expander) Expand(ctx context.Context, rootURL string) ([]string, error) {
	stack := []string{rootURL}
	seen := make(map[string]struct{})
	leafSeen := make(map[string]struct{})
	leaves := make([]string, 0)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSitemap, err)
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}

		body, err := e.fetcher.Fetch(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to fetch %s: %w", ErrSitemap, current, err)
		}

		kind, locs, err := Parse(current, body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrSitemap, current, err)
		}

		switch kind {
		case domain.SitemapKindIndex:
			log.Infof("🗺️ Sitemap index %s references %d sitemaps", current, len(locs))
			// Reverse push keeps document order when popping.
			for i := len(locs) - 1; i >= 0; i-- {
				if _, ok := seen[locs[i]]; !ok {
					stack = append(stack, locs[i])
				}
			}
		case domain.SitemapKindURLSet:
			added := 0
			for _, loc := range locs {
				if _, ok := leafSeen[loc]; ok {
					continue
				}
				leafSeen[loc] = struct{}{}
				leaves = append(leaves, loc)
				added++
			}
			log.Infof("🗺️ Urlset %s lists %d pages (%d new)", current, len(locs), added)
		}
	}

	log.Infof("✅ Sitemap expansion finished: %d sitemaps, %d pages", len(seen), len(leaves))
	return leaves, nil
}

// Parse classifies a sitemap document and returns its child locations:
// sitemap URLs for an index, page URLs for a urlset. A single child and
// many children come back the same way, as a slice. Relative locations are
// resolved against docURL and blank ones are dropped.
func Parse(docURL, body string) (domain.SitemapKind, []string, error) {
	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("invalid XML: %w", err)
	}

	var (
		kind  domain.SitemapKind
		nodes []*xmlquery.Node
	)
	switch {
	case xmlquery.FindOne(doc, "/sitemapindex") != nil:
		kind = domain.SitemapKindIndex
		nodes = xmlquery.Find(doc, "/sitemapindex/sitemap/loc")
	case xmlquery.FindOne(doc, "/urlset") != nil:
		kind = domain.SitemapKindURLSet
		nodes = xmlquery.Find(doc, "/urlset/url/loc")
	default:
		return "", nil, ErrUnrecognizedSitemap
	}

	base, _ := url.Parse(docURL)
	locs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		loc := strings.TrimSpace(n.InnerText())
		if loc == "" {
			continue
		}
		locs = append(locs, resolve(base, loc))
	}

	return kind, locs, nil
}

func resolve(base *url.URL, loc string) string {
	ref, err := url.Parse(loc)
	if err != nil || base == nil || ref.IsAbs() {
		return loc
	}
	return base.ResolveReference(ref).String()
}
