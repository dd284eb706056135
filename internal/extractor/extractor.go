// Package extractor defines the page-extraction contract between the crawler
// and site-specific adapters that turn catalog HTML into records.
package extractor

import (
	"errors"
	"oemcatalog/ingest/internal/domain"
)

// ErrPageStructure is returned when a page lacks the markup an adapter needs.
var ErrPageStructure = errors.New("page structure not recognized")

// PageExtractor turns one fetched catalog page into zero or more records.
// A page-level error means the page is skipped; an empty slice is a page
// without parts and is not an error.
type PageExtractor interface {
	Extract(pageURL, html string) ([]domain.CatalogRecord, error)
}

// Func adapts a plain function to PageExtractor.
type Func func(pageURL, html string) ([]domain.CatalogRecord, error)

func (f Func) Extract(pageURL, html string) ([]domain.CatalogRecord, error) {
	return f(pageURL, html)
}
