package extractor

import (
	"fmt"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/domain"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

var (
	yearRegex     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	quantityRegex = regexp.MustCompile(`\d+`)
)

// HTMLExtractor reads an assembly diagram page through configurable CSS
// selectors: breadcrumb-like elements name the make, model, year and
// assembly, and each row of the parts table becomes one record.
type HTMLExtractor struct {
	selectors config.SelectorConfig
}

func NewHTMLExtractor(selectors config.SelectorConfig) *HTMLExtractor {
	return &HTMLExtractor{selectors: selectors}
}

func (e *HTMLExtractor) Extract(pageURL, html string) ([]domain.CatalogRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	s := e.selectors
	makeName := text(doc.Find(s.Make).First())
	modelName := text(doc.Find(s.Model).First())
	yearText := text(doc.Find(s.Year).First())
	assemblySel := doc.Find(s.Assembly).First()
	assemblyName := text(assemblySel)

	var missing []string
	for _, field := range []struct{ name, value string }{
		{"make", makeName},
		{"model", modelName},
		{"year", yearText},
		{"assembly", assemblyName},
	} {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrPageStructure, strings.Join(missing, ", "))
	}

	yearMatch := yearRegex.FindString(yearText)
	if yearMatch == "" {
		return nil, fmt.Errorf("%w: no year in %q", ErrPageStructure, yearText)
	}
	year, _ := strconv.Atoi(yearMatch)

	assemblyCode := ""
	if s.AssemblyCodeAttr != "" {
		assemblyCode, _ = assemblySel.Attr(s.AssemblyCodeAttr)
		assemblyCode = strings.TrimSpace(assemblyCode)
	}

	records := make([]domain.CatalogRecord, 0)
	doc.Find(s.PartRow).Each(func(i int, row *goquery.Selection) {
		partNumber := text(row.Find(s.PartNumber).First())
		if partNumber == "" {
			log.Debugf("Skipping row %d without part number on %s", i, pageURL)
			return
		}

		records = append(records, domain.CatalogRecord{
			Make:            makeName,
			Model:           modelName,
			Year:            year,
			AssemblyCode:    assemblyCode,
			AssemblyName:    assemblyName,
			PartNumber:      partNumber,
			PartDescription: text(row.Find(s.PartDescription).First()),
			Quantity:        quantity(text(row.Find(s.PartQuantity).First())),
			Position:        text(row.Find(s.PartPosition).First()),
			SourceURL:       pageURL,
		})
	})

	log.Debugf("Extracted %d records from %s", len(records), pageURL)
	return records, nil
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// quantity parses "Qty: 2" style cells; anything unreadable counts as 1.
func quantity(raw string) int {
	match := quantityRegex.FindString(raw)
	if match == "" {
		return 1
	}
	n, err := strconv.Atoi(match)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
