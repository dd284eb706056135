package catalog

import (
	"errors"
	"fmt"
	"oemcatalog/ingest/internal/domain"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidRecord = errors.New("invalid catalog record")

const (
	minYear = 1900
	maxYear = 2100
)

// NormalizeName builds a natural key: NFKC, collapsed whitespace, case-folded.
func NormalizeName(s string) string {
	return cases.Fold().String(DisplayName(s))
}

// DisplayName keeps the original spelling with whitespace collapsed.
func DisplayName(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// NormalizePartNumber strips every space and upper-cases the vendor number.
func NormalizePartNumber(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, norm.NFKC.String(s))
	return strings.ToUpper(s)
}

// normalizedRecord carries the keys and display values of one record.
type normalizedRecord struct {
	make     domain.Make
	model    domain.Model
	year     int
	assembly domain.Assembly
	part     domain.Part
	quantity int
	position string
}

func normalize(rec domain.CatalogRecord) (normalizedRecord, error) {
	var n normalizedRecord

	n.make = domain.Make{Name: NormalizeName(rec.Make), DisplayName: DisplayName(rec.Make)}
	n.model = domain.Model{Name: NormalizeName(rec.Model), DisplayName: DisplayName(rec.Model)}
	n.part = domain.Part{PartNumber: NormalizePartNumber(rec.PartNumber), Description: DisplayName(rec.PartDescription)}

	assemblyName := DisplayName(rec.AssemblyName)
	assemblyCode := strings.TrimSpace(rec.AssemblyCode)
	if assemblyCode == "" {
		assemblyCode = NormalizeName(rec.AssemblyName)
	}
	if assemblyName == "" {
		assemblyName = assemblyCode
	}
	n.assembly = domain.Assembly{Code: assemblyCode, Name: assemblyName, SourceURL: rec.SourceURL}

	switch {
	case n.make.Name == "":
		return n, fmt.Errorf("%w: empty make", ErrInvalidRecord)
	case n.model.Name == "":
		return n, fmt.Errorf("%w: empty model", ErrInvalidRecord)
	case rec.Year < minYear || rec.Year > maxYear:
		return n, fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidRecord, rec.Year, minYear, maxYear)
	case n.assembly.Code == "":
		return n, fmt.Errorf("%w: empty assembly", ErrInvalidRecord)
	case n.part.PartNumber == "":
		return n, fmt.Errorf("%w: empty part number", ErrInvalidRecord)
	case rec.Quantity < 0:
		return n, fmt.Errorf("%w: negative quantity %d", ErrInvalidRecord, rec.Quantity)
	}

	n.year = rec.Year
	n.quantity = rec.Quantity
	if n.quantity == 0 {
		n.quantity = 1
	}
	n.position = strings.TrimSpace(rec.Position)
	return n, nil
}
