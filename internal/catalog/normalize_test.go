package catalog

import (
	"errors"
	"oemcatalog/ingest/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Ski-Doo":           "ski-doo",
		"  MXZ \t X   600 ": "mxz x 600",
		"ＭＸＺ":               "mxz",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), "NormalizeName(%q)", in)
	}
}

func TestDisplayNameKeepsSpelling(t *testing.T) {
	assert.Equal(t, "MXZ X 600", DisplayName("  MXZ\n X  600"))
}

func TestNormalizePartNumber(t *testing.T) {
	assert.Equal(t, "420888-123", NormalizePartNumber(" 420 888-123 "))
	assert.Equal(t, "ABC12", NormalizePartNumber("abc\t12"))
}

func TestNormalize(t *testing.T) {
	t.Run("assembly code falls back to name", func(t *testing.T) {
		n, err := normalize(domain.CatalogRecord{Make: "A", Model: "B", Year: 2019, AssemblyName: "Front  Suspension", PartNumber: "x"})
		require.NoError(t, err)
		assert.Equal(t, "front suspension", n.assembly.Code)
		assert.Equal(t, "Front Suspension", n.assembly.Name)
		assert.Equal(t, 1, n.quantity)
	})

	t.Run("name falls back to code", func(t *testing.T) {
		n, err := normalize(domain.CatalogRecord{Make: "A", Model: "B", Year: 2019, AssemblyCode: " ENG-01 ", PartNumber: "x", Quantity: 4})
		require.NoError(t, err)
		assert.Equal(t, "ENG-01", n.assembly.Code)
		assert.Equal(t, "ENG-01", n.assembly.Name)
		assert.Equal(t, 4, n.quantity)
	})

	for name, rec := range map[string]domain.CatalogRecord{
		"no model":       {Make: "A", Year: 2019, AssemblyName: "E", PartNumber: "x"},
		"year too large": {Make: "A", Model: "B", Year: 2200, AssemblyName: "E", PartNumber: "x"},
		"no assembly":    {Make: "A", Model: "B", Year: 2019, PartNumber: "x"},
		"negative qty":   {Make: "A", Model: "B", Year: 2019, AssemblyName: "E", PartNumber: "x", Quantity: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := normalize(rec)
			assert.True(t, errors.Is(err, ErrInvalidRecord))
		})
	}
}
