package domain

// CatalogRecord is one extracted make/model/year/assembly/part tuple.
type CatalogRecord struct {
	Make            string `json:"make"`
	Model           string `json:"model"`
	Year            int    `json:"year"`
	AssemblyCode    string `json:"assembly_code,omitempty"` // Vendor diagram code, optional
	AssemblyName    string `json:"assembly_name"`
	PartNumber      string `json:"part_number"`
	PartDescription string `json:"part_description,omitempty"`
	Quantity        int    `json:"quantity"`
	Position        string `json:"position,omitempty"` // Callout number on the diagram
	SourceURL       string `json:"source_url,omitempty"`
}

type Make struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"` // Normalized natural key
	DisplayName string `json:"display_name"`
}

type Model struct {
	ID          int64  `json:"id"`
	MakeID      int64  `json:"make_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type ModelYear struct {
	ID      int64 `json:"id"`
	ModelID int64 `json:"model_id"`
	Year    int   `json:"year"`
}

type Assembly struct {
	ID          int64  `json:"id"`
	ModelYearID int64  `json:"model_year_id"`
	Code        string `json:"code"` // Vendor code, or normalized name when the vendor has none
	Name        string `json:"name"`
	SourceURL   string `json:"source_url,omitempty"`
}

type Part struct {
	ID          int64  `json:"id"`
	PartNumber  string `json:"part_number"`
	Description string `json:"description,omitempty"`
}

type AssemblyPart struct {
	ID         int64  `json:"id"`
	AssemblyID int64  `json:"assembly_id"`
	PartID     int64  `json:"part_id"`
	Quantity   int    `json:"quantity"`
	Position   string `json:"position,omitempty"`
}

// CatalogCounts holds row counts per hierarchy level.
type CatalogCounts map[CatalogLevel]int64
