package domain

// UpsertResult is what the store reports for a single natural-key upsert.
// Neither flag set means the row already held the same attributes.
type UpsertResult struct {
	ID      int64
	Created bool
	Updated bool // An existing row had at least one attribute changed
}

// MergeCounts aggregates upsert outcomes for one or more merges.
type MergeCounts struct {
	Records   int                  `json:"records"`
	Merged    int                  `json:"merged"`
	Failed    int                  `json:"failed"`
	Created   map[CatalogLevel]int `json:"created"`
	Updated   map[CatalogLevel]int `json:"updated"`
	Unchanged map[CatalogLevel]int `json:"unchanged"`
}

func NewMergeCounts() MergeCounts {
	return MergeCounts{
		Created:   make(map[CatalogLevel]int, len(CatalogLevels)),
		Updated:   make(map[CatalogLevel]int, len(CatalogLevels)),
		Unchanged: make(map[CatalogLevel]int, len(CatalogLevels)),
	}
}

func (c *MergeCounts) Record(level CatalogLevel, res UpsertResult) {
	c.ensureMaps()
	switch {
	case res.Created:
		c.Created[level]++
	case res.Updated:
		c.Updated[level]++
	default:
		c.Unchanged[level]++
	}
}

func (c *MergeCounts) ensureMaps() {
	if c.Created == nil {
		c.Created = make(map[CatalogLevel]int, len(CatalogLevels))
	}
	if c.Updated == nil {
		c.Updated = make(map[CatalogLevel]int, len(CatalogLevels))
	}
	if c.Unchanged == nil {
		c.Unchanged = make(map[CatalogLevel]int, len(CatalogLevels))
	}
}

// Add folds other into c.
func (c *MergeCounts) Add(other MergeCounts) {
	*c = mergeInto(*c, other)
}

func (c MergeCounts) TotalCreated() int {
	return sum(c.Created)
}

func (c MergeCounts) TotalUpdated() int {
	return sum(c.Updated)
}

func (c MergeCounts) TotalUnchanged() int {
	return sum(c.Unchanged)
}

func sum(byLevel map[CatalogLevel]int) int {
	total := 0
	for _, n := range byLevel {
		total += n
	}
	return total
}

func mergeInto(dst, src MergeCounts) MergeCounts {
	dst.ensureMaps()
	dst.Records += src.Records
	dst.Merged += src.Merged
	dst.Failed += src.Failed
	for level, n := range src.Created {
		dst.Created[level] += n
	}
	for level, n := range src.Updated {
		dst.Updated[level] += n
	}
	for level, n := range src.Unchanged {
		dst.Unchanged[level] += n
	}
	return dst
}
