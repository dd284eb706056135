package domain

type SitemapKind string

const (
	SitemapKindIndex  SitemapKind = "sitemapindex" // References child sitemaps
	SitemapKindURLSet SitemapKind = "urlset"       // References catalog pages
)

type CrawlStatus string

func (s CrawlStatus) String() string {
	return string(s)
}

const (
	CrawlStatusPending   CrawlStatus = "pending"
	CrawlStatusInFlight  CrawlStatus = "in_flight"
	CrawlStatusSucceeded CrawlStatus = "succeeded"
	CrawlStatusFailed    CrawlStatus = "failed"
	CrawlStatusAbandoned CrawlStatus = "abandoned" // Never started because the run was cancelled
)

// FailureStage names the pipeline step a page failed in.
type FailureStage string

const (
	FailureStageFetch   FailureStage = "fetch"
	FailureStageExtract FailureStage = "extract"
	FailureStageMerge   FailureStage = "merge"
	FailureStageUnknown FailureStage = "unknown"
)
