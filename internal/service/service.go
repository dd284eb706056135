package service

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/catalog"
	"oemcatalog/ingest/internal/client"
	"oemcatalog/ingest/internal/domain"
	"oemcatalog/ingest/internal/domain/task"
	"oemcatalog/ingest/internal/extractor"
	"oemcatalog/ingest/internal/metrics"
	"oemcatalog/ingest/internal/queue"
	"oemcatalog/ingest/internal/repository"
	"oemcatalog/ingest/internal/scheduler"
	"oemcatalog/ingest/internal/sitemap"
	"oemcatalog/ingest/internal/state"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Deps are the run-scoped components the service drives.
type Deps struct {
	Fetcher      client.Fetcher
	Extractor    extractor.PageExtractor
	Repository   repository.CatalogRepository
	Queue        queue.Queue
	StateManager state.StateManager
	Metrics      *metrics.Recorder
	Filter       sitemap.Filter
	MinIdleTime  time.Duration // Before a pending failed-page message may be claimed
}

type Service struct {
	expander     *sitemap.Expander
	fetcher      client.Fetcher
	extractor    extractor.PageExtractor
	upserter     *catalog.Upserter
	repository   repository.CatalogRepository
	queue        queue.Queue
	stateManager state.StateManager
	metrics      *metrics.Recorder
	filter       sitemap.Filter
	minIdleTime  time.Duration
}

func NewService(deps Deps) *Service {
	return &Service{
		expander:     sitemap.NewExpander(deps.Fetcher),
		fetcher:      deps.Fetcher,
		extractor:    deps.Extractor,
		upserter:     catalog.NewUpserter(deps.Repository),
		repository:   deps.Repository,
		queue:        deps.Queue,
		stateManager: deps.StateManager,
		metrics:      deps.Metrics,
		filter:       deps.Filter,
		minIdleTime:  deps.MinIdleTime,
	}
}

type RunOptions struct {
	RootURL       string
	Workers       int
	StartInterval time.Duration
	Resume        bool // Skip URLs completed by an interrupted earlier crawl
}

type RunSummary struct {
	RunID       string
	RootURL     string
	SitemapURLs int // Unique leaves in the sitemap tree
	Selected    int // Leaves left after the URL filter
	Skipped     int // Leaves already completed by an interrupted run
	Crawled     int // Tasks that started and reached succeeded or failed
	Extracted   int // Pages that yielded at least one record
	Records     int
	Merge       domain.MergeCounts
	Failures    map[domain.FailureStage]int
	Abandoned   int
	Cancelled   bool
	Duration    time.Duration
	Catalog     domain.CatalogCounts
}

func (s *RunSummary) Failed() int {
	total := 0
	for _, n := range s.Failures {
		total += n
	}
	return total
}

// pageStats collects per-page outcomes from concurrent tasks.
type pageStats struct {
	mu        sync.Mutex
	extracted int
	records   int
	merge     domain.MergeCounts
}

func (p *pageStats) add(records int, counts domain.MergeCounts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if records > 0 {
		p.extracted++
	}
	p.records += records
	p.merge.Add(counts)
}

// Crawl expands the sitemap tree at opts.RootURL and runs every selected
// leaf through fetch, extract and merge. Only a sitemap failure is fatal.
func (s *Service) Crawl(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	started := time.Now()
	summary := newRunSummary(opts.RootURL)
	entry := log.WithField("run_id", summary.RunID)

	entry.Infof("🚀 Starting crawl of %s", opts.RootURL)

	leaves, err := s.expander.Expand(ctx, opts.RootURL)
	if err != nil {
		return nil, fmt.Errorf("failed to expand sitemap %s: %w", opts.RootURL, err)
	}
	summary.SitemapURLs = len(leaves)
	s.metrics.SitemapURLs(len(leaves))

	urls := s.filter.Apply(leaves)
	summary.Selected = len(urls)

	if opts.Resume {
		urls, err = s.skipCompleted(ctx, opts.RootURL, urls)
		if err != nil {
			return nil, err
		}
		summary.Skipped = summary.Selected - len(urls)
		if summary.Skipped > 0 {
			entry.Infof("🔄 Resuming: skipping %d pages completed by an earlier run", summary.Skipped)
		}
	}

	entry.Infof("🗺️ %d leaf URLs in sitemap, %d selected, %d to crawl", summary.SitemapURLs, summary.Selected, len(urls))

	stats := &pageStats{}
	result := s.schedule(ctx, opts, urls, stats)

	// Bookkeeping must complete even when the run was cancelled.
	bookCtx := context.WithoutCancel(ctx)
	summary.Cancelled = ctx.Err() != nil

	completed := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		switch r.Status {
		case domain.CrawlStatusSucceeded:
			completed = append(completed, r.URL)
		case domain.CrawlStatusFailed:
			s.recordFailure(bookCtx, summary.RunID, &task.FailedPageTask{
				URL:   r.URL,
				RunID: summary.RunID,
				Stage: stageOf(r.Err),
				Error: r.Err.Error(),
			})
		}
	}

	if summary.Cancelled {
		if err := s.stateManager.MarkCompleted(bookCtx, opts.RootURL, completed...); err != nil {
			entry.Errorf("❌ Failed to save crawl checkpoint: %v", err)
		}
	} else if err := s.stateManager.Reset(bookCtx, opts.RootURL); err != nil {
		entry.Errorf("❌ Failed to reset crawl checkpoint: %v", err)
	}

	s.finish(bookCtx, summary, result, stats, started)
	return summary, nil
}

// RetryFailed drains the failed-page queue and runs each distinct URL through
// the pipeline again. Pages that fail again are re-queued with a higher retry
// count; pages that never started stay pending for the next retry.
func (s *Service) RetryFailed(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	started := time.Now()
	summary := newRunSummary(opts.RootURL)
	entry := log.WithField("run_id", summary.RunID)

	stream := queue.StreamName((&task.FailedPageTask{}).TaskType())
	consumer := "retry-" + summary.RunID

	messages, err := s.queue.AutoClaim(ctx, consumer, stream, s.minIdleTime)
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale failed pages: %w", err)
	}
	if len(messages) > 0 {
		entry.Infof("🔄 Auto-claimed %d stale failed-page messages", len(messages))
	}

	for {
		msg, err := s.queue.GetTask(ctx, consumer, stream)
		if err != nil {
			return nil, fmt.Errorf("failed to read failed pages: %w", err)
		}
		if msg == nil {
			break
		}
		messages = append(messages, *msg)
	}

	type pending struct {
		task   *task.FailedPageTask
		msgIDs []string
	}
	byURL := make(map[string]*pending)
	var urls []string

	for _, msg := range messages {
		failed, err := decodeFailedPage(msg.Values)
		if err != nil {
			entry.Errorf("❌ Dropping unreadable message %s: %v", msg.ID, err)
			s.ack(ctx, stream, msg.ID)
			continue
		}

		p, ok := byURL[failed.URL]
		if !ok {
			p = &pending{task: failed}
			byURL[failed.URL] = p
			urls = append(urls, failed.URL)
		} else if failed.RetryCount > p.task.RetryCount {
			p.task = failed
		}
		p.msgIDs = append(p.msgIDs, msg.ID)
	}

	summary.SitemapURLs = len(urls)
	summary.Selected = len(urls)
	entry.Infof("🔁 Retrying %d failed pages from %d queued messages", len(urls), len(messages))

	stats := &pageStats{}
	result := s.schedule(ctx, opts, urls, stats)

	bookCtx := context.WithoutCancel(ctx)
	summary.Cancelled = ctx.Err() != nil

	for _, r := range result.Results {
		p := byURL[r.URL]
		switch r.Status {
		case domain.CrawlStatusSucceeded:
			entry.WithField("url", r.URL).Infof("✅ Recovered page after %d earlier retries", p.task.RetryCount)
		case domain.CrawlStatusFailed:
			s.recordFailure(bookCtx, summary.RunID, &task.FailedPageTask{
				URL:        r.URL,
				RunID:      summary.RunID,
				Stage:      stageOf(r.Err),
				Error:      r.Err.Error(),
				RetryCount: p.task.RetryCount + 1,
			})
		default:
			continue
		}
		for _, id := range p.msgIDs {
			s.ack(bookCtx, stream, id)
		}
	}

	s.finish(bookCtx, summary, result, stats, started)
	return summary, nil
}

func newRunSummary(root string) *RunSummary {
	return &RunSummary{
		RunID:    uuid.NewString(),
		RootURL:  root,
		Merge:    domain.NewMergeCounts(),
		Failures: make(map[domain.FailureStage]int),
	}
}

func (s *Service) schedule(ctx context.Context, opts RunOptions, urls []string, stats *pageStats) scheduler.Summary {
	sched := scheduler.New(scheduler.Config{
		MaxConcurrent: opts.Workers,
		StartInterval: opts.StartInterval,
	})
	return sched.Run(ctx, urls, func(ctx context.Context, url string) error {
		return s.processPage(ctx, url, stats)
	})
}

// processPage is one task: fetch, extract, merge. No store transaction is
// open while the page is fetched.
func (s *Service) processPage(ctx context.Context, url string, stats *pageStats) error {
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return &StageError{Stage: domain.FailureStageFetch, URL: url, Err: err}
	}

	records, err := s.extractor.Extract(url, body)
	if err != nil {
		return &StageError{Stage: domain.FailureStageExtract, URL: url, Err: err}
	}
	if len(records) == 0 {
		log.WithField("url", url).Debug("📭 No catalog records on page")
		stats.add(0, domain.MergeCounts{})
		return nil
	}

	counts, err := s.upserter.Merge(ctx, records)
	stats.add(len(records), counts)
	s.metrics.Merge(counts)
	if err != nil {
		return &StageError{Stage: domain.FailureStageMerge, URL: url, Err: err}
	}

	log.WithField("url", url).Infof("🧩 Merged %d/%d records (%d rows created)", counts.Merged, counts.Records, counts.TotalCreated())
	return nil
}

func (s *Service) skipCompleted(ctx context.Context, root string, urls []string) ([]string, error) {
	completed, err := s.stateManager.CompletedURLs(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load crawl checkpoint: %w", err)
	}
	if len(completed) == 0 {
		return urls, nil
	}

	remaining := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, done := completed[u]; !done {
			remaining = append(remaining, u)
		}
	}
	return remaining, nil
}

func (s *Service) recordFailure(ctx context.Context, runID string, failed *task.FailedPageTask) {
	if _, err := s.queue.AddTask(ctx, failed); err != nil {
		log.WithFields(log.Fields{"run_id": runID, "url": failed.URL}).Errorf("❌ Failed to queue failed page: %v", err)
	}
}

func (s *Service) ack(ctx context.Context, stream, msgID string) {
	if err := s.queue.AckTask(ctx, stream, msgID); err != nil {
		log.Errorf("❌ %v", err)
	}
}

func (s *Service) finish(ctx context.Context, summary *RunSummary, result scheduler.Summary, stats *pageStats, started time.Time) {
	for _, r := range result.Results {
		stage := domain.FailureStage("")
		if r.Status == domain.CrawlStatusFailed {
			stage = stageOf(r.Err)
			summary.Failures[stage]++
		}
		s.metrics.Page(r.Status, stage)
	}

	summary.Crawled = result.Count(domain.CrawlStatusSucceeded) + result.Count(domain.CrawlStatusFailed)
	summary.Abandoned = result.Count(domain.CrawlStatusAbandoned)
	summary.Extracted = stats.extracted
	summary.Records = stats.records
	summary.Merge = stats.merge
	summary.Duration = time.Since(started)

	counts, err := s.repository.Counts(ctx)
	if err != nil {
		log.Errorf("❌ Failed to count catalog rows: %v", err)
	}
	summary.Catalog = counts

	logSummary(summary)
}

func logSummary(summary *RunSummary) {
	entry := log.WithField("run_id", summary.RunID)

	entry.Infof("📊 Finished in %v: %d sitemap URLs, %d crawled, %d extracted, %d records",
		summary.Duration.Round(time.Millisecond),
		summary.SitemapURLs,
		summary.Crawled,
		summary.Extracted,
		summary.Records,
	)
	entry.Infof("🧱 Rows created: %d, updated: %d, unchanged: %d, records failed: %d",
		summary.Merge.TotalCreated(),
		summary.Merge.TotalUpdated(),
		summary.Merge.TotalUnchanged(),
		summary.Merge.Failed,
	)
	entry.Infof("❌ Failures: fetch %d, extract %d, merge %d, other %d",
		summary.Failures[domain.FailureStageFetch],
		summary.Failures[domain.FailureStageExtract],
		summary.Failures[domain.FailureStageMerge],
		summary.Failures[domain.FailureStageUnknown],
	)
	for _, level := range domain.CatalogLevels {
		if n, ok := summary.Catalog[level]; ok {
			entry.Infof("📦 %s in catalog: %d", level.GetLevelName(), n)
		}
	}
	if summary.Cancelled {
		entry.Warnf("🛑 Run cancelled, %d pages were never started", summary.Abandoned)
	}
}
