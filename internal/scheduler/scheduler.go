package scheduler

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/domain"
	"runtime/debug"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TaskFunc processes one leaf URL. A returned error marks the task failed.
type TaskFunc func(ctx context.Context, url string) error

type Config struct {
	MaxConcurrent int
	StartInterval time.Duration // Minimum gap between two task starts, 0 disables
}

type Result struct {
	URL    string
	Status domain.CrawlStatus
	Err    error
}

type Summary struct {
	Total    int
	Counts   map[domain.CrawlStatus]int
	Results  []Result // In completion order
	Duration time.Duration
}

func (s Summary) Count(status domain.CrawlStatus) int {
	return s.Counts[status]
}

// FailedURLs lists the URLs whose task returned an error or panicked.
func (s Summary) FailedURLs() []string {
	urls := make([]string, 0, s.Counts[domain.CrawlStatusFailed])
	for _, r := range s.Results {
		if r.Status == domain.CrawlStatusFailed {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// crawlTask is one leaf URL and where it is in its fetch, extract and merge pipeline.
type crawlTask struct {
	URL    string
	Status domain.CrawlStatus
}

type Scheduler struct {
	workers int
	limiter *rate.Limiter
}

func New(cfg Config) *Scheduler {
	workers := cfg.MaxConcurrent
	if workers < 1 {
		workers = 1
	}

	var limiter *rate.Limiter
	if cfg.StartInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.StartInterval), 1)
	}

	return &Scheduler{workers: workers, limiter: limiter}
}

// Run executes fn once per URL on a bounded worker pool and returns after
// every task is terminal. Cancelling ctx stops new starts; tasks already
// running finish on a context that ignores the cancellation, and the rest
// are reported as abandoned.
func (s *Scheduler) Run(ctx context.Context, urls []string, fn TaskFunc) Summary {
	started := time.Now()
	summary := Summary{
		Total:   len(urls),
		Counts:  make(map[domain.CrawlStatus]int, 3),
		Results: make([]Result, 0, len(urls)),
	}

	tasks := make(chan *crawlTask)
	results := make(chan Result, s.workers)
	taskCtx := context.WithoutCancel(ctx)

	var inFlight atomic.Int32
	g := new(errgroup.Group)

	g.Go(func() error {
		defer close(tasks)
		for i, url := range urls {
			select {
			case <-ctx.Done():
				for _, rest := range urls[i:] {
					results <- Result{URL: rest, Status: domain.CrawlStatusAbandoned, Err: ctx.Err()}
				}
				return nil
			case tasks <- &crawlTask{URL: url, Status: domain.CrawlStatusPending}:
			}
		}
		return nil
	})

	for i := 0; i < s.workers; i++ {
		workerID := i + 1
		g.Go(func() error {
			for t := range tasks {
				if err := s.waitStart(ctx); err != nil {
					t.Status = domain.CrawlStatusAbandoned
					results <- Result{URL: t.URL, Status: t.Status, Err: err}
					continue
				}

				t.Status = domain.CrawlStatusInFlight
				log.WithFields(log.Fields{
					"url":       t.URL,
					"worker":    workerID,
					"in_flight": inFlight.Add(1),
				}).Debug("🚀 Task started")

				err := runTask(taskCtx, fn, t.URL)
				inFlight.Add(-1)

				if err != nil {
					t.Status = domain.CrawlStatusFailed
					log.WithField("url", t.URL).Errorf("❌ Task failed: %v", err)
				} else {
					t.Status = domain.CrawlStatusSucceeded
				}
				results <- Result{URL: t.URL, Status: t.Status, Err: err}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	for r := range results {
		summary.Counts[r.Status]++
		summary.Results = append(summary.Results, r)
	}

	summary.Duration = time.Since(started)
	return summary
}

func (s *Scheduler) waitStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func runTask(ctx context.Context, fn TaskFunc, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("url", url).Errorf("💥 Task panicked: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, url)
}
