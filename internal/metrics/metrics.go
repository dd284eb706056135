// Package metrics holds the run counters of an ingestion run. The run is a
// batch job, so the counters are pushed once to a Pushgateway at the end
// instead of being scraped.
package metrics

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "oem_ingest"

// Recorder is safe for concurrent use. A nil *Recorder records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	fetchAttempts *prometheus.CounterVec
	pages         *prometheus.CounterVec
	rows          *prometheus.CounterVec
	sitemapURLs   prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP fetch attempts by outcome (ok, retryable, terminal, error).",
		}, []string{"outcome"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Catalog pages by terminal status and failure stage.",
		}, []string{"status", "stage"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_rows_total",
			Help:      "Catalog upserts by table and outcome (created, updated).",
		}, []string{"table", "outcome"}),
		sitemapURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sitemap_leaf_urls_total",
			Help:      "Leaf URLs discovered in the sitemap tree.",
		}),
	}
	r.registry.MustRegister(r.fetchAttempts, r.pages, r.rows, r.sitemapURLs)
	return r
}

func (r *Recorder) FetchAttempt(outcome string) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Page(status domain.CrawlStatus, stage domain.FailureStage) {
	if r == nil {
		return
	}
	r.pages.WithLabelValues(status.String(), string(stage)).Inc()
}

func (r *Recorder) Merge(counts domain.MergeCounts) {
	if r == nil {
		return
	}
	for level, n := range counts.Created {
		r.rows.WithLabelValues(level.TableName(), "created").Add(float64(n))
	}
	for level, n := range counts.Updated {
		r.rows.WithLabelValues(level.TableName(), "updated").Add(float64(n))
	}
	for level, n := range counts.Unchanged {
		r.rows.WithLabelValues(level.TableName(), "unchanged").Add(float64(n))
	}
}

func (r *Recorder) SitemapURLs(n int) {
	if r == nil {
		return
	}
	r.sitemapURLs.Add(float64(n))
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Push sends every counter to the Pushgateway at url under job, grouped by run id.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	if r == nil || url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
