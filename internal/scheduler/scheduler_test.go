package scheduler

import (
	"context"
	"errors"
	"fmt"
	"oemcatalog/ingest/internal/domain"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://s.test/p/%d", i+1)
	}
	return out
}

func TestRun_AllSucceed(t *testing.T) {
	var calls atomic.Int32
	summary := New(Config{MaxConcurrent: 3}).Run(context.Background(), urls(10), func(context.Context, string) error {
		calls.Add(1)
		return nil
	})

	assert.Equal(t, int32(10), calls.Load())
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 10, summary.Count(domain.CrawlStatusSucceeded))
	assert.Len(t, summary.Results, 10)
	assert.Empty(t, summary.FailedURLs())
}

func TestRun_FailingAndPanickingTasksAreIsolated(t *testing.T) {
	list := urls(6)
	summary := New(Config{MaxConcurrent: 2}).Run(context.Background(), list, func(_ context.Context, url string) error {
		switch url {
		case list[1]:
			return errors.New("always fails")
		case list[4]:
			panic("extractor bug")
		}
		return nil
	})

	assert.Equal(t, 4, summary.Count(domain.CrawlStatusSucceeded))
	assert.Equal(t, 2, summary.Count(domain.CrawlStatusFailed))
	assert.ElementsMatch(t, []string{list[1], list[4]}, summary.FailedURLs())

	for _, r := range summary.Results {
		if r.URL == list[4] {
			assert.Contains(t, r.Err.Error(), "extractor bug")
		}
	}
}

func TestRun_RespectsConcurrencyBound(t *testing.T) {
	var current, peak atomic.Int32
	New(Config{MaxConcurrent: 3}).Run(context.Background(), urls(20), func(context.Context, string) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestRun_StartIntervalSpacesStarts(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	New(Config{MaxConcurrent: 4, StartInterval: 20 * time.Millisecond}).Run(context.Background(), urls(4), func(context.Context, string) error {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return nil
	})

	require.Len(t, starts, 4)
	first, last := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 55*time.Millisecond)
}

func TestRun_CancellationAbandonsUnstartedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	summary := New(Config{MaxConcurrent: 1}).Run(ctx, urls(5), func(taskCtx context.Context, _ string) error {
		calls.Add(1)
		cancel()
		// A started task keeps a live context after the run is cancelled.
		return taskCtx.Err()
	})

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 1, summary.Count(domain.CrawlStatusSucceeded))
	assert.Equal(t, 4, summary.Count(domain.CrawlStatusAbandoned))
	assert.Len(t, summary.Results, 5)
}

func TestRun_DuplicatesRunTwice(t *testing.T) {
	var calls atomic.Int32
	summary := New(Config{MaxConcurrent: 2}).Run(context.Background(), []string{"https://s.test/a", "https://s.test/a"}, func(context.Context, string) error {
		calls.Add(1)
		return nil
	})

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, summary.Count(domain.CrawlStatusSucceeded))
}

func TestRun_Empty(t *testing.T) {
	summary := New(Config{}).Run(context.Background(), nil, func(context.Context, string) error {
		t.Fatal("task must not run")
		return nil
	})
	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.Results)
}
