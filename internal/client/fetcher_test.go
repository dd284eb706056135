package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"oemcatalog/ingest/internal/config"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/ratelimit"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type countingSupplier struct {
	calls atomic.Int32
}

func (s *countingSupplier) Get() string {
	s.calls.Add(1)
	return ""
}

func (s *countingSupplier) Len() int { return 0 }

func testFetcherConfig(maxAttempts int) config.FetcherConfig {
	return config.FetcherConfig{
		Timeout:     5 * time.Second,
		MaxAttempts: maxAttempts,
	}
}

func newTestFetcher(t *testing.T, policy RetryPolicy, opts ...Option) (*fetcher, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	all := append([]Option{
		WithRetryPolicy(policy),
		WithLimiter(ratelimit.NewUnlimited()),
		WithSleep(rec.sleep),
	}, opts...)
	f := NewFetcher(testFetcherConfig(policy.MaxAttempts), "https://origin.test/", nil, all...).(*fetcher)
	return f, rec
}

func TestFetch_AlwaysTooManyRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("<html>\n  <body>  Request   blocked.\n\n Try later </body></html>"))
	}))
	defer srv.Close()

	policy := RetryPolicy{MaxAttempts: 4, Backoff: LinearBackoff(10 * time.Millisecond), Retryable: StrictRetryable}
	f, rec := newTestFetcher(t, policy)

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	assert.Equal(t, int32(4), hits.Load())
	assert.True(t, errors.Is(err, ErrFetchFailed))

	var exhausted *FetchExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, exhausted.LastStatus)
	assert.Equal(t, "<html> <body> Request blocked. Try later </body></html>", exhausted.Snippet)

	delays := rec.recorded()
	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
	}
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, delays)
}

func TestFetch_ExponentialBackoffFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testFetcherConfig(4)
	cfg.BackoffMs = 10
	cfg.Backoff = config.BackoffExponential

	rec := &sleepRecorder{}
	f := NewFetcher(cfg, "", nil, WithLimiter(ratelimit.NewUnlimited()), WithSleep(rec.sleep))

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, rec.recorded())
}

func TestFetch_NotFoundStrictPolicy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, RetryPolicy{MaxAttempts: 3, Retryable: StrictRetryable})

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, rec.recorded())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.True(t, errors.Is(err, ErrFetchFailed))
}

func TestFetch_NotFoundLenientPolicy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, RetryPolicy{MaxAttempts: 3, Retryable: LenientRetryable})

	_, err := f.Fetch(context.Background(), srv.URL)

	var exhausted *FetchExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, http.StatusNotFound, exhausted.LastStatus)
}

func TestFetch_SucceedsBeforeExhaustion(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<urlset/>"))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, RetryPolicy{MaxAttempts: 4, Backoff: LinearBackoff(time.Millisecond)})

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "<urlset/>", body)
	assert.Equal(t, int32(3), hits.Load())
	assert.Len(t, rec.recorded(), 2)
}

func TestFetch_FirstAttemptSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, RetryPolicy{MaxAttempts: 3})

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, rec.recorded())
}

func TestFetch_SendsBrowserHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		headers <- req.Header.Clone()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testFetcherConfig(1)
	cfg.Headers = map[string]string{"Accept-Language": "de-DE"}
	f := NewFetcher(cfg, "https://origin.test/", nil, WithLimiter(ratelimit.NewUnlimited()))

	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	h := <-headers
	assert.Contains(t, h.Get("User-Agent"), "Mozilla/5.0")
	assert.Equal(t, "https://origin.test/", h.Get("Referer"))
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "de-DE", h.Get("Accept-Language"))
	assert.Contains(t, h.Get("Accept"), "application/xml")
}

func TestFetch_TransportErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f, rec := newTestFetcher(t, RetryPolicy{MaxAttempts: 2, Backoff: LinearBackoff(time.Millisecond)})

	_, err := f.Fetch(context.Background(), url)

	var exhausted *FetchExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 0, exhausted.LastStatus)
	assert.Error(t, exhausted.Err)
	assert.Len(t, rec.recorded(), 1)
}

func TestFetch_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f, _ := newTestFetcher(t, RetryPolicy{MaxAttempts: 3}, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFetch_BlockedRotatesProxyAndStartsCooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	supplier := &countingSupplier{}
	rec := &sleepRecorder{}
	f := NewFetcher(testFetcherConfig(3), "", supplier,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3}),
		WithLimiter(ratelimit.NewUnlimited()),
		WithSleep(rec.sleep),
		WithBlockCooldown(time.Minute),
	).(*fetcher)

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	// One Get at construction, one per blocked attempt.
	assert.Equal(t, int32(4), supplier.calls.Load())
	assert.True(t, time.Until(f.blockedUntil) > 50*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// fixedSupplier hands out the same proxy on every call.
type fixedSupplier struct {
	proxyURL string
}

func (s fixedSupplier) Get() string { return s.proxyURL }
func (s fixedSupplier) Len() int    { return 1 }

func TestFetch_ProxyRotationDuringConcurrentFetches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	// The test server doubles as the proxy so every request still lands on it.
	f := NewFetcher(testFetcherConfig(3), "", fixedSupplier{proxyURL: srv.URL},
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3}),
		WithLimiter(ratelimit.NewUnlimited()),
		WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	).(*fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), srv.URL+"/page")
			assert.Error(t, err)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				f.rotateProxy()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8*3), hits.Load())
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", Snippet("  a\n\tb   c ", 500))
	assert.Equal(t, "", Snippet(" \n ", 500))

	long := strings.Repeat("x ", 1000)
	assert.Len(t, []rune(Snippet(long, snippetLength)), snippetLength)
}

func TestRetryPolicies(t *testing.T) {
	for _, status := range []int{403, 429, 500, 502, 503} {
		assert.True(t, StrictRetryable(status), "strict %d", status)
	}
	for _, status := range []int{400, 401, 404, 410} {
		assert.False(t, StrictRetryable(status), "strict %d", status)
		assert.True(t, LenientRetryable(status), "lenient %d", status)
	}
	assert.False(t, LenientRetryable(200))

	linear := LinearBackoff(time.Second)
	assert.Equal(t, 3*time.Second, linear(3))

	exp := ExponentialBackoff(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, exp(1))
	assert.Equal(t, 400*time.Millisecond, exp(3))

	p := RetryPolicy{}.normalized()
	assert.Equal(t, 1, p.MaxAttempts)
	assert.Equal(t, time.Duration(0), p.Backoff(5))
}
