package client

import (
	"context"
	"fmt"
	"net/http"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/metrics"
	"oemcatalog/ingest/internal/proxy"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// Fetcher returns the body of a catalog or sitemap URL, or a terminal error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

var defaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Accept":          "application/xml,text/xml,text/html,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Pragma":          "no-cache",
	"Cache-Control":   "no-cache",
}

type fetcher struct {
	rl            ratelimit.Limiter
	policy        RetryPolicy
	timeout       time.Duration
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	metrics       *metrics.Recorder
	sleep         func(ctx context.Context, d time.Duration) error

	// Held for reading by every request, for writing while the proxy changes
	proxyMutex sync.RWMutex

	// Cooldown after a URL stays blocked through every attempt
	cooldownMutex sync.RWMutex
	blockedUntil  time.Time
	cooldown      time.Duration
}

type Option func(*fetcher)

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(f *fetcher) { f.policy = policy.normalized() }
}

// WithLimiter replaces the request gate shared by every attempt.
func WithLimiter(rl ratelimit.Limiter) Option {
	return func(f *fetcher) { f.rl = rl }
}

// WithSleep replaces the backoff sleep; tests use it to record delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *fetcher) { f.sleep = sleep }
}

func WithBlockCooldown(d time.Duration) Option {
	return func(f *fetcher) { f.cooldown = d }
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(f *fetcher) { f.metrics = recorder }
}

func NewFetcher(cfg config.FetcherConfig, referer string, proxySupplier proxy.ProxySupplier, opts ...Option) Fetcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeaders(defaultHeaders)

	if referer != "" {
		client.SetHeader("Referer", referer)
	}
	for name, value := range cfg.Headers {
		client.SetHeader(name, value)
	}

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	policy := DefaultRetryPolicy()
	policy.MaxAttempts = cfg.MaxAttempts
	base := time.Duration(cfg.BackoffMs) * time.Millisecond
	switch {
	case base <= 0:
		policy.Backoff = NoBackoff
	case cfg.Backoff == config.BackoffExponential:
		policy.Backoff = ExponentialBackoff(base)
	default:
		policy.Backoff = LinearBackoff(base)
	}
	if cfg.RetryAllErrors {
		policy.Retryable = LenientRetryable
	}

	f := &fetcher{
		rl:            newLimiter(cfg.MaxRequestsPerSecond),
		policy:        policy.normalized(),
		timeout:       cfg.Timeout,
		httpClient:    client,
		proxySupplier: proxySupplier,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newLimiter(perSecond int) ratelimit.Limiter {
	if perSecond <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(perSecond, ratelimit.WithoutSlack)
}

func (f *fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var (
		lastStatus  int
		lastSnippet string
		lastErr     error
	)

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if err := f.waitForCooldown(ctx); err != nil {
			return "", fmt.Errorf("request cancelled: %w", err)
		}

		f.rl.Take()

		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("request cancelled: %w", err)
		}

		entry := log.WithFields(log.Fields{
			"url":     url,
			"attempt": fmt.Sprintf("%d/%d", attempt, f.policy.MaxAttempts),
		})

		status, body, err := f.do(ctx, url)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastStatus, lastSnippet, lastErr = 0, "", err
			f.metrics.FetchAttempt("error")
			entry.Warnf("🔄 Request failed: %v", err)

		case status >= http.StatusOK && status < http.StatusMultipleChoices:
			f.metrics.FetchAttempt("ok")
			entry.Infof("✅ HTTP %d", status)
			return body, nil

		default:
			lastStatus, lastSnippet, lastErr = status, Snippet(body, snippetLength), nil
			if !f.policy.Retryable(status) {
				f.metrics.FetchAttempt("terminal")
				entry.Warnf("❌ HTTP %d (not retryable): %s", status, emptyBody(lastSnippet))
				return "", &StatusError{URL: url, Status: status, Snippet: lastSnippet}
			}
			f.metrics.FetchAttempt("retryable")
			entry.Warnf("🚫 HTTP %d: %s", status, emptyBody(lastSnippet))
			if isBlocked(status) {
				f.rotateProxy()
			}
		}

		if attempt < f.policy.MaxAttempts {
			if err := f.sleep(ctx, f.policy.Backoff(attempt)); err != nil {
				return "", fmt.Errorf("request cancelled: %w", err)
			}
		}
	}

	if isBlocked(lastStatus) {
		f.triggerCooldown()
	}

	return "", &FetchExhaustedError{
		URL:        url,
		Attempts:   f.policy.MaxAttempts,
		LastStatus: lastStatus,
		Snippet:    lastSnippet,
		Err:        lastErr,
	}
}

func (f *fetcher) do(ctx context.Context, url string) (int, string, error) {
	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	f.proxyMutex.RLock()
	resp, err := f.httpClient.R().
		SetContext(reqCtx).
		Get(url)
	f.proxyMutex.RUnlock()
	if err != nil {
		return 0, "", err
	}

	return resp.StatusCode(), resp.String(), nil
}

func (f *fetcher) rotateProxy() {
	if f.proxySupplier == nil {
		return
	}
	newProxy := f.proxySupplier.Get()
	if newProxy == "" {
		return
	}

	f.proxyMutex.Lock()
	defer f.proxyMutex.Unlock()
	f.httpClient.SetProxy(newProxy)
	log.Infof("🔄 Switching to new proxy: %s", newProxy)
}

func (f *fetcher) triggerCooldown() {
	if f.cooldown <= 0 {
		return
	}

	f.cooldownMutex.Lock()
	defer f.cooldownMutex.Unlock()

	f.blockedUntil = time.Now().Add(f.cooldown)
	log.Warnf("🚫 Origin keeps blocking, pausing all requests until %v", f.blockedUntil.Format("15:04:05"))
}

func (f *fetcher) waitForCooldown(ctx context.Context) error {
	f.cooldownMutex.RLock()
	remaining := time.Until(f.blockedUntil)
	f.cooldownMutex.RUnlock()

	if remaining <= 0 {
		return nil
	}
	log.Debugf("🚫 Request held by cooldown for %v", remaining.Round(time.Second))
	return sleepContext(ctx, remaining)
}

func emptyBody(snippet string) string {
	if snippet == "" {
		return "[empty body]"
	}
	return snippet
}
