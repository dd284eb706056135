package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ProxySupplier hands out proxies round-robin; the fetcher asks for the next
// one whenever the origin blocks the current one.
type ProxySupplier interface {
	Get() string
	Len() int
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

const maxParallelProbes = 16

// NewProxySupplier probes every proxy against probeURL and keeps the ones that answer.
// An empty list yields a supplier that always returns "".
func NewProxySupplier(ctx context.Context, proxies []string, probeURL string) ProxySupplier {
	if len(proxies) == 0 {
		return &proxySupplier{}
	}

	log.Infof("🔄 Probing %d proxies against %s...", len(proxies), probeURL)

	working := make([]bool, len(proxies))
	semaphore := make(chan struct{}, maxParallelProbes)
	var wg sync.WaitGroup

	for i, proxyURL := range proxies {
		wg.Add(1)
		go func(index int, proxyURL string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			working[index] = probe(ctx, proxyURL, probeURL)
		}(i, proxyURL)
	}
	wg.Wait()

	// Keep configuration order so rotation is predictable.
	valid := make([]string, 0, len(proxies))
	for i, ok := range working {
		if ok {
			valid = append(valid, proxies[i])
		}
	}

	log.Infof("✅ Proxy supplier ready with %d of %d proxies", len(valid), len(proxies))
	return &proxySupplier{proxies: valid}
}

func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxyURL := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)
	return proxyURL
}

func (p *proxySupplier) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.proxies)
}

// probe reports whether probeURL answers with a non-error status through proxyURL.
// A 403 or 429 still counts as working: the proxy is reachable, the origin is just unfriendly.
func probe(ctx context.Context, proxyURL, probeURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)

	resp, err := client.R().
		SetContext(ctx).
		Head(probeURL)
	if err != nil {
		log.Infof("❌ Proxy %s unreachable: %v", proxyURL, err)
		return false
	}

	if resp.StatusCode() >= 500 {
		log.Infof("❌ Proxy %s answered %s", proxyURL, resp.Status())
		return false
	}

	log.Debugf("✅ Proxy %s is working", proxyURL)
	return true
}
