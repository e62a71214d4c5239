package monitor

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
)

// proxyPool hands out proxies round-robin, one per outgoing request.
type proxyPool struct {
	mu   sync.Mutex
	urls []*url.URL
	next int
}

func newProxyPool(raw []string) (*proxyPool, error) {
	pool := &proxyPool{}
	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", r, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy %q missing scheme or host", r)
		}
		pool.urls = append(pool.urls, u)
	}
	if len(pool.urls) == 0 {
		return nil, fmt.Errorf("empty proxy list")
	}
	return pool, nil
}

func (p *proxyPool) proxy(_ *http.Request) (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u := p.urls[p.next%len(p.urls)]
	p.next++
	return u, nil
}
