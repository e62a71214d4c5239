package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxPageBytes        = 5 * 1024 * 1024
	defaultFetchTimeout = 20 * time.Second
	bootstrapTimeout    = 10 * time.Second
)

// Fetcher downloads the rule-filings page through an optional proxy pool,
// rotating user agents and pacing requests with a rate limiter.
type Fetcher struct {
	client       *http.Client
	targetURL    string
	bootstrapURL string
	tabPrefix    string
	agents       []string
	limiter      *rate.Limiter
	timeout      time.Duration
}

func NewFetcher(cfg Config) (*Fetcher, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if len(cfg.ProxyURLs) > 0 {
		pool, err := newProxyPool(cfg.ProxyURLs)
		if err != nil {
			return nil, err
		}
		transport.Proxy = pool.proxy
	}
	agents := defaultUserAgents
	if cfg.UserAgentsFile != "" {
		loaded, err := loadUserAgents(cfg.UserAgentsFile)
		if err != nil {
			return nil, err
		}
		agents = loaded
	}
	limit := rate.Limit(cfg.FetchRPS)
	if cfg.FetchRPS <= 0 {
		limit = rate.Inf
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:       &http.Client{Transport: transport},
		targetURL:    cfg.TargetURL,
		bootstrapURL: cfg.BootstrapURL,
		tabPrefix:    cfg.TabPrefix,
		agents:       agents,
		limiter:      rate.NewLimiter(limit, 1),
		timeout:      timeout,
	}, nil
}

// FetchPage retrieves the rule-filings page for year. A plain fetch is tried
// first; when the response lacks the per-year tab marker, the bootstrap URL
// is probed for session cookies and the fetch is retried with them.
func (f *Fetcher) FetchPage(ctx context.Context, year int) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ua := f.userAgent()
	page, err := f.get(ctx, ua, nil)
	if err == nil && bytes.Contains(page, []byte(yearMarker(f.tabPrefix, year))) {
		return page, nil
	}
	if err != nil {
		slog.Debug("plain fetch failed", "err", err)
	}
	cookies, err := f.bootstrapCookies(ctx, ua)
	if err != nil {
		slog.Warn("cookie bootstrap failed", "err", err)
	}
	return f.get(ctx, ua, cookies)
}

func (f *Fetcher) get(ctx context.Context, ua string, cookies []*http.Cookie) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	setHeaders(req, ua)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, f.targetURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (f *Fetcher) bootstrapCookies(ctx context.Context, ua string) ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, f.bootstrapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	setHeaders(req, ua)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, f.bootstrapURL)
	}
	return resp.Cookies(), nil
}

func (f *Fetcher) userAgent() string {
	return f.agents[rand.Intn(len(f.agents))]
}
