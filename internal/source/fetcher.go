// Package source fetches article text from the web for the analyze-url
// flow: rate-limited, robots.txt-aware, cached HTTP fetching plus HTML text
// extraction.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ppiankov/veristream/internal/cache"
	"github.com/ppiankov/veristream/internal/model"
	"github.com/ppiankov/veristream/internal/util"
	"github.com/ppiankov/veristream/internal/worker"
)

// Fetcher retrieves article text from URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	cache      cache.Store // nil disables caching
	logger     *slog.Logger

	respectRobots bool
	robotsMu      sync.Mutex
	robots        map[string]*robotstxt.RobotsData // keyed by scheme://host
}

// NewFetcher creates a fetcher from the HTTP configuration. c may be nil.
func NewFetcher(cfg model.HTTPConfig, c cache.Store, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	perHost := cfg.RequestsPerHost
	if perHost <= 0 {
		perHost = 1
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:     cfg.UserAgent,
		maxBytes:      cfg.MaxBodyBytes,
		limiter:       worker.NewLimiter(perHost, 2),
		cache:         c,
		logger:        logger,
		respectRobots: cfg.RespectRobotsTxt,
		robots:        make(map[string]*robotstxt.RobotsData),
	}
}

// FetchText retrieves a URL and returns its readable text content
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	html, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	text := ExtractText(html)
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", rawURL)
	}
	return text, nil
}

// Fetch retrieves the raw HTML of a URL, honoring robots.txt, the per-host
// rate limit and the cache
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if f.cache != nil {
		if page, ok := f.cache.Lookup(rawURL); ok {
			f.logger.Debug("cache hit", "url", rawURL, "age", time.Since(page.FetchedAt))
			return string(page.Body), nil
		}
	}

	if f.respectRobots {
		allowed, err := f.robotsAllowed(ctx, rawURL)
		if err != nil {
			f.logger.Warn("robots.txt check failed, proceeding", "url", rawURL, "error", err)
		} else if !allowed {
			return "", fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
	}

	if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	maxBytes := f.maxBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if f.cache != nil {
		page := cache.Page{URL: rawURL, Body: body, FetchedAt: time.Now()}
		if err := f.cache.Save(page, 0); err != nil {
			f.logger.Warn("cache write failed", "url", rawURL, "error", err)
		}
	}
	return string(body), nil
}

// robotsAllowed checks the URL's path against the host's robots.txt,
// fetching and memoizing the policy per host
func (f *Fetcher) robotsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}
	base := parsed.Scheme + "://" + parsed.Host

	f.robotsMu.Lock()
	data, ok := f.robots[base]
	f.robotsMu.Unlock()

	if !ok {
		data, err = f.fetchRobots(ctx, base)
		if err != nil {
			return false, err
		}
		f.robotsMu.Lock()
		f.robots[base] = data
		f.robotsMu.Unlock()
	}

	return data.TestAgent(parsed.Path, f.userAgent), nil
}

func (f *Fetcher) fetchRobots(ctx context.Context, base string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return robotstxt.FromResponse(resp)
}
