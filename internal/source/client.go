package source

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/marketpulse/scrape-cli/internal/config"
	"github.com/marketpulse/scrape-cli/internal/model"
	"github.com/marketpulse/scrape-cli/internal/resilience"
)

// maxBodyBytes caps how much of a page is read; listing and detail pages
// are well under this.
const maxBodyBytes = 2 << 20

// PageCache is an optional TTL'd cache for raw page HTML, keyed by URL hash.
// internal/store provides the SQLite implementation.
type PageCache interface {
	GetPage(ctx context.Context, key string) ([]byte, error)
	SetPage(ctx context.Context, key string, html []byte, ttl time.Duration) error
}

// Client fetches and parses HTML pages with a shared user agent, timeout,
// per-run rate limit and retry policy.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	ua       string
	cache    PageCache
	cacheTTL time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithCache attaches a page cache consulted before every fetch.
func WithCache(cache PageCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// NewClient builds a Client from the scrape configuration.
func NewClient(cfg config.ScrapeConfig, opts ...Option) *Client {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1.0
	}

	c := &Client{
		http: &http.Client{
			Timeout: cfg.Timeout(),
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		retry:   retry,
		ua:      cfg.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDocument fetches a URL (honoring the rate limit, cache and retry
// policy) and parses it into a goquery document.
func (c *Client) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	html, err := c.GetHTML(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", url)
	}
	return doc, nil
}

// GetHTML fetches a URL's body as UTF-8 HTML.
func (c *Client) GetHTML(ctx context.Context, url string) ([]byte, error) {
	cacheKey := model.Hash(url)
	if c.cache != nil {
		if html, err := c.cache.GetPage(ctx, cacheKey); err == nil && html != nil {
			zap.L().Debug("page cache hit", zap.String("url", url))
			return html, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "source: rate limit wait")
	}

	html, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.fetchOnce(ctx, url)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetPage(ctx, cacheKey, html, c.cacheTTL); err != nil {
			zap.L().Warn("page cache write failed", zap.String("url", url), zap.Error(err))
		}
	}
	return html, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "source: create request for %s", url)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "source: fetch %s", url), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(eris.Errorf("source: fetch %s: status %d", url, resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("source: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "source: read %s", url), 0)
	}

	return decodeCharset(body, resp.Header.Get("Content-Type")), nil
}

// decodeCharset converts a body to UTF-8 based on the Content-Type charset
// parameter. Unknown or missing charsets are passed through unchanged.
func decodeCharset(body []byte, contentType string) []byte {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	cs := strings.ToLower(params["charset"])
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return body
	}
	enc, err := htmlindex.Get(cs)
	if err != nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}
