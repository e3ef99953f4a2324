// Package fetch provides the HTTP client used against government data
// portals: browser-like headers, a shared politeness rate limit, retries
// with exponential backoff, and atomic file downloads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pfrederiksen/labordata/internal/link"
)

const (
	// UserAgent mimics a desktop browser. Several of the portals return
	// 403 to anything that looks like a script.
	UserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	AcceptLanguage = "en-US,en;q=0.9"

	Timeout = 60 * time.Second

	// DefaultInterval is the minimum spacing between requests.
	DefaultInterval = 750 * time.Millisecond

	maxAttempts = 3
)

// Client fetches pages and files politely. All requests share one rate
// limiter, so concurrent callers still respect the per-host spacing.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	// retryInterval is the first backoff wait; tests shrink it.
	retryInterval time.Duration
}

// New creates a Client. A non-positive interval selects DefaultInterval.
func New(interval time.Duration, log *zap.Logger) *Client {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Client{
		http:          &http.Client{Timeout: Timeout},
		limiter:       rate.NewLimiter(rate.Every(interval), 1),
		log:           log,
		retryInterval: time.Second,
	}
}

// Get fetches rawURL, retrying transient failures with exponential
// backoff. Any status of 400 or above counts as a failure. The caller
// owns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limit: %w", err)
	}

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept-Language", AcceptLanguage)

		r, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", rawURL, err)
		}
		if r.StatusCode >= 400 {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			return fmt.Errorf("unexpected status %d for %s", r.StatusCode, rawURL)
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn("retrying request",
			zap.String("url", rawURL),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.Multiplier = 2

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx), notify)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// FindLinks fetches pageURL and returns the links selected by the CSS
// selector ("a[href]" when empty), with hrefs resolved to absolute URLs
// and texts trimmed.
func (c *Client) FindLinks(ctx context.Context, pageURL, selector string) ([]link.Link, error) {
	resp, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	if selector == "" {
		selector = "a[href]"
	}

	var links []link.Link
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, link.Link{
			URL:  base.ResolveReference(ref).String(),
			Text: strings.TrimSpace(sel.Text()),
		})
	})
	return links, nil
}

// Download streams rawURL into destPath, creating parent directories as
// needed. Bytes land in a .part sibling first and are renamed into place,
// so an interrupted transfer never leaves a plausible-looking file behind.
func (c *Client) Download(ctx context.Context, rawURL, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := destPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.CopyBuffer(f, resp.Body, make([]byte, 8192)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("moving download into place: %w", err)
	}
	return nil
}
