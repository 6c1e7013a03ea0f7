package progressive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/pif/horosafe"
)

// maxPageBytes caps a fetched document.
const maxPageBytes = 10 << 20

// PageFetcher GETs HTML documents and parses them into Pages.
type PageFetcher struct {
	client   *http.Client
	ua       string
	guard    func(string) error
	sanitize bool
	logger   *slog.Logger
}

// PageFetcherOption configures a PageFetcher.
type PageFetcherOption func(*PageFetcher)

// WithPageClient sets a custom HTTP client.
func WithPageClient(c *http.Client) PageFetcherOption {
	return func(f *PageFetcher) { f.client = c }
}

// WithPageUserAgent sets the User-Agent header.
func WithPageUserAgent(ua string) PageFetcherOption {
	return func(f *PageFetcher) { f.ua = ua }
}

// WithPageURLGuard screens the page URL and every redirect target with fn.
func WithPageURLGuard(fn func(string) error) PageFetcherOption {
	return func(f *PageFetcher) { f.guard = fn }
}

// WithPageBlockPrivate refuses URLs, and redirects to URLs, resolving to
// private addresses.
func WithPageBlockPrivate() PageFetcherOption {
	return WithPageURLGuard(horosafe.ValidateURL)
}

// WithPageSanitize runs fetched documents through Sanitize before parsing.
func WithPageSanitize(on bool) PageFetcherOption {
	return func(f *PageFetcher) { f.sanitize = on }
}

// WithPageLogger sets a custom logger. Nil keeps slog.Default().
func WithPageLogger(l *slog.Logger) PageFetcherOption {
	return func(f *PageFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewPageFetcher creates a PageFetcher with sensible defaults.
func NewPageFetcher(opts ...PageFetcherOption) *PageFetcher {
	f := &PageFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (compatible; pif/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.guard != nil {
		f.client = horosafe.GuardClient(f.client, f.guard)
	}
	return f
}

// Fetch GETs pageURL and parses the body. The page URL becomes the base
// for relative image URLs.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL, pageID string) (*Page, error) {
	if f.guard != nil {
		if err := f.guard(pageURL); err != nil {
			return nil, fmt.Errorf("progressive: fetch: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("progressive: fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("progressive: fetch: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("progressive: fetch: status %d", resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, maxPageBytes)
	if err != nil {
		return nil, fmt.Errorf("progressive: fetch: read body: %w", err)
	}

	f.logger.Debug("progressive: page fetched",
		"url", pageURL, "status", resp.StatusCode, "size", len(body))
	if f.sanitize {
		body = Sanitize(body)
	}

	return ParsePage(pageID, pageURL, bytes.NewReader(body))
}

// FetchPage fetches pageURL with a default PageFetcher.
func FetchPage(ctx context.Context, pageURL, pageID string) (*Page, error) {
	return NewPageFetcher().Fetch(ctx, pageURL, pageID)
}
