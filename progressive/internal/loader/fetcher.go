// Package loader is the image side of the host environment: it fetches image
// URLs over HTTP and reports successful loads back to the page that asked.
// A load succeeds when the response is 2xx and, unless disabled, the body
// decodes as an image. There is no retry and no cache.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/net/http2"

	"github.com/hazyhaar/pif/horosafe"
)

// Result describes a loaded image.
type Result struct {
	URL         string
	StatusCode  int
	ContentType string
	Size        int
	Width       int
	Height      int
	Format      string // gif | jpeg | png | webp, empty when decoding is off
	Duration    time.Duration
}

// Fetcher performs image GETs.
type Fetcher struct {
	client       *http.Client
	ua           string
	maxBytes     int64
	verifyDecode bool
	guard        func(string) error
	logger       *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the client timeout. Ignored when WithClient is used after it.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithMaxBytes caps the image body read.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithVerifyDecode toggles image decoding of fetched bodies.
func WithVerifyDecode(v bool) Option {
	return func(f *Fetcher) { f.verifyDecode = v }
}

// WithURLGuard screens every image URL, and every redirect target, with fn.
func WithURLGuard(fn func(string) error) Option {
	return func(f *Fetcher) { f.guard = fn }
}

// WithBlockPrivate rejects URLs, and redirects to URLs, resolving to private
// or loopback addresses.
func WithBlockPrivate() Option {
	return WithURLGuard(horosafe.ValidateURL)
}

// WithHTTP2 switches the client to a transport configured for HTTP/2.
func WithHTTP2() Option {
	return func(f *Fetcher) {
		t := &http.Transport{Proxy: http.ProxyFromEnvironment}
		if err := http2.ConfigureTransport(t); err != nil {
			f.logger.Warn("loader: http2 transport", "error", err)
			return
		}
		f.client = &http.Client{Timeout: f.client.Timeout, Transport: t}
	}
}

// WithLogger sets a custom logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher with sensible defaults.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{Timeout: 30 * time.Second},
		ua:           "Mozilla/5.0 (compatible; pif/1.0)",
		maxBytes:     20 << 20,
		verifyDecode: true,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	if f.guard != nil {
		f.client = horosafe.GuardClient(f.client, f.guard)
	}
	return f
}

// Fetch GETs an image URL. Any non-2xx status, transport error, oversized
// body, or undecodable body is an error.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (*Result, error) {
	if f.guard != nil {
		if err := f.guard(imageURL); err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("loader: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/*;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loader: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("loader: status %d", resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("loader: read body: %w", err)
	}

	res := &Result{
		URL:         imageURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        len(body),
	}
	if f.verifyDecode {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("loader: decode: %w", err)
		}
		res.Width, res.Height, res.Format = cfg.Width, cfg.Height, format
	}
	res.Duration = time.Since(start)
	return res, nil
}
