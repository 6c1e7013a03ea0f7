package progressive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pif/dom"
)

// Page is a parsed document together with the event loop its image
// callbacks run on. Loader goroutines never touch the document: they post
// callbacks, and Settle runs them on the calling goroutine, one at a time.
type Page struct {
	ID  string
	URL string
	Doc *html.Node

	base *url.URL

	mu       sync.Mutex
	queue    []func()
	pending  int
	wake     chan struct{}
	upgraded bool

	// Set by Upgrade; read after Settle on the loop goroutine.
	placeholders []*Placeholder
}

// NewPage wraps an already parsed document. pageURL is the base used to
// resolve relative image URLs; it may be empty.
func NewPage(id, pageURL string, doc *html.Node) (*Page, error) {
	p := &Page{
		ID:   id,
		URL:  pageURL,
		Doc:  doc,
		wake: make(chan struct{}, 1),
	}
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("progressive: page url: %w", err)
		}
		p.base = u
	}
	return p, nil
}

// ParsePage parses r as an HTML document and wraps it in a Page.
func ParsePage(id, pageURL string, r io.Reader) (*Page, error) {
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("progressive: parse: %w", err)
	}
	return NewPage(id, pageURL, doc)
}

// Resolve turns an attribute URL into the absolute URL to fetch, the way a
// browser resolves img.src against the document base.
func (p *Page) Resolve(ref string) string {
	if p.base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return p.base.ResolveReference(u).String()
}

// Begin registers a request in flight.
func (p *Page) Begin() {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()
}

// Post queues the completion of a request. fn is nil when the request
// failed; the request still stops being pending once Settle sees it.
func (p *Page) Post(fn func()) {
	p.mu.Lock()
	p.queue = append(p.queue, fn)
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of requests whose completion has not been
// processed by Settle yet.
func (p *Page) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Settle runs queued callbacks until no request is pending or ctx is done.
// Requests still pending when ctx ends keep their elements unloaded.
func (p *Page) Settle(ctx context.Context) error {
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		done := len(batch) == 0 && p.pending == 0
		p.mu.Unlock()

		if done {
			return nil
		}
		for _, fn := range batch {
			if fn != nil {
				fn()
			}
			p.mu.Lock()
			p.pending--
			p.mu.Unlock()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-p.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Render serialises the document.
func (p *Page) Render(w io.Writer) error {
	return html.Render(w, p.Doc)
}

// HTML returns the serialised document.
func (p *Page) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		return nil, fmt.Errorf("progressive: render: %w", err)
	}
	return buf.Bytes(), nil
}

// Placeholders returns the placeholders captured by Upgrade, in document
// order. Nil before Upgrade.
func (p *Page) Placeholders() []*Placeholder {
	return p.placeholders
}

func (p *Page) markUpgraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.upgraded {
		return false
	}
	p.upgraded = true
	return true
}
