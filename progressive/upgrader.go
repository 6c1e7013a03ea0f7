// Package progressive upgrades placeholder containers of an HTML document
// into progressively loaded images.
//
// Each placeholder holds a low-resolution image and names its
// high-resolution counterpart in a data-large attribute. Upgrade requests
// both, marks each with the loaded class once it arrives, and appends the
// high-resolution element to the placeholder:
//
//	up := progressive.New(cfg, logger, sinks...)
//	page, _ := progressive.ParsePage("p1", "https://example.com/", r)
//	report, err := up.Run(ctx, page)
package progressive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pif/dom"
	"github.com/hazyhaar/pif/idgen"
	"github.com/hazyhaar/pif/progressive/event"
	"github.com/hazyhaar/pif/progressive/internal/loader"
	"github.com/hazyhaar/pif/progressive/internal/sink"
)

var (
	// ErrAlreadyUpgraded is returned when Upgrade runs twice on one page.
	ErrAlreadyUpgraded = errors.New("progressive: page already upgraded")
	// ErrNoDocument is returned for a nil page or a page without a document.
	ErrNoDocument = errors.New("progressive: no document")
)

// Placeholder is one container captured by Upgrade.
type Placeholder struct {
	Index int
	Node  *html.Node

	Small    *html.Node // nil when the container has no low-res element
	SmallURL string
	LargeURL string
	HasLarge bool       // data-large present and non-empty
	Large    *html.Node // appended high-res element

	Low  event.State
	High event.State
}

// Upgrader finds placeholders and drives their image loads.
type Upgrader struct {
	cfg         *Config
	placeholder dom.Selector
	small       dom.Selector
	loader      *loader.Loader
	router      *sink.Router
	loadID      idgen.Generator
	reportID    idgen.Generator
	logger      *slog.Logger
}

// NewPageID returns an ID for a page its caller did not name.
var NewPageID = idgen.Prefixed("pg_", idgen.NanoID(12))

// New creates an Upgrader. A nil cfg uses DefaultConfig.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) *Upgrader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Upgrader{
		cfg:         cfg,
		placeholder: dom.Compile(cfg.Selectors.Placeholder),
		small:       dom.Compile(cfg.Selectors.Small),
		loader:      loader.New(newFetcher(cfg.Fetch, logger), logger),
		router:      sink.NewRouter(logger, sinks...),
		loadID:      idgen.Prefixed("ld_", idgen.UUIDv7()),
		reportID:    idgen.Prefixed("rpt_", idgen.UUIDv7()),
		logger:      logger,
	}
}

func newFetcher(fc FetchConfig, logger *slog.Logger) *loader.Fetcher {
	opts := []loader.Option{
		loader.WithTimeout(fc.Timeout),
		loader.WithUserAgent(fc.UserAgent),
		loader.WithMaxBytes(fc.MaxBytes),
		loader.WithVerifyDecode(fc.Decode()),
		loader.WithLogger(logger),
	}
	if fc.HTTP2 {
		opts = append(opts, loader.WithHTTP2())
	}
	if fc.BlockPrivate {
		opts = append(opts, loader.WithBlockPrivate())
	}
	return loader.NewFetcher(opts...)
}

// Scan returns the placeholder containers of doc in document order. The
// result is a snapshot: nodes added later are not part of it.
func (u *Upgrader) Scan(doc *html.Node) []*Placeholder {
	nodes := u.placeholder.All(doc)
	out := make([]*Placeholder, len(nodes))
	for i, n := range nodes {
		out[i] = &Placeholder{
			Index: i,
			Node:  n,
			Low:   event.StateUnrequested,
			High:  event.StateUnrequested,
		}
	}
	return out
}

// Upgrade captures the placeholders of page and issues their image
// requests. It returns without waiting: completions are applied by
// page.Settle, which must run on this goroutine or after Upgrade returns.
// Requests and the load events their callbacks emit run under ctx, so a
// deadline on ctx also bounds sink delivery.
func (u *Upgrader) Upgrade(ctx context.Context, page *Page) error {
	if page == nil || page.Doc == nil {
		return ErrNoDocument
	}
	if !page.markUpgraded() {
		return ErrAlreadyUpgraded
	}

	phs := u.Scan(page.Doc)
	page.placeholders = phs
	for _, ph := range phs {
		u.upgradeOne(ctx, page, ph)
	}
	u.logger.Debug("progressive: upgrade started",
		"page_id", page.ID, "placeholders", len(phs), "pending", page.Pending())
	return nil
}

func (u *Upgrader) upgradeOne(ctx context.Context, page *Page, ph *Placeholder) {
	loaded := u.cfg.Selectors.LoadedClass

	ph.Small = u.small.First(ph.Node)
	if ph.Small != nil {
		ph.SmallURL = dom.Attr(ph.Small, "src")
	}
	if ph.SmallURL != "" {
		small := ph.Small
		ph.Low = event.StatePending
		u.loader.Request(ctx, page, page.Resolve(ph.SmallURL), func(res loader.Result) {
			dom.AddClass(small, loaded)
			ph.Low = event.StateLoaded
			u.emit(ctx, page, ph, event.RoleLow, res)
		})
	} else {
		u.logger.Debug("progressive: no low-res image", "page_id", page.ID, "placeholder", ph.Index)
	}

	large, _ := dom.Data(ph.Node, u.cfg.Selectors.LargeAttr)
	ph.LargeURL = large
	ph.HasLarge = large != ""
	if !ph.HasLarge {
		u.logger.Debug("progressive: no high-res url", "page_id", page.ID, "placeholder", ph.Index)
		return
	}
	if dom.IsVoid(ph.Node) {
		u.logger.Debug("progressive: placeholder cannot hold the high-res image",
			"page_id", page.ID, "placeholder", ph.Index, "tag", ph.Node.Data)
		return
	}

	img := dom.NewElement("img", html.Attribute{Key: "src", Val: large})
	ph.Large = img
	ph.High = event.StatePending
	u.loader.Request(ctx, page, page.Resolve(large), func(res loader.Result) {
		dom.AddClass(img, loaded)
		ph.High = event.StateLoaded
		u.emit(ctx, page, ph, event.RoleHigh, res)
	})
	ph.Node.AppendChild(img)
}

func (u *Upgrader) emit(ctx context.Context, page *Page, ph *Placeholder, role event.Role, res loader.Result) {
	if u.router.Len() == 0 {
		return
	}
	l := event.Load{
		ID:          u.loadID(),
		PageID:      page.ID,
		PageURL:     page.URL,
		Placeholder: ph.Index,
		Role:        role,
		URL:         res.URL,
		Width:       res.Width,
		Height:      res.Height,
		Format:      res.Format,
		Bytes:       res.Size,
		DurationMs:  res.Duration.Milliseconds(),
		Timestamp:   time.Now().UnixMilli(),
	}
	u.router.SendLoad(ctx, l)
}

// Run upgrades page, waits up to the configured settle timeout for its
// loads, and emits the report. Loads still pending when the timeout hits
// are reported as pending; that is not an error. Cancelling ctx is.
//
// Image requests and load events share the settle deadline; the report is
// delivered under sink_timeout. Requests still in flight when Run returns
// are cancelled.
func (u *Upgrader) Run(ctx context.Context, page *Page) (*event.Report, error) {
	start := time.Now()
	settleCtx, cancel := context.WithTimeout(ctx, u.cfg.SettleTimeout)
	defer cancel()
	if err := u.Upgrade(settleCtx, page); err != nil {
		return nil, err
	}

	err := page.Settle(settleCtx)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("progressive: settle: %w", ctx.Err())
	}
	if err != nil {
		u.logger.Info("progressive: settle timeout",
			"page_id", page.ID, "pending", page.Pending())
	}

	rep := u.Report(page)
	rep.SettleMs = time.Since(start).Milliseconds()
	if u.router.Len() > 0 {
		sendCtx, cancelSend := ctx, context.CancelFunc(func() {})
		if u.cfg.SinkTimeout > 0 {
			sendCtx, cancelSend = context.WithTimeout(ctx, u.cfg.SinkTimeout)
		}
		u.router.SendReport(sendCtx, *rep)
		cancelSend()
	}
	u.logger.Info("progressive: page upgraded",
		"page_id", page.ID, "placeholders", rep.Placeholders,
		"loaded", rep.Loaded, "pending", rep.Pending)
	return rep, nil
}

// Report summarises the current state of page's placeholders.
func (u *Upgrader) Report(page *Page) *event.Report {
	rep := &event.Report{
		ID:        u.reportID(),
		PageID:    page.ID,
		PageURL:   page.URL,
		Timestamp: time.Now().UnixMilli(),
		Items:     make([]event.Item, 0, len(page.placeholders)),
	}
	if doc, err := page.HTML(); err != nil {
		u.logger.Warn("progressive: report hash", "page_id", page.ID, "error", err)
	} else {
		rep.HTMLHash = event.HashHTML(doc)
	}
	for _, ph := range page.placeholders {
		rep.Placeholders++
		for _, st := range []event.State{ph.Low, ph.High} {
			switch st {
			case event.StatePending:
				rep.Requested++
				rep.Pending++
			case event.StateLoaded:
				rep.Requested++
				rep.Loaded++
			}
		}
		if ph.Large != nil {
			rep.Appended++
		}
		rep.Items = append(rep.Items, event.Item{
			Placeholder: ph.Index,
			LowURL:      ph.SmallURL,
			HighURL:     ph.LargeURL,
			Low:         ph.Low,
			High:        ph.High,
			Appended:    ph.Large != nil,
		})
	}
	return rep
}

// Close closes every sink.
func (u *Upgrader) Close() error {
	return u.router.Close()
}
