package loader

import (
	"context"
	"log/slog"
)

// Poster is the event loop of the page that issued a request. Begin is
// called synchronously when the request is issued; Post is called exactly
// once when it completes, with nil when the load failed.
type Poster interface {
	Begin()
	Post(fn func())
}

// Loader issues independent asynchronous image requests.
type Loader struct {
	fetch  *Fetcher
	logger *slog.Logger
}

// New creates a Loader on top of a Fetcher.
func New(f *Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetch: f, logger: logger}
}

// Request starts fetching imageURL and returns immediately. On success
// onload is posted to p; on failure nothing but the completion is posted,
// so the requester never sees an error.
func (l *Loader) Request(ctx context.Context, p Poster, imageURL string, onload func(Result)) {
	p.Begin()
	go func() {
		res, err := l.fetch.Fetch(ctx, imageURL)
		if err != nil {
			l.logger.Debug("loader: image not loaded", "url", imageURL, "error", err)
			p.Post(nil)
			return
		}
		l.logger.Debug("loader: image loaded",
			"url", imageURL, "format", res.Format, "size", res.Size)
		p.Post(func() { onload(*res) })
	}()
}
