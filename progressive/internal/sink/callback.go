package sink

import (
	"context"

	"github.com/hazyhaar/pif/progressive/event"
)

// LoadFunc is called for each load event.
type LoadFunc func(ctx context.Context, l event.Load) error

// ReportFunc is called for each report.
type ReportFunc func(ctx context.Context, r event.Report) error

// Callback delivers events as in-process function calls, for embedders
// that run the upgrader in the same binary as their consumer.
type Callback struct {
	onLoad   LoadFunc
	onReport ReportFunc
}

// NewCallback creates a Callback sink. Either handler may be nil.
func NewCallback(onLoad LoadFunc, onReport ReportFunc) *Callback {
	return &Callback{onLoad: onLoad, onReport: onReport}
}

func (c *Callback) SendLoad(ctx context.Context, l event.Load) error {
	if c.onLoad != nil {
		return c.onLoad(ctx, l)
	}
	return nil
}

func (c *Callback) SendReport(ctx context.Context, r event.Report) error {
	if c.onReport != nil {
		return c.onReport(ctx, r)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
