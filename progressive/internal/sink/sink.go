// Package sink defines output backends for upgrade events.
package sink

import (
	"context"

	"github.com/hazyhaar/pif/progressive/event"
)

// Sink is the output interface. Implementations deliver load events and
// reports to different backends (stdout, webhook, SQLite, in-process).
type Sink interface {
	SendLoad(ctx context.Context, l event.Load) error
	SendReport(ctx context.Context, r event.Report) error
	Close() error
}
