package progressive

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/pif/dbopen"
	"github.com/hazyhaar/pif/progressive/internal/metrics"
	"github.com/hazyhaar/pif/progressive/internal/sink"
	"github.com/hazyhaar/pif/progressive/internal/store"
)

// Sink is the output interface for load events and reports.
type Sink = sink.Sink

// Store is the SQLite store of load events and reports. It is also a Sink.
type Store = store.Store

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// LoadFunc is called for each load event.
type LoadFunc = sink.LoadFunc

// ReportFunc is called for each report.
type ReportFunc = sink.ReportFunc

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(onLoad LoadFunc, onReport ReportFunc) Sink {
	return sink.NewCallback(onLoad, onReport)
}

// OpenStore opens the SQLite store described by sc, metrics table included.
// Zero BusyTimeout or Synchronous keep the dbopen defaults.
func OpenStore(sc StoreConfig) (*Store, error) {
	var opts []dbopen.Option
	if sc.BusyTimeout > 0 {
		opts = append(opts, dbopen.WithBusyTimeout(int(sc.BusyTimeout.Milliseconds())))
	}
	if sc.Synchronous != "" {
		opts = append(opts, dbopen.WithSynchronous(sc.Synchronous))
	}
	st, err := store.Open(sc.Path, opts...)
	if err != nil {
		return nil, err
	}
	if err := metrics.Init(st.DB); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// NewMetricsSink creates a sink recording load and settle timings in the
// metrics table of st.
func NewMetricsSink(st *Store, logger *slog.Logger) Sink {
	return metrics.New(st.DB, 0, 0, logger)
}

// PruneMetrics deletes metrics older than retention from st.
func PruneMetrics(ctx context.Context, st *Store, retention time.Duration) (int64, error) {
	return metrics.Cleanup(ctx, st.DB, retention)
}

// SinksFromConfig builds the sinks listed in cfg. st backs the "sqlite"
// and "metrics" entries; they are skipped when st is nil. The caller keeps
// ownership of st and closes it after the upgrader.
func SinksFromConfig(cfg *Config, st *Store, logger *slog.Logger) []Sink {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			sinks = append(sinks, NewStdoutSink(nil))
		case "webhook":
			sinks = append(sinks, NewWebhookSink(sc.URL, logger))
		case "sqlite", "metrics":
			if st == nil {
				logger.Warn("progressive: sink needs a store", "type", sc.Type)
				continue
			}
			if sc.Type == "sqlite" {
				sinks = append(sinks, borrowedStore{st})
			} else {
				sinks = append(sinks, NewMetricsSink(st, logger))
			}
		default:
			logger.Warn("progressive: unknown sink type", "type", sc.Type)
		}
	}
	return sinks
}

// borrowedStore is a store used as a sink by an upgrader that does not own
// it: closing the upgrader leaves the database open.
type borrowedStore struct{ *Store }

func (borrowedStore) Close() error { return nil }
