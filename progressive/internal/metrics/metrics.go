// Package metrics records image load timings and page settle times as
// SQLite timeseries. It is fed as a sink: each load and report becomes a
// few datapoints, buffered in memory and written in batches by a background
// goroutine, so sink delivery never waits on the database.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pif/dbopen"
	"github.com/hazyhaar/pif/progressive/event"
)

// Schema creates the metrics table.
const Schema = `
CREATE TABLE IF NOT EXISTS pif_metrics (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	name      TEXT NOT NULL,
	ts        INTEGER NOT NULL,
	value     REAL NOT NULL,
	labels    TEXT,
	unit      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_metrics_name_ts ON pif_metrics(name, ts DESC);
`

// Metric names.
const (
	ImageLoadMs      = "image_load_ms"
	ImageBytes       = "image_bytes"
	PageSettleMs     = "page_settle_ms"
	PagePending      = "page_pending"
	PagePlaceholders = "page_placeholders"
)

// Metric is a single datapoint.
type Metric struct {
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Unit      string            `json:"unit"`
}

// Manager buffers metrics and flushes them to SQLite in batches.
type Manager struct {
	db            *sql.DB
	bufferSize    int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []*Metric

	kick      chan struct{} // buffer reached bufferSize
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Init applies the schema to db.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("metrics: schema: %w", err)
	}
	return nil
}

// New creates a Manager flushing every flushInterval or whenever
// bufferSize datapoints are waiting. Zero values pick 100 and 5s.
func New(db *sql.DB, bufferSize int, flushInterval time.Duration, logger *slog.Logger) *Manager {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		db:            db,
		bufferSize:    bufferSize,
		flushInterval: flushInterval,
		logger:        logger,
		buffer:        make([]*Metric, 0, bufferSize),
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go m.flushLoop()
	return m
}

// Record queues a datapoint. A full buffer wakes the flush loop; Record
// itself never touches the database.
func (m *Manager) Record(mt *Metric) {
	m.mu.Lock()
	m.buffer = append(m.buffer, mt)
	full := len(m.buffer) >= m.bufferSize
	m.mu.Unlock()
	if full {
		select {
		case m.kick <- struct{}{}:
		default:
		}
	}
}

// SendLoad implements sink.Sink.
func (m *Manager) SendLoad(_ context.Context, l event.Load) error {
	ts := time.UnixMilli(l.Timestamp)
	labels := map[string]string{"role": string(l.Role)}
	if l.Format != "" {
		labels["format"] = l.Format
	}
	m.Record(&Metric{Name: ImageLoadMs, Timestamp: ts, Value: float64(l.DurationMs), Labels: labels, Unit: "milliseconds"})
	m.Record(&Metric{Name: ImageBytes, Timestamp: ts, Value: float64(l.Bytes), Labels: labels, Unit: "bytes"})
	return nil
}

// SendReport implements sink.Sink.
func (m *Manager) SendReport(_ context.Context, r event.Report) error {
	ts := time.UnixMilli(r.Timestamp)
	labels := map[string]string{"page_id": r.PageID}
	m.Record(&Metric{Name: PageSettleMs, Timestamp: ts, Value: float64(r.SettleMs), Labels: labels, Unit: "milliseconds"})
	m.Record(&Metric{Name: PagePending, Timestamp: ts, Value: float64(r.Pending), Labels: labels, Unit: "count"})
	m.Record(&Metric{Name: PagePlaceholders, Timestamp: ts, Value: float64(r.Placeholders), Labels: labels, Unit: "count"})
	return nil
}

// Close flushes remaining metrics and stops the flush loop.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}

// Flush writes buffered metrics now.
func (m *Manager) Flush() {
	m.mu.Lock()
	batch := m.buffer
	m.buffer = make([]*Metric, 0, m.bufferSize)
	m.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.write(ctx, batch); err != nil {
		m.logger.Error("metrics: flush", "error", err, "dropped", len(batch))
	}
}

func (m *Manager) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			m.Flush()
			return
		case <-m.kick:
			m.Flush()
		case <-ticker.C:
			m.Flush()
		}
	}
}

func (m *Manager) write(ctx context.Context, batch []*Metric) error {
	return dbopen.RunTx(ctx, m.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO pif_metrics (name, ts, value, labels, unit) VALUES (?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("metrics: prepare: %w", err)
		}
		defer stmt.Close()

		for _, mt := range batch {
			var labels sql.NullString
			if len(mt.Labels) > 0 {
				if b, err := json.Marshal(mt.Labels); err == nil {
					labels = sql.NullString{String: string(b), Valid: true}
				}
			}
			if _, err := stmt.ExecContext(ctx, mt.Name, mt.Timestamp.UnixMilli(), mt.Value, labels, mt.Unit); err != nil {
				return fmt.Errorf("metrics: insert %s: %w", mt.Name, err)
			}
		}
		return nil
	})
}

// Query returns metrics newest first. Empty name matches every metric; a
// zero since is unbounded; limit <= 0 means no limit.
func Query(ctx context.Context, db *sql.DB, name string, since time.Time, limit int) ([]*Metric, error) {
	q := "SELECT name, ts, value, labels, unit FROM pif_metrics WHERE 1=1"
	var args []any
	if name != "" {
		q += " AND name = ?"
		args = append(args, name)
	}
	if !since.IsZero() {
		q += " AND ts >= ?"
		args = append(args, since.UnixMilli())
	}
	q += " ORDER BY ts DESC, id DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("metrics: query: %w", err)
	}
	defer rows.Close()

	var out []*Metric
	for rows.Next() {
		var (
			mt     Metric
			ts     int64
			labels sql.NullString
		)
		if err := rows.Scan(&mt.Name, &ts, &mt.Value, &labels, &mt.Unit); err != nil {
			return nil, fmt.Errorf("metrics: scan: %w", err)
		}
		mt.Timestamp = time.UnixMilli(ts)
		if labels.Valid {
			json.Unmarshal([]byte(labels.String), &mt.Labels)
		}
		out = append(out, &mt)
	}
	return out, rows.Err()
}

// Cleanup deletes metrics older than retention and returns how many went.
func Cleanup(ctx context.Context, db *sql.DB, retention time.Duration) (int64, error) {
	res, err := dbopen.Exec(ctx, db, "DELETE FROM pif_metrics WHERE ts < ?", time.Now().Add(-retention).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("metrics: cleanup: %w", err)
	}
	return res.RowsAffected()
}
