package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pif/dbopen"
	"github.com/hazyhaar/pif/progressive/event"
)

// InsertReport records a report with its per-placeholder items.
func (s *Store) InsertReport(ctx context.Context, r *event.Report) error {
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	items, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("store: marshal items: %w", err)
	}
	_, err = dbopen.Exec(ctx, s.DB, `
		INSERT INTO pif_reports
			(id, page_id, page_url, placeholders, requested, loaded, pending,
			 appended, html_hash, items, settle_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.PageID, r.PageURL, r.Placeholders, r.Requested, r.Loaded, r.Pending,
		r.Appended, r.HTMLHash, string(items), r.SettleMs, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("store: insert report: %w", err)
	}
	return nil
}

// LatestReport returns the most recent report of a page, or nil.
func (s *Store) LatestReport(ctx context.Context, pageID string) (*event.Report, error) {
	r := &event.Report{}
	var items string
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, page_id, page_url, placeholders, requested, loaded, pending,
		       appended, html_hash, items, settle_ms, created_at
		FROM pif_reports WHERE page_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, pageID).Scan(
		&r.ID, &r.PageID, &r.PageURL, &r.Placeholders, &r.Requested, &r.Loaded,
		&r.Pending, &r.Appended, &r.HTMLHash, &items, &r.SettleMs, &r.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest report: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &r.Items); err != nil {
		return nil, fmt.Errorf("store: unmarshal items: %w", err)
	}
	return r, nil
}
