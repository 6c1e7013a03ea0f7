package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/pif/dbopen"
	"github.com/hazyhaar/pif/progressive/event"
)

// InsertLoad records a load event. Loaded state is monotonic, so a second
// event for the same image is ignored and reported as false.
func (s *Store) InsertLoad(ctx context.Context, l *event.Load) (bool, error) {
	if l.Timestamp == 0 {
		l.Timestamp = time.Now().UnixMilli()
	}
	res, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO pif_loads
			(id, page_id, page_url, placeholder, role, url, width, height, format,
			 bytes, duration_ms, loaded_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(page_id, placeholder, role) DO NOTHING`,
		l.ID, l.PageID, l.PageURL, l.Placeholder, string(l.Role), l.URL,
		l.Width, l.Height, l.Format, l.Bytes, l.DurationMs, l.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("store: insert load: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListLoads returns the load events of a page in load order.
func (s *Store) ListLoads(ctx context.Context, pageID string) ([]*event.Load, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, page_id, page_url, placeholder, role, url, width, height, format,
		       bytes, duration_ms, loaded_at
		FROM pif_loads WHERE page_id = ?
		ORDER BY loaded_at, id`, pageID)
	if err != nil {
		return nil, fmt.Errorf("store: list loads: %w", err)
	}
	defer rows.Close()

	var loads []*event.Load
	for rows.Next() {
		l := &event.Load{}
		var role string
		if err := rows.Scan(&l.ID, &l.PageID, &l.PageURL, &l.Placeholder, &role,
			&l.URL, &l.Width, &l.Height, &l.Format, &l.Bytes, &l.DurationMs, &l.Timestamp); err != nil {
			return nil, err
		}
		l.Role = event.Role(role)
		loads = append(loads, l)
	}
	return loads, rows.Err()
}
