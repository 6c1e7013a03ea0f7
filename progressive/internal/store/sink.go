package store

import (
	"context"

	"github.com/hazyhaar/pif/progressive/event"
)

// SendLoad implements sink.Sink.
func (s *Store) SendLoad(ctx context.Context, l event.Load) error {
	_, err := s.InsertLoad(ctx, &l)
	return err
}

// SendReport implements sink.Sink.
func (s *Store) SendReport(ctx context.Context, r event.Report) error {
	return s.InsertReport(ctx, &r)
}
