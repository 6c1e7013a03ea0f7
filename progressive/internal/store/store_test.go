package store

import (
	"context"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pif/dbopen"
	"github.com/hazyhaar/pif/progressive/event"
	"github.com/hazyhaar/pif/progressive/internal/sink"
)

var _ sink.Sink = (*Store)(nil)

func testStore(t *testing.T) *Store {
	t.Helper()
	return &Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(Schema))}
}

func TestLoads(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &event.Load{ID: "ld_1", PageID: "pg", Placeholder: 0, Role: event.RoleLow, URL: "/a_thumb.png", Timestamp: 10}
	second := &event.Load{ID: "ld_2", PageID: "pg", Placeholder: 0, Role: event.RoleHigh, URL: "/a.png", Width: 40, Height: 30, Format: "png", Timestamp: 20}
	for _, l := range []*event.Load{second, first} {
		ok, err := s.InsertLoad(ctx, l)
		if err != nil || !ok {
			t.Fatalf("insert %s: ok=%v err=%v", l.ID, ok, err)
		}
	}

	ok, err := s.InsertLoad(ctx, &event.Load{ID: "ld_3", PageID: "pg", Placeholder: 0, Role: event.RoleLow, URL: "/a_thumb.png"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second load of the same image must be ignored")
	}

	loads, err := s.ListLoads(ctx, "pg")
	if err != nil {
		t.Fatal(err)
	}
	if len(loads) != 2 {
		t.Fatalf("loads = %d, want 2", len(loads))
	}
	if loads[0].ID != "ld_1" || loads[1].Format != "png" || loads[1].Role != event.RoleHigh {
		t.Errorf("loads = %+v, %+v", loads[0], loads[1])
	}

	other, err := s.ListLoads(ctx, "nope")
	if err != nil || len(other) != 0 {
		t.Errorf("other page: %v %v", other, err)
	}
}

func TestReports(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if r, err := s.LatestReport(ctx, "pg"); err != nil || r != nil {
		t.Fatalf("empty: %v %v", r, err)
	}

	for i, id := range []string{"rpt_1", "rpt_2"} {
		err := s.SendReport(ctx, event.Report{
			ID: id, PageID: "pg", Placeholders: 2, Requested: 4, Loaded: 3 + i, Pending: 1 - i,
			Appended: 2, HTMLHash: "h", Timestamp: int64(100 + i),
			Items: []event.Item{{Placeholder: 1, Low: event.StateLoaded, High: event.StatePending, Appended: true}},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	r, err := s.LatestReport(ctx, "pg")
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != "rpt_2" || r.Loaded != 4 || r.Pending != 0 {
		t.Errorf("latest = %+v", r)
	}
	if len(r.Items) != 1 || r.Items[0].High != event.StatePending {
		t.Errorf("items = %+v", r.Items)
	}
}

func TestOpen_File(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db", "pif.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.SendLoad(context.Background(), event.Load{ID: "ld", PageID: "pg", Role: event.RoleLow, URL: "/x"}); err != nil {
		t.Fatal(err)
	}
}
