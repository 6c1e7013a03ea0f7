package progressive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pif/progressive/event"
)

func TestNewWebhookSink_NilLogger(t *testing.T) {
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer hook.Close()

	s := NewWebhookSink(hook.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.SendLoad(ctx, event.Load{ID: "ld_1"}); err == nil {
		t.Fatal("expected error from a failing webhook")
	}
}

func TestOpenStore_Pragmas(t *testing.T) {
	st, err := OpenStore(StoreConfig{
		Path:        filepath.Join(t.TempDir(), "pif.db"),
		BusyTimeout: 2 * time.Second,
		Synchronous: "FULL",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.DB.SetMaxOpenConns(1)

	var busy, sync int
	if err := st.DB.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if err := st.DB.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if busy != 2000 || sync != 2 {
		t.Errorf("busy_timeout = %d, synchronous = %d, want 2000 and 2 (FULL)", busy, sync)
	}
}
