package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/pif/horosafe"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := pngBytes(t, 4, 3)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	})
	mux.HandleFunc("/text.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_OK(t *testing.T) {
	srv := imageServer(t)
	res, err := NewFetcher().Fetch(context.Background(), srv.URL+"/ok.png")
	if err != nil {
		t.Fatal(err)
	}
	if res.Width != 4 || res.Height != 3 || res.Format != "png" {
		t.Errorf("result = %+v", res)
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv := imageServer(t)
	if _, err := NewFetcher().Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetch_Undecodable(t *testing.T) {
	srv := imageServer(t)
	if _, err := NewFetcher().Fetch(context.Background(), srv.URL+"/text.png"); err == nil {
		t.Fatal("expected decode error")
	}
	res, err := NewFetcher(WithVerifyDecode(false)).Fetch(context.Background(), srv.URL+"/text.png")
	if err != nil {
		t.Fatalf("decode disabled: %v", err)
	}
	if res.Format != "" || res.Size != len("not an image") {
		t.Errorf("result = %+v", res)
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := imageServer(t)
	_, err := NewFetcher(WithMaxBytes(10)).Fetch(context.Background(), srv.URL+"/ok.png")
	if !errors.Is(err, horosafe.ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestFetch_BlockPrivate(t *testing.T) {
	srv := imageServer(t) // listens on 127.0.0.1
	_, err := NewFetcher(WithBlockPrivate()).Fetch(context.Background(), srv.URL+"/ok.png")
	if !errors.Is(err, horosafe.ErrSSRF) {
		t.Fatalf("got %v, want ErrSSRF", err)
	}
}

func TestFetch_RedirectToGuardedHost(t *testing.T) {
	blocked := imageServer(t)
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, blocked.URL+"/ok.png", http.StatusFound)
	}))
	t.Cleanup(redirector.Close)

	guard := func(raw string) error {
		if strings.HasPrefix(raw, blocked.URL) {
			return horosafe.ErrSSRF
		}
		return nil
	}
	fetchers := map[string]*Fetcher{
		"http1": NewFetcher(WithURLGuard(guard)),
		"http2": NewFetcher(WithHTTP2(), WithURLGuard(guard)),
	}
	for name, f := range fetchers {
		res, err := f.Fetch(context.Background(), redirector.URL+"/r.png")
		if !errors.Is(err, horosafe.ErrSSRF) {
			t.Errorf("%s: res=%v err=%v, want ErrSSRF", name, res, err)
		}
	}

	if _, err := NewFetcher().Fetch(context.Background(), redirector.URL+"/r.png"); err != nil {
		t.Fatalf("unguarded fetch: %v", err)
	}
}

type recordingPoster struct {
	mu      sync.Mutex
	begun   int
	posted  []func()
	settled chan struct{}
}

func (p *recordingPoster) Begin() {
	p.mu.Lock()
	p.begun++
	p.mu.Unlock()
}

func (p *recordingPoster) Post(fn func()) {
	p.mu.Lock()
	p.posted = append(p.posted, fn)
	p.mu.Unlock()
	p.settled <- struct{}{}
}

func TestRequest_PostsOnce(t *testing.T) {
	srv := imageServer(t)
	l := New(NewFetcher(), nil)
	p := &recordingPoster{settled: make(chan struct{}, 2)}

	var got Result
	l.Request(context.Background(), p, srv.URL+"/ok.png", func(r Result) { got = r })
	l.Request(context.Background(), p, srv.URL+"/missing.png", func(Result) {
		t.Error("onload must not run for a failed load")
	})

	if p.begun != 2 {
		t.Fatalf("Begin called %d times, want 2 before any completion", p.begun)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-p.settled:
		case <-time.After(5 * time.Second):
			t.Fatal("request never completed")
		}
	}

	var callbacks int
	for _, fn := range p.posted {
		if fn != nil {
			callbacks++
			fn()
		}
	}
	if callbacks != 1 {
		t.Fatalf("callbacks = %d, want 1", callbacks)
	}
	if got.Format != "png" {
		t.Errorf("onload result = %+v", got)
	}
}
