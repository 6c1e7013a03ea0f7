package progressive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPage_Resolve(t *testing.T) {
	p := mustPage(t, "https://example.com/blog/post.html", "<p></p>")
	cases := map[string]string{
		"img/a.jpg":               "https://example.com/blog/img/a.jpg",
		"/media/a.jpg":            "https://example.com/media/a.jpg",
		"//cdn.example.com/a":     "https://cdn.example.com/a",
		"http://other.test/a.jpg": "http://other.test/a.jpg",
	}
	for in, want := range cases {
		if got := p.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}

	noBase := mustPage(t, "", "<p></p>")
	if got := noBase.Resolve("a.jpg"); got != "a.jpg" {
		t.Errorf("no base: %q", got)
	}
}

func TestNewPage_BadURL(t *testing.T) {
	if _, err := ParsePage("x", "http://[::1", strings.NewReader("<p></p>")); err == nil {
		t.Error("expected error for invalid base url")
	}
}

func TestPage_SettleRunsCallbacksInOrder(t *testing.T) {
	p := mustPage(t, "", "<p></p>")
	var got []int
	for i := 0; i < 3; i++ {
		p.Begin()
	}
	go func() {
		for i := 0; i < 3; i++ {
			p.Post(func() { got = append(got, i) })
		}
	}()
	if err := p.Settle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("callbacks = %v", got)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d", p.Pending())
	}
}

func TestPage_SettleFailedCompletion(t *testing.T) {
	p := mustPage(t, "", "<p></p>")
	p.Begin()
	p.Post(nil)
	if err := p.Settle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Pending() != 0 {
		t.Errorf("pending = %d", p.Pending())
	}
}

func TestPage_SettleDeadline(t *testing.T) {
	p := mustPage(t, "", "<p></p>")
	p.Begin()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Settle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if p.Pending() != 1 {
		t.Errorf("pending = %d, want 1", p.Pending())
	}
}

func TestPage_SettleIdle(t *testing.T) {
	p := mustPage(t, "", "<p></p>")
	if err := p.Settle(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestPage_Render(t *testing.T) {
	p := mustPage(t, "", `<div class="placeholder"></div>`)
	if out := string(mustHTML(t, p)); !strings.Contains(out, `<div class="placeholder"></div>`) {
		t.Errorf("html = %s", out)
	}
	if p.Placeholders() != nil {
		t.Error("placeholders before upgrade")
	}
}
