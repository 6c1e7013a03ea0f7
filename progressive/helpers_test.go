package progressive

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/pif/dom"
)

// imageServer serves a small PNG for every *.png path except those
// starting with /missing, which 404. /slow* blocks until the test ends.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	body := buf.Bytes()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/missing"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/slow"):
			select {
			case <-release:
			case <-r.Context().Done():
			}
			http.NotFound(w, r)
		case strings.HasSuffix(r.URL.Path, ".png"):
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv
}

func mustPage(t *testing.T, base, src string) *Page {
	t.Helper()
	p, err := ParsePage("test-page", base, strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mustHTML(t *testing.T, p *Page) []byte {
	t.Helper()
	b, err := p.HTML()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func placeholders(t *testing.T, p *Page) []*html.Node {
	t.Helper()
	return dom.QueryAll(p.Doc, ".placeholder")
}

// appended returns the img children of n that carry no img-small class.
func appended(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "img" && !dom.HasClass(c, "img-small") {
			out = append(out, c)
		}
	}
	return out
}

func htmlAttr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}
