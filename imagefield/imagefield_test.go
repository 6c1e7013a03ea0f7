package imagefield

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/pif/horosafe"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAspectRatio(t *testing.T) {
	cases := []struct {
		w, h int
		want float64
	}{
		{100, 500, 500},
		{500, 100, 20},
		{500, 500, 100},
		{125, 133, 106.4},
		{3, 1, 33.33},
		{0, 10, 0},
	}
	for _, c := range cases {
		if got := AspectRatio(c.w, c.h); got != c.want {
			t.Errorf("AspectRatio(%d, %d) = %v, want %v", c.w, c.h, got, c.want)
		}
	}
	if got := FormatPercent(AspectRatio(100, 500)); got != "500" {
		t.Errorf("FormatPercent = %q, want 500", got)
	}
	if got := FormatPercent(AspectRatio(125, 133)); got != "106.4" {
		t.Errorf("FormatPercent = %q, want 106.4", got)
	}
}

func TestThumbURL(t *testing.T) {
	cases := map[string]string{
		"/media/100x500.jpg":                   "/media/100x500_thumb.jpg",
		"/media/500x100.JPG":                   "/media/500x100_thumb.JPG",
		"/media/500x500.png":                   "/media/500x500_thumb.png",
		"https://cdn.example.com/a/b.webp?v=2": "https://cdn.example.com/a/b_thumb.webp?v=2",
		"/media/noext":                         "/media/noext_thumb",
	}
	for in, want := range cases {
		if got := ThumbURL(in); got != want {
			t.Errorf("ThumbURL(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ThumbName(filepath.Join("media", "aurora-borealis.jpg")); got != filepath.Join("media", "aurora-borealis_thumb.jpg") {
		t.Errorf("ThumbName = %q", got)
	}
}

func TestRender(t *testing.T) {
	got, err := Render(FieldFor("/media/100x500.jpg", "alt_text", 100, 500))
	if err != nil {
		t.Fatal(err)
	}
	want := `<div class="placeholder" data-large="/media/100x500.jpg">` +
		`<img class="img-small" src="/media/100x500_thumb.jpg" alt="alt_text">` +
		`<div style="padding-bottom:500%;"></div></div>`
	if string(got) != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestRender_EscapesAlt(t *testing.T) {
	got, err := Render(FieldFor("/media/a.jpg", `"><script>x</script>`, 10, 10))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(got), "<script>") {
		t.Errorf("alt not escaped: %s", got)
	}
}

func TestRender_EmptyURL(t *testing.T) {
	if _, err := Render(Field{}); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestThumbnail_Bounds(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{500, 100, 10, 2},
		{100, 500, 2, 10},
		{500, 500, 10, 10},
		{5, 3, 5, 3},
		{1000, 1, 10, 1},
	}
	for _, c := range cases {
		b := Thumbnail(solid(c.w, c.h), ThumbSize).Bounds()
		if b.Dx() != c.wantW || b.Dy() != c.wantH {
			t.Errorf("%dx%d → %dx%d, want %dx%d", c.w, c.h, b.Dx(), b.Dy(), c.wantW, c.wantH)
		}
	}
}

func TestGenerateThumb_KeepsFormat(t *testing.T) {
	var src bytes.Buffer
	if err := jpeg.Encode(&src, solid(64, 48), nil); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	format, err := GenerateThumb(&src, &out)
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	cfg, decoded, err := image.DecodeConfig(&out)
	if err != nil {
		t.Fatal(err)
	}
	if decoded != "jpeg" || cfg.Width > ThumbSize || cfg.Height > ThumbSize {
		t.Errorf("thumb = %s %dx%d", decoded, cfg.Width, cfg.Height)
	}
}

func TestGenerateThumb_Unsupported(t *testing.T) {
	_, err := GenerateThumb(strings.NewReader("not an image"), &bytes.Buffer{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestStore_Save(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "")

	f, err := s.Save("photos/500x100.png", bytes.NewReader(encodePNG(t, solid(500, 100))))
	if err != nil {
		t.Fatal(err)
	}
	if f.URL != "/media/photos/500x100.png" || f.ThumbURL != "/media/photos/500x100_thumb.png" {
		t.Errorf("field urls = %q, %q", f.URL, f.ThumbURL)
	}
	if f.Width != 500 || f.Height != 100 {
		t.Errorf("field size = %dx%d", f.Width, f.Height)
	}

	thumb, err := os.ReadFile(filepath.Join(root, "photos", "500x100_thumb.png"))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 10 || cfg.Height != 2 {
		t.Errorf("thumb = %dx%d, want 10x2", cfg.Width, cfg.Height)
	}
	if _, err := os.Stat(filepath.Join(root, "photos", "500x100.png")); err != nil {
		t.Errorf("original not written: %v", err)
	}
}

func TestStore_SaveTraversal(t *testing.T) {
	s := NewStore(t.TempDir(), "")
	_, err := s.Save("../evil.png", bytes.NewReader(encodePNG(t, solid(2, 2))))
	if !errors.Is(err, horosafe.ErrPathTraversal) {
		t.Errorf("err = %v, want ErrPathTraversal", err)
	}
}

func TestStore_SaveNotImage(t *testing.T) {
	s := NewStore(t.TempDir(), "")
	if _, err := s.Save("a.png", strings.NewReader("nope")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}
