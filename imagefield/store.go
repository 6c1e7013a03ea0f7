package imagefield

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/pif/horosafe"
)

// MaxUpload caps an image accepted by Store.Save.
const MaxUpload int64 = 20 << 20

// Store keeps full-size images and their thumbnails under Root, served
// from URLPrefix.
type Store struct {
	Root      string
	URLPrefix string
}

// NewStore creates a Store. urlPrefix defaults to "/media/".
func NewStore(root, urlPrefix string) *Store {
	if urlPrefix == "" {
		urlPrefix = "/media/"
	}
	return &Store{Root: root, URLPrefix: urlPrefix}
}

// Save writes the image read from r as name and its thumbnail next to it,
// then returns the Field describing both.
func (s *Store) Save(name string, r io.Reader) (Field, error) {
	dst, err := horosafe.SafePath(s.Root, name)
	if err != nil {
		return Field{}, fmt.Errorf("imagefield: save: %w", err)
	}
	if filepath.Ext(dst) == "" {
		return Field{}, fmt.Errorf("imagefield: save: %q has no extension", name)
	}

	data, err := horosafe.LimitedReadAll(r, MaxUpload)
	if err != nil {
		return Field{}, fmt.Errorf("imagefield: save: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Field{}, ErrUnsupportedFormat
	}

	var thumb bytes.Buffer
	if _, err := GenerateThumb(bytes.NewReader(data), &thumb); err != nil {
		return Field{}, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Field{}, fmt.Errorf("imagefield: mkdir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return Field{}, fmt.Errorf("imagefield: write: %w", err)
	}
	if err := os.WriteFile(ThumbName(dst), thumb.Bytes(), 0o644); err != nil {
		return Field{}, fmt.Errorf("imagefield: write thumb: %w", err)
	}

	rel, _ := filepath.Rel(filepath.Clean(s.Root), dst)
	u := strings.TrimSuffix(s.URLPrefix, "/") + "/" + path.Clean(filepath.ToSlash(rel))
	return FieldFor(u, "", cfg.Width, cfg.Height), nil
}
