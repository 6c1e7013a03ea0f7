// Package imagefield produces what the progressive upgrader consumes: tiny
// thumbnails stored next to the full-size image, and the placeholder
// markup pointing at both.
package imagefield

import (
	"errors"
	"math"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// ThumbSuffix is inserted before the extension of a thumbnail's name.
const ThumbSuffix = "_thumb"

// ErrUnsupportedFormat is returned for input that does not decode as an image.
var ErrUnsupportedFormat = errors.New("imagefield: unsupported image format")

// ThumbName returns the file name of the thumbnail of file p:
// "media/a.jpg" → "media/a_thumb.jpg". The extension keeps its case.
func ThumbName(p string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + ThumbSuffix + ext
}

// ThumbURL returns the URL of the thumbnail of the image at u. Query and
// fragment are left untouched.
func ThumbURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Opaque != "" {
		ext := path.Ext(u)
		return strings.TrimSuffix(u, ext) + ThumbSuffix + ext
	}
	ext := path.Ext(parsed.Path)
	parsed.Path = strings.TrimSuffix(parsed.Path, ext) + ThumbSuffix + ext
	parsed.RawPath = ""
	return parsed.String()
}

// AspectRatio returns height/width as a percentage, exact when it is a
// whole number and rounded to two decimals otherwise. Zero for an empty
// width.
func AspectRatio(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	ar := float64(height) / float64(width) * 100
	if ar == math.Trunc(ar) {
		return ar
	}
	return math.Round(ar*100) / 100
}

// FormatPercent renders an aspect ratio without trailing zeros: 500, 106.4.
func FormatPercent(ar float64) string {
	return strconv.FormatFloat(ar, 'f', -1, 64)
}
