package imagefield

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ThumbSize bounds both sides of a generated thumbnail.
const ThumbSize = 10

// Thumbnail scales src to fit within bound×bound, keeping its aspect ratio.
// Images already within bounds keep their size. The result is opaque.
func Thumbnail(src image.Image, bound int) *image.RGBA {
	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), bound)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func fit(w, h, bound int) (int, int) {
	if bound <= 0 || (w <= bound && h <= bound) {
		return w, h
	}
	if w >= h {
		nh := (h*bound + w/2) / w
		if nh < 1 {
			nh = 1
		}
		return bound, nh
	}
	nw := (w*bound + h/2) / h
	if nw < 1 {
		nw = 1
	}
	return nw, bound
}

// GenerateThumb decodes an image from r and writes its ThumbSize thumbnail
// to w in the source format. WebP sources, which have no encoder here, are
// written as PNG. It returns the format written.
func GenerateThumb(r io.Reader, w io.Writer) (string, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", ErrUnsupportedFormat
		}
		return "", fmt.Errorf("imagefield: decode: %w", err)
	}
	thumb := Thumbnail(src, ThumbSize)

	switch format {
	case "jpeg":
		err = jpeg.Encode(w, thumb, &jpeg.Options{Quality: 75})
	case "gif":
		err = gif.Encode(w, thumb, nil)
	default:
		format = "png"
		err = png.Encode(w, thumb)
	}
	if err != nil {
		return "", fmt.Errorf("imagefield: encode %s: %w", format, err)
	}
	return format, nil
}
