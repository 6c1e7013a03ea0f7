package imagefield

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
)

// Field is one progressive image: the full-size URL, its thumbnail and the
// size used to reserve layout space.
type Field struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url,omitempty"`
	Alt      string `json:"alt"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// FieldFor builds a Field whose thumbnail follows the ThumbSuffix naming.
func FieldFor(imageURL, alt string, width, height int) Field {
	return Field{
		URL:      imageURL,
		ThumbURL: ThumbURL(imageURL),
		Alt:      alt,
		Width:    width,
		Height:   height,
	}
}

var fieldTmpl = template.Must(template.New("field").Parse(
	`<div class="placeholder" data-large="{{.URL}}">` +
		`<img class="img-small" src="{{.ThumbURL}}" alt="{{.Alt}}">` +
		`<div style="padding-bottom:{{.Percent}}%;"></div>` +
		`</div>`))

type fieldView struct {
	URL, ThumbURL, Alt, Percent string
}

// RenderTo writes the placeholder markup of f to w.
func RenderTo(w io.Writer, f Field) error {
	if f.URL == "" {
		return fmt.Errorf("imagefield: render: empty url")
	}
	thumb := f.ThumbURL
	if thumb == "" {
		thumb = ThumbURL(f.URL)
	}
	v := fieldView{
		URL:      f.URL,
		ThumbURL: thumb,
		Alt:      f.Alt,
		Percent:  FormatPercent(AspectRatio(f.Width, f.Height)),
	}
	if err := fieldTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("imagefield: render: %w", err)
	}
	return nil
}

// Render returns the placeholder markup of f.
func Render(f Field) (template.HTML, error) {
	var buf bytes.Buffer
	if err := RenderTo(&buf, f); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
