package review

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTMLRenderer writes a View as a standalone page.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the embedded review template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("review.html").Funcs(template.FuncMap{
		"blank":    blank,
		"imageURL": imageURL,
	}).ParseFS(templateFS, "templates/review.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse review template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render writes v to w.
func (r *HTMLRenderer) Render(w io.Writer, v View) error {
	if err := r.tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render review: %w", err)
	}
	return nil
}

func blank(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// imageURL marks inline image data URIs as safe; anything else renders nothing.
func imageURL(uri string) template.URL {
	if !strings.HasPrefix(uri, "data:image/") {
		return ""
	}
	return template.URL(uri)
}
