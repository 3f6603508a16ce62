// Package render turns response documents into HTML pages.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html templates/collections/*.html
var templateFS embed.FS

// Renderer renders a named template with a payload for a locale.
type Renderer interface {
	Render(name string, data any, locale string) ([]byte, error)
}

// HTMLRenderer renders the embedded template set.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	t, err := template.New("base").Funcs(template.FuncMap{
		"dict": dict,
	}).ParseFS(templateFS, "templates/*.html", "templates/collections/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	return &HTMLRenderer{tmpl: t}, nil
}

func (r *HTMLRenderer) Render(name string, data any, locale string) ([]byte, error) {
	var buf bytes.Buffer
	payload := struct {
		Locale string
		Data   any
	}{Locale: locale, Data: data}
	if err := r.tmpl.ExecuteTemplate(&buf, name, payload); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings")
		}
		m[k] = pairs[i+1]
	}
	return m, nil
}
