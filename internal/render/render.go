// Package render executes the site's embedded HTML templates.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"example.com/postfeed/internal/logger"
)

var logg = logger.New()

//go:embed templates
var templatesFS embed.FS

// Data is the context passed to a template.
type Data map[string]any

// Renderer writes a named page with the given status code.
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data Data) error
}

// HTML renders pages composed of templates/base.html, the shared includes and
// one page file.
type HTML struct {
	pages map[string]*template.Template
}

var _ Renderer = (*HTML)(nil)

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02.01.2006 15:04") },
}

// New parses every page under templates/ once.
func New() (*HTML, error) {
	shared := []string{"templates/base.html"}
	includes, err := fs.Glob(templatesFS, "templates/includes/*.html")
	if err != nil {
		return nil, err
	}
	shared = append(shared, includes...)

	h := &HTML{pages: make(map[string]*template.Template)}
	err = fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") || path == "templates/base.html" || strings.HasPrefix(path, "templates/includes/") {
			return nil
		}

		name := strings.TrimPrefix(path, "templates/")
		files := append(append([]string(nil), shared...), path)
		t, err := template.New("base.html").Funcs(funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		h.pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Names lists the parsed page names.
func (h *HTML) Names() []string {
	names := make([]string, 0, len(h.pages))
	for name := range h.pages {
		names = append(names, name)
	}
	return names
}

// Render buffers the page so a template error never leaves a half-written response.
func (h *HTML) Render(w http.ResponseWriter, status int, name string, data Data) error {
	t, ok := h.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", data); err != nil {
		logg.Error("render", "Failed to execute "+name, err)
		return fmt.Errorf("execute %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
