package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin/render"

	"github.com/cppla/quill/utils"
)

//go:embed layout/*.html pages/*.html
var files embed.FS

// Renderer serves the embedded pages through gin's HTML rendering. Every page is parsed
// together with the shared layout, so each one gets its own template set.
type Renderer struct {
	pages map[string]*template.Template
}

var _ render.HTMLRender = (*Renderer)(nil)

// Funcs available to every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"text": utils.RenderText,
		"date": func(t time.Time) string { return t.Format("2 January 2006 15:04") },
		"truncate": func(s string, n int) string {
			r := []rune(s)
			if len(r) <= n {
				return s
			}
			return string(r[:n]) + "…"
		},
	}
}

// New parses all pages from the embedded file system.
func New() (*Renderer, error) {
	return NewFromFS(files)
}

// NewFromFS parses layout/*.html and pages/*.html from fsys.
func NewFromFS(fsys fs.FS) (*Renderer, error) {
	layout, err := template.New("").Funcs(Funcs()).ParseFS(fsys, "layout/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	names, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return r, nil
}

// Has reports whether a page with that name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Instance implements render.HTMLRender. name is the page file without extension.
func (r *Renderer) Instance(name string, data any) render.Render {
	t, ok := r.pages[name]
	if !ok {
		panic(fmt.Sprintf("template %q not found", name))
	}
	return render.HTML{Template: t, Name: "base", Data: data}
}
