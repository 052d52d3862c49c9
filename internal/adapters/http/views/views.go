// Package views renders the server-side pages from embedded html/template files.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed templates
var files embed.FS

const (
	layoutDir  = "templates/layouts"
	pagesDir   = "templates"
	baseLayout = "base"
)

// Engine implements fiber.Views. Every page is parsed together with the
// layouts, so a page only defines its "content" block.
type Engine struct {
	fs    fs.FS
	funcs template.FuncMap

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New creates an engine over the embedded templates
func New() *Engine {
	return NewFromFS(files)
}

// NewFromFS creates an engine over fsys, which must hold templates/ and
// templates/layouts/
func NewFromFS(fsys fs.FS) *Engine {
	return &Engine{
		fs: fsys,
		funcs: template.FuncMap{
			"add": func(a, b int) int { return a + b },
		},
	}
}

// Load parses every page
func (e *Engine) Load() error {
	layouts, err := fs.Glob(e.fs, path.Join(layoutDir, "*.html"))
	if err != nil {
		return err
	}
	pageFiles, err := fs.Glob(e.fs, path.Join(pagesDir, "*.html"))
	if err != nil {
		return err
	}

	pages := make(map[string]*template.Template, len(pageFiles))
	for _, file := range pageFiles {
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(name).Funcs(e.funcs).ParseFS(e.fs, append([]string{file}, layouts...)...)
		if err != nil {
			return fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	e.mu.Lock()
	e.pages = pages
	e.mu.Unlock()
	return nil
}

// Render writes page name wrapped in the base layout. A layout argument
// overrides the layout template; "" renders the bare page.
func (e *Engine) Render(w io.Writer, name string, binding interface{}, layout ...string) error {
	e.mu.RLock()
	tmpl, ok := e.pages[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}

	entry := baseLayout
	if len(layout) > 0 {
		entry = layout[0]
	}
	if entry == "" {
		entry = "content"
	}
	return tmpl.ExecuteTemplate(w, entry, binding)
}
