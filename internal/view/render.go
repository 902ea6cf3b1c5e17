// internal/view/render.go
//
// Central view engine: layout plus page composition, func-map injection, and
// an LRU of parsed *template.Template* sets.
//
// Public helpers
// --------------
//   - Render         – execute a page inside the shared layout and write it.
//   - RenderToString – return template.HTML (fragments, tests).
//   - Error          – render the shared error page with a status code.
//
// Lookup
// ------
// The shared layout (templates/layout.html) and partials live in this
// package.  Each component embeds its own `templates/<page>.html` and passes
// it as a Source.  A page file defines the "title" and "content" blocks:
//
//	{{ define "title" }}로그인{{ end }}
//	{{ define "content" }} … {{ end }}
//
// Every (component, page) pair is parsed once into a clone of the layout and
// the set is cached by "<component>::<page>".
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/yanizio/forum/internal/auth"
	"github.com/yanizio/forum/internal/cache"
	"github.com/yanizio/forum/internal/logger"
)

//go:embed templates/*.html
var baseFS embed.FS

// layoutName is the root template every page executes.
const layoutName = "layout.html"

// Source names a component's embedded templates.
type Source struct {
	Name string
	FS   fs.FS // must contain templates/<page>.html
}

// Base is the Source of the pages shipped with this package ("error").
var Base = Source{Name: "view", FS: baseFS}

// Page is the data every layout receives.  Data is the page's own payload.
type Page struct {
	Title string
	User  *auth.User // nil when anonymous
	// LogoutToken is the CSRF token of the header's logout button.
	LogoutToken string
	Flash       string
	Data        any
}

// ImageFunc resolves an API image name to an absolute URL.
type ImageFunc func(kind, name string) string

// Engine renders pages.  It is safe for concurrent use.
type Engine struct {
	funcs   template.FuncMap
	sets    *cache.LRU[string, *template.Template]
	noCache bool
}

// Option tweaks an Engine.
type Option func(*Engine)

// WithoutCache re-parses on every render; handy while editing templates.
func WithoutCache() Option { return func(e *Engine) { e.noCache = true } }

// New returns an Engine.  image resolves profile and post images.
func New(image ImageFunc, opts ...Option) *Engine {
	e := &Engine{
		funcs: buildFuncMap(image),
		sets:  cache.New[string, *template.Template](256),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Render executes page from src inside the layout and writes it with status.
// The body is buffered so a template failure still yields a clean 500.
func (e *Engine) Render(w http.ResponseWriter, status int, src Source, page string, data Page) error {
	var buf bytes.Buffer
	if err := e.execute(&buf, src, page, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderToString executes page and returns the HTML.
func (e *Engine) RenderToString(src Source, page string, data Page) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.execute(&buf, src, page, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Error renders the shared error page.  msg is shown to the user verbatim,
// so callers pass product copy, never err.Error().
func (e *Engine) Error(w http.ResponseWriter, r *http.Request, status int, data Page, msg string) {
	if data.Title == "" {
		data.Title = http.StatusText(status)
	}
	data.Data = struct {
		Status  int
		Message string
	}{status, msg}
	if err := e.Render(w, status, Base, "error", data); err != nil {
		logger.FromContext(r.Context()).Errorw("error page render failed", "status", status, "err", err)
	}
}

func (e *Engine) execute(buf *bytes.Buffer, src Source, page string, data Page) error {
	t, err := e.load(src, page)
	if err != nil {
		return err
	}
	if err := t.ExecuteTemplate(buf, layoutName, data); err != nil {
		return fmt.Errorf("view %s/%s: %w", src.Name, page, err)
	}
	return nil
}

//
// internal: load
//

// load returns the parsed set for (src, page), parsing on a cache miss.
func (e *Engine) load(src Source, page string) (*template.Template, error) {
	key := src.Name + "::" + page
	if !e.noCache {
		if t, ok := e.sets.Get(key); ok {
			return t, nil
		}
	}

	t, err := template.New(layoutName).Funcs(e.funcs).ParseFS(baseFS, "templates/layout.html", "templates/_*.html")
	if err != nil {
		return nil, fmt.Errorf("view layout: %w", err)
	}
	if _, err := t.ParseFS(src.FS, "templates/"+page+".html"); err != nil {
		return nil, fmt.Errorf("view %s/%s: %w", src.Name, page, err)
	}

	if !e.noCache {
		e.sets.Add(key, t)
	}
	return t, nil
}
