package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed help.md
var helpMarkdown []byte

// PageData contains the fields every page template can rely on.
type PageData struct {
	Title    string
	Nav      string // active nav item, e.g. "snippets"
	Username string
	Initials string
	IsAdmin  bool
	Flash    string // one-shot success message
	Error    string // one-shot error message
}

// Renderer parses and executes the page templates.
//
// TEMPLATE COMPOSITION:
// layout.html is the base; each page file defines a "content" block that
// fills the layout's placeholder. Pages are parsed as clones of the layout
// so each gets its own namespace (two pages can both define "content").
//
// In dev mode the renderer re-parses from disk when a template file
// changes, so template edits land on the next request without a restart.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]*template.Template

	source fs.FS
	logger *slog.Logger
}

var pageFiles = map[string]string{
	"login":           "login.html",
	"signup":          "signup.html",
	"dashboard":       "dashboard.html",
	"snippets":        "snippets.html",
	"snippet_view":    "snippet_view.html",
	"snippet_edit":    "snippet_edit.html",
	"favorites":       "favorites.html",
	"tags":            "tags.html",
	"settings":        "settings.html",
	"help":            "help.html",
	"admin_users":     "admin_users.html",
	"admin_analytics": "admin_analytics.html",
	"error":           "error.html",
}

// NewRenderer parses all page templates from the embedded filesystem.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-fs: %w", err)
	}

	r := &Renderer{source: sub, logger: logger}
	if err := r.parse(); err != nil {
		return nil, err
	}
	return r, nil
}

// parse (re)builds the template set from r.source.
func (r *Renderer) parse() error {
	layout, err := template.New("layout").ParseFS(r.source, "layout.html")
	if err != nil {
		return fmt.Errorf("parsing layout: %w", err)
	}

	templates := make(map[string]*template.Template, len(pageFiles))
	for name, file := range pageFiles {
		t, err := layout.Clone()
		if err != nil {
			return fmt.Errorf("cloning layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(r.source, file); err != nil {
			return fmt.Errorf("parsing %s: %w", file, err)
		}
		templates[name] = t
	}

	r.mu.Lock()
	r.templates = templates
	r.mu.Unlock()
	return nil
}

// WatchDir re-parses templates from dir whenever a file there changes.
// Dev-mode convenience only; returns the watcher so the caller owns its
// lifetime. After this call the renderer reads from disk, not the binary.
func (r *Renderer) WatchDir(dir string) (*fsnotify.Watcher, error) {
	r.mu.Lock()
	r.source = os.DirFS(dir)
	r.mu.Unlock()

	if err := r.parse(); err != nil {
		return nil, fmt.Errorf("parsing templates from %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.parse(); err != nil {
					r.logger.Error("template reload failed",
						slog.String("file", ev.Name),
						slog.String("error", err.Error()),
					)
					continue
				}
				r.logger.Debug("templates reloaded", slog.String("file", ev.Name))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("template watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return watcher, nil
}

// Page executes the named page with data and the given status.
// The page is rendered to a buffer first so a template error can still
// become a clean 500 instead of a half-written body.
func (r *Renderer) Page(w http.ResponseWriter, status int, name string, data any) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Error("unknown page template", slog.String("name", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// HelpHTML renders the embedded help markdown once per call site need.
// The source is repository content, not user input, so marking the result
// as trusted HTML is sound.
func HelpHTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(helpMarkdown, &buf); err != nil {
		return "", fmt.Errorf("rendering help content: %w", err)
	}
	return template.HTML(buf.String()), nil
}
