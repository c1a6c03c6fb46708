package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/codevault/dashboard/internal/api"
	"github.com/codevault/dashboard/internal/cache"
	"github.com/codevault/dashboard/internal/config"
	"github.com/codevault/dashboard/internal/session"
)

// Server is the composition root: it owns the session store, the per-session
// caches, the backend client, and the router that ties the handlers together.
type Server struct {
	router  *chi.Mux
	cfg     config.Config
	logger  *slog.Logger
	store   *session.Store
	watcher *fsnotify.Watcher // non-nil in dev mode only
}

// New assembles the full dependency chain:
//
//	config → session.Store + session.Codec + api.Client + cache.Registry
//	       → Handlers → routes
//
// Each layer only receives what it needs; handlers never touch the sqlite
// file or an *http.Response directly.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := session.NewStore(cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	// Opportunistic cleanup: sessions older than the cookie lifetime are
	// unreachable anyway.
	if n, err := store.DeleteOlderThan(context.Background(), time.Now().Add(-30*24*time.Hour)); err != nil {
		logger.Warn("session prune failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("pruned stale sessions", slog.Int64("count", n))
	}

	renderer, err := NewRenderer(logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building renderer: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		store:  store,
	}

	if cfg.Dev {
		// Hot-reload templates from the source tree while iterating.
		watcher, err := renderer.WatchDir("internal/web/templates")
		if err != nil {
			logger.Warn("template watch unavailable, using embedded templates",
				slog.String("error", err.Error()))
		} else {
			s.watcher = watcher
		}
	}

	client := api.New(cfg.BackendOrigin, cfg.BackendTimeout)
	codec := session.NewCodec(cfg.CookieSecret)
	caches := cache.NewRegistry(logger)
	handlers := NewHandlers(client, store, codec, caches, renderer, logger)

	s.routes(handlers)
	return s, nil
}

// routes wires middleware and handlers onto the router.
//
// MIDDLEWARE ORDER:
// RequestID and RealIP first so the logger and limiter see them, Recoverer
// before anything that can panic, then our request logger. The session
// guard applies per-group, not globally — the login page must work without
// a session.
func (s *Server) routes(h *Handlers) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(Logger(s.logger))

	// Public routes: auth forms plus a plain liveness probe.
	s.router.Group(func(r chi.Router) {
		r.Use(h.RedirectIfAuthenticated)
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.limiter.Throttle(h.Login))
		r.Get("/signup", h.SignupPage)
		r.Post("/signup", h.limiter.Throttle(h.Signup))
	})
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Authenticated user sections.
	s.router.Group(func(r chi.Router) {
		r.Use(h.RequireSession)

		r.Get("/", h.Dashboard)
		r.Post("/logout", h.Logout)

		r.Get("/snippets", h.Snippets)
		r.Post("/snippets", h.CreateSnippet)
		r.Get("/snippets/new", h.NewSnippetPage)
		r.Get("/snippets/{id}", h.SnippetView)
		r.Get("/snippets/{id}/edit", h.EditSnippetPage)
		r.Post("/snippets/{id}/update", h.UpdateSnippet)
		r.Post("/snippets/{id}/delete", h.DeleteSnippet)
		r.Post("/snippets/{id}/favorite", h.ToggleFavorite)

		r.Get("/favorites", h.Favorites)
		r.Get("/tags", h.Tags)
		r.Get("/settings", h.Settings)
		r.Get("/settings/export", h.ExportData)
		r.Get("/help", h.Help)

		// Admin pages sit inside the session group with an extra gate.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/admin/users", h.AdminUsers)
			r.Post("/admin/users/{id}/delete", h.DeleteUser)
			r.Get("/admin/analytics", h.AdminAnalytics)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until a shutdown signal arrives, then drains
// in-flight requests and closes the session store.
func (s *Server) Start() error {
	defer s.store.Close()
	if s.watcher != nil {
		defer s.watcher.Close()
	}

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard starting",
			slog.String("addr", s.cfg.Addr),
			slog.String("backend", s.cfg.BackendOrigin),
			slog.Bool("dev", s.cfg.Dev),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
