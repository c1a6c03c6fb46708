// Package web is the HTTP surface of the dashboard: routing, middleware,
// page handlers, and the server-rendered templates they drive.
//
// RENDERING MODEL:
// Every page is rendered fully on the server. Handlers pull a snapshot from
// the per-session cache, shape it with the pure helpers in internal/cache
// and internal/stats, convert records to fragments via internal/view, and
// hand the lot to the Renderer. Mutations are plain POST forms followed by
// a redirect (POST/redirect/GET), with one-shot messages carried in query
// parameters.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/codevault/dashboard/internal/api"
	"github.com/codevault/dashboard/internal/apperror"
	"github.com/codevault/dashboard/internal/cache"
	"github.com/codevault/dashboard/internal/model"
	"github.com/codevault/dashboard/internal/session"
)

// Handlers bundles the dependencies every page handler needs.
type Handlers struct {
	api      *api.Client
	store    *session.Store
	codec    *session.Codec
	caches   *cache.Registry
	renderer *Renderer
	logger   *slog.Logger
	limiter  *loginLimiter
}

// NewHandlers wires the handler set.
func NewHandlers(client *api.Client, store *session.Store, codec *session.Codec, caches *cache.Registry, renderer *Renderer, logger *slog.Logger) *Handlers {
	return &Handlers{
		api:      client,
		store:    store,
		codec:    codec,
		caches:   caches,
		renderer: renderer,
		logger:   logger,
		limiter:  newLoginLimiter(10, 5),
	}
}

// cacheFor returns the session's snippet cache, creating it on first use.
// The fetch closure binds the session's token, so a cache can never serve
// another user's data.
func (h *Handlers) cacheFor(sess session.Session) *cache.Cache {
	return h.caches.For(sess.ID, func(ctx context.Context) ([]model.Snippet, error) {
		return h.api.MySnippets(ctx, sess.Token)
	})
}

// pageData seeds the common template fields from the session and the
// one-shot query messages.
func pageData(r *http.Request, sess session.Session, title, nav string) PageData {
	return PageData{
		Title:    title,
		Nav:      nav,
		Username: sess.Username,
		Initials: sess.Initials(),
		IsAdmin:  sess.IsAdmin(),
		Flash:    r.URL.Query().Get("flash"),
		Error:    r.URL.Query().Get("error"),
	}
}

// redirectFlash sends a POST/redirect/GET hop carrying a one-shot message.
func redirectFlash(w http.ResponseWriter, r *http.Request, path, key, msg string) {
	u := url.URL{Path: path}
	if msg != "" {
		q := url.Values{}
		q.Set(key, msg)
		u.RawQuery = q.Encode()
	}
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

// renderError shows the dedicated error page. Unauthorized errors never get
// here — the middleware already turned those into a login redirect — so
// what remains is backend trouble worth a human-readable page.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, sess session.Session, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	data := struct {
		PageData
		Message string
	}{
		PageData: pageData(r, sess, "Something went wrong", ""),
		Message:  userMessage(err),
	}
	h.renderer.Page(w, status, "error", data)
}

// userMessage extracts the display message from a taxonomy error. Anything
// else gets a generic line; internal detail stays in the logs.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "The request could not be completed. Please try again."
}

// sessionRedirect handles a backend 401 discovered mid-request: the token
// was revoked or expired between the middleware check and the API call.
// Tear the session down and start over at the login page.
func (h *Handlers) sessionRedirect(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if err := h.store.Delete(r.Context(), sess.ID); err != nil {
		h.logger.Warn("failed to delete rejected session", slog.String("error", err.Error()))
	}
	h.caches.Drop(sess.ID)
	session.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// mustSession pulls the guarded session out of the context. Reaching a
// guarded handler without one is a routing bug, not a user condition.
func (h *Handlers) mustSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		h.logger.Error("guarded route reached without session", slog.String("path", r.URL.Path))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
	return sess, ok
}
