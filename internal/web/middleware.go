package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/codevault/dashboard/internal/apperror"
	"github.com/codevault/dashboard/internal/session"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
// Go's http.ResponseWriter doesn't expose the status code after WriteHeader
// is called, so we wrap it to track it ourselves.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger returns an HTTP middleware that logs each request using slog.
// Each log line includes: method, path, status code, duration, and bytes
// written.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // default if WriteHeader is never called
			}

			next.ServeHTTP(wrapped, r)

			logger.Info("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			)
		})
	}
}

// sessionKey is the context key type for the resolved session. An unexported
// struct type cannot collide with keys from other packages.
type sessionKey struct{}

// SessionFrom returns the session RequireSession stored in the request
// context. The second return is false on routes outside the session guard.
func SessionFrom(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(session.Session)
	return s, ok
}

// RequireSession resolves the sealed session cookie into a session record
// and stores it in the request context.
//
// AUTH GUARD BEHAVIOUR:
// Any failure on the way — missing cookie, tamper, unknown session row, an
// expired backend token — clears the cookie and redirects to /login. Pages
// never see a half-authenticated request, and the browser never keeps a
// cookie we already know is dead.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.resolveSession(r)
		if err != nil {
			if !errors.Is(err, apperror.ErrUnauthorized) {
				h.logger.Error("session lookup failed", slog.String("error", err.Error()))
			}
			session.ClearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveSession unpacks the cookie, loads the session row, and enforces
// backend token expiry. Expired sessions are deleted on sight so the store
// does not accumulate rows the backend will reject anyway.
func (h *Handlers) resolveSession(r *http.Request) (session.Session, error) {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return session.Session{}, apperror.Unauthorized("no session cookie")
	}

	id, err := h.codec.Open(c.Value)
	if err != nil {
		return session.Session{}, err
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		return session.Session{}, err
	}

	if sess.TokenExpired(time.Now()) {
		if err := h.store.Delete(r.Context(), sess.ID); err != nil {
			h.logger.Warn("failed to delete expired session",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
		h.caches.Drop(sess.ID)
		return session.Session{}, apperror.Unauthorized("session token expired")
	}

	return *sess, nil
}

// RequireAdmin gates the admin pages. Non-admin sessions are bounced to the
// user dashboard rather than shown an error page — same treatment the
// original gave a regular user typing the admin URL by hand. The backend
// still enforces the role on every admin API call, so this guard is routing
// hygiene, not the security boundary.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok || !sess.IsAdmin() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectIfAuthenticated keeps signed-in users off the login and signup
// pages, sending each role to its home section.
func (h *Handlers) RedirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, err := h.resolveSession(r); err == nil {
			http.Redirect(w, r, homeFor(sess), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// homeFor maps a session's role to its landing page.
func homeFor(sess session.Session) string {
	if sess.IsAdmin() {
		return "/admin/users"
	}
	return "/"
}
