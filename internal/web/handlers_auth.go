package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codevault/dashboard/internal/apperror"
	"github.com/codevault/dashboard/internal/session"
)

// authPageData is the template payload for the login and signup pages,
// which render outside any session.
type authPageData struct {
	PageData
	FormUsername string // repopulated on a failed attempt
	FormEmail    string
}

// LoginPage renders the sign-in form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := authPageData{PageData: PageData{
		Title: "Sign in",
		Flash: r.URL.Query().Get("flash"),
		Error: r.URL.Query().Get("error"),
	}}
	h.renderer.Page(w, http.StatusOK, "login", data)
}

// Login handles the sign-in form post.
//
// On success the backend's token, username and role become one session
// record, and the browser gets the sealed cookie — the three travel and die
// together. The redirect target depends on the role: admins land on the
// user table, everyone else on the dashboard.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	if username == "" || password == "" {
		h.renderLoginError(w, username, "Username and password are required.")
		return
	}

	result, err := h.api.Login(r.Context(), username, password)
	if err != nil {
		h.renderLoginError(w, username, loginMessage(err))
		return
	}

	sess, err := h.store.Create(r.Context(), result.AccessToken, result.Username, result.Role)
	if err != nil {
		h.logger.Error("failed to create session", slog.String("error", err.Error()))
		h.renderLoginError(w, username, "Could not start a session. Please try again.")
		return
	}

	if err := h.codec.SetCookie(w, sess.ID); err != nil {
		h.logger.Error("failed to seal session cookie", slog.String("error", err.Error()))
		h.renderLoginError(w, username, "Could not start a session. Please try again.")
		return
	}

	h.logger.Info("user signed in",
		slog.String("username", sess.Username),
		slog.String("role", sess.Role),
	)
	http.Redirect(w, r, homeFor(*sess), http.StatusSeeOther)
}

func (h *Handlers) renderLoginError(w http.ResponseWriter, username, msg string) {
	data := authPageData{
		PageData:     PageData{Title: "Sign in", Error: msg},
		FormUsername: username,
	}
	h.renderer.Page(w, http.StatusUnauthorized, "login", data)
}

// loginMessage keeps the backend's own words for a rejected login (for
// example "Incorrect username or password") and falls back to a generic
// line for transport failures.
func loginMessage(err error) string {
	if errors.Is(err, apperror.ErrUnavailable) {
		return "The service is unreachable right now. Please try again."
	}
	return userMessage(err)
}

// SignupPage renders the registration form.
func (h *Handlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	data := authPageData{PageData: PageData{
		Title: "Create account",
		Error: r.URL.Query().Get("error"),
	}}
	h.renderer.Page(w, http.StatusOK, "signup", data)
}

// Signup handles the registration form post. The form's checks are
// advisory; the backend is the authority on uniqueness and assigns the
// role. A duplicate username comes back with the backend's detail message
// on the form.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	renderErr := func(msg string) {
		data := authPageData{
			PageData:     PageData{Title: "Create account", Error: msg},
			FormUsername: username,
			FormEmail:    email,
		}
		h.renderer.Page(w, http.StatusBadRequest, "signup", data)
	}

	switch {
	case username == "" || email == "" || password == "":
		renderErr("All fields are required.")
		return
	case len(password) < 6:
		renderErr("Password must be at least 6 characters.")
		return
	case password != confirm:
		renderErr("Passwords do not match.")
		return
	}

	if err := h.api.Register(r.Context(), username, email, password); err != nil {
		renderErr(userMessage(err))
		return
	}

	h.logger.Info("user registered", slog.String("username", username))
	redirectFlash(w, r, "/login", "flash", "Account created. Sign in to continue.")
}

// Logout tears down the session: the store row, the per-session cache, and
// the cookie. Always lands on the login page, even if parts of the teardown
// fail — from the browser's side logout must never "not work".
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := SessionFrom(r.Context()); ok {
		if err := h.store.Delete(r.Context(), sess.ID); err != nil {
			h.logger.Warn("failed to delete session on logout", slog.String("error", err.Error()))
		}
		h.caches.Drop(sess.ID)
		h.logger.Info("user signed out", slog.String("username", sess.Username))
	}
	session.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
