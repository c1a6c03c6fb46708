package web

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/dashboard/internal/apperror"
	"github.com/codevault/dashboard/internal/stats"
	"github.com/codevault/dashboard/internal/view"
)

// AdminUsers renders the user management table with the admin stat strip.
// Nothing here is cached — the user list is small and admin actions want
// to see their own effects immediately.
func (h *Handlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}

	users, err := h.api.AdminUsers(r.Context(), sess.Token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return
		}
		h.renderError(w, r, sess, err)
		return
	}

	snips, err := h.api.SnippetsWithFavorites(r.Context(), sess.Token)
	if err != nil {
		// The stat strip degrades; the user table is the page's point.
		h.logger.Warn("admin snippet aggregate fetch failed", slog.String("error", err.Error()))
		snips = nil
	}

	rows, err := view.UserRows(users)
	if err != nil {
		h.renderError(w, r, sess, err)
		return
	}

	data := struct {
		PageData
		Overview stats.AdminOverview
		Rows     []template.HTML
	}{
		PageData: pageData(r, sess, "User Management", "admin_users"),
		Overview: stats.SummarizeAdmin(users, snips),
		Rows:     rows,
	}
	h.renderer.Page(w, http.StatusOK, "admin_users", data)
}

// DeleteUser handles the row's delete form. The admin-row suppression in
// the UI is cosmetic; the backend refuses to delete admin accounts and its
// refusal message surfaces in the banner.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		redirectFlash(w, r, "/admin/users", "error", "Unknown user.")
		return
	}

	if err := h.api.DeleteUser(r.Context(), sess.Token, id); err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return
		}
		redirectFlash(w, r, "/admin/users", "error", userMessage(err))
		return
	}

	h.logger.Info("user deleted",
		slog.Int64("user_id", id),
		slog.String("by", sess.Username),
	)
	redirectFlash(w, r, "/admin/users", "flash", "User deleted.")
}

// AdminAnalytics renders the chart page: snippets per language and the
// most-favorited snippets, both computed from the favorites aggregate
// collection.
func (h *Handlers) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}

	snips, err := h.api.SnippetsWithFavorites(r.Context(), sess.Token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return
		}
		h.renderError(w, r, sess, err)
		return
	}

	users, err := h.api.AdminUsers(r.Context(), sess.Token)
	if err != nil {
		h.logger.Warn("admin user list fetch failed", slog.String("error", err.Error()))
		users = nil
	}

	data := struct {
		PageData
		Overview  stats.AdminOverview
		Languages stats.ChartData
		TopFaves  stats.ChartData
	}{
		PageData:  pageData(r, sess, "Analytics", "admin_analytics"),
		Overview:  stats.SummarizeAdmin(users, snips),
		Languages: stats.LanguageBuckets(snips),
		TopFaves:  stats.FavoriteBuckets(snips, 10),
	}
	h.renderer.Page(w, http.StatusOK, "admin_analytics", data)
}
