package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codevault/dashboard/internal/api"
	"github.com/codevault/dashboard/internal/apperror"
	"github.com/codevault/dashboard/internal/cache"
	"github.com/codevault/dashboard/internal/model"
	"github.com/codevault/dashboard/internal/session"
	"github.com/codevault/dashboard/internal/stats"
	"github.com/codevault/dashboard/internal/view"
)

// loadSnapshot refreshes the session's cache and reports the snapshot.
//
// STALE-BUT-AVAILABLE:
// A failed refresh with a previous snapshot on hand returns both the stale
// data and the error; the page renders what it has under an error banner
// instead of going blank. A backend 401 is the exception — that session is
// done, so the caller bounces to login.
func (h *Handlers) loadSnapshot(w http.ResponseWriter, r *http.Request, force bool) ([]model.Snippet, string, bool) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return nil, "", false
	}

	snips, err := h.cacheFor(sess).Refresh(r.Context(), force)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return nil, "", false
		}
		return snips, userMessage(err), true
	}
	return snips, "", true
}

// Dashboard renders the landing section: the stat strip plus the three
// newest snippets.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	snips, loadErr, ok := h.loadSnapshot(w, r, false)
	if !ok {
		return
	}

	recent := cache.ApplyFilters(snips, model.FilterState{Sort: model.SortNewest})
	if len(recent) > 3 {
		recent = recent[:3]
	}
	cards, err := view.SnippetCards(recent)
	if err != nil {
		h.renderError(w, r, sess, err)
		return
	}

	data := struct {
		PageData
		Overview stats.Overview
		Recent   []template.HTML
	}{
		PageData: pageData(r, sess, "Dashboard", "dashboard"),
		Overview: stats.Summarize(snips),
		Recent:   cards,
	}
	if loadErr != "" {
		data.Error = loadErr
	}
	h.renderer.Page(w, http.StatusOK, "dashboard", data)
}

// snippetsPageData feeds the full snippet browser: filter bar facets, the
// current filter state (so the form round-trips), and the filtered cards.
type snippetsPageData struct {
	PageData
	Filter    model.FilterState
	Languages []string
	TagFacets []string
	Cards     []template.HTML
	Total     int // unfiltered snapshot size, for the "N of M" line
}

// filterFromQuery reads the filter bar's state out of the query string.
// Unknown sort values quietly fall back to newest.
func filterFromQuery(r *http.Request) model.FilterState {
	q := r.URL.Query()
	return model.FilterState{
		Search:   strings.TrimSpace(q.Get("q")),
		Language: q.Get("language"),
		Tag:      q.Get("tag"),
		Sort:     model.ParseSort(q.Get("sort")),
	}
}

// Snippets renders the My Snippets section. ?refresh=1 (the refresh button)
// forces a fetch past the debounce window; plain navigation within the
// window reuses the cached snapshot.
func (h *Handlers) Snippets(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	force := r.URL.Query().Get("refresh") == "1"
	snips, loadErr, ok := h.loadSnapshot(w, r, force)
	if !ok {
		return
	}

	filter := filterFromQuery(r)
	languages, tagFacets := cache.Facets(snips)
	filtered := cache.ApplyFilters(snips, filter)

	cards, err := view.SnippetCards(filtered)
	if err != nil {
		h.renderError(w, r, sess, err)
		return
	}

	data := snippetsPageData{
		PageData:  pageData(r, sess, "My Snippets", "snippets"),
		Filter:    filter,
		Languages: languages,
		TagFacets: tagFacets,
		Cards:     cards,
		Total:     len(snips),
	}
	if loadErr != "" {
		data.Error = loadErr
	}
	h.renderer.Page(w, http.StatusOK, "snippets", data)
}

// Favorites renders only the favorited slice of the snapshot, newest first.
func (h *Handlers) Favorites(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	snips, loadErr, ok := h.loadSnapshot(w, r, false)
	if !ok {
		return
	}

	ordered := cache.ApplyFilters(snips, model.FilterState{Sort: model.SortNewest})
	favs := ordered[:0:0]
	for _, s := range ordered {
		if s.IsFavorite {
			favs = append(favs, s)
		}
	}

	cards, err := view.SnippetCards(favs)
	if err != nil {
		h.renderError(w, r, sess, err)
		return
	}

	data := struct {
		PageData
		Cards []template.HTML
	}{
		PageData: pageData(r, sess, "Favorites", "favorites"),
		Cards:    cards,
	}
	if loadErr != "" {
		data.Error = loadErr
	}
	h.renderer.Page(w, http.StatusOK, "favorites", data)
}

// Tags renders the tag grid, optionally narrowed by the tag search box.
func (h *Handlers) Tags(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	snips, loadErr, ok := h.loadSnapshot(w, r, false)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	tags := cache.FilterTags(cache.ExtractTags(snips), query)

	cards, err := view.TagCards(tags)
	if err != nil {
		h.renderError(w, r, sess, err)
		return
	}

	data := struct {
		PageData
		Query string
		Cards []template.HTML
	}{
		PageData: pageData(r, sess, "Tags", "tags"),
		Query:    query,
		Cards:    cards,
	}
	if loadErr != "" {
		data.Error = loadErr
	}
	h.renderer.Page(w, http.StatusOK, "tags", data)
}

// snippetFormData drives the shared add/edit form page.
type snippetFormData struct {
	PageData
	Action  string // form post target
	Editing bool
	Snippet model.Snippet
}

// NewSnippetPage renders the empty add form.
func (h *Handlers) NewSnippetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	data := snippetFormData{
		PageData: pageData(r, sess, "New Snippet", "snippets"),
		Action:   "/snippets",
	}
	h.renderer.Page(w, http.StatusOK, "snippet_edit", data)
}

// snippetInput reads and validates the snippet form. Title, language and
// code are required; description and tags are free-form.
func snippetInput(r *http.Request) (api.SnippetInput, error) {
	in := api.SnippetInput{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Language:    strings.TrimSpace(r.PostFormValue("language")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Tags:        strings.TrimSpace(r.PostFormValue("tags")),
		Code:        r.PostFormValue("code"),
	}
	switch {
	case in.Title == "":
		return in, apperror.ValidationFailed("title", "Title is required.")
	case in.Language == "":
		return in, apperror.ValidationFailed("language", "Language is required.")
	case strings.TrimSpace(in.Code) == "":
		return in, apperror.ValidationFailed("code", "Code is required.")
	}
	return in, nil
}

// CreateSnippet handles the add form post, then force-refreshes so the new
// snippet is in the very next snapshot.
func (h *Handlers) CreateSnippet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}

	in, err := snippetInput(r)
	if err != nil {
		data := snippetFormData{
			PageData: pageData(r, sess, "New Snippet", "snippets"),
			Action:   "/snippets",
			Snippet:  formSnippet(in),
		}
		data.Error = userMessage(err)
		h.renderer.Page(w, http.StatusBadRequest, "snippet_edit", data)
		return
	}

	if _, err := h.api.AddSnippet(r.Context(), sess.Token, in); err != nil {
		h.mutationError(w, r, sess, err, "/snippets")
		return
	}

	h.refreshAfterMutation(r, sess)
	redirectFlash(w, r, "/snippets", "flash", "Snippet created.")
}

// SnippetView renders a single snippet's full page, code block included.
func (h *Handlers) SnippetView(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	id, ok := h.snippetID(w, r, sess)
	if !ok {
		return
	}

	snip, err := h.api.Snippet(r.Context(), sess.Token, id)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return
		}
		h.renderError(w, r, sess, err)
		return
	}

	data := struct {
		PageData
		Snippet model.Snippet
		Tags    []string
	}{
		PageData: pageData(r, sess, snip.Title, "snippets"),
		Snippet:  *snip,
		Tags:     snip.TagList(),
	}
	h.renderer.Page(w, http.StatusOK, "snippet_view", data)
}

// EditSnippetPage renders the edit form pre-filled from the backend's
// current copy, not the cache — editing against a stale snapshot would
// silently revert fields changed elsewhere.
func (h *Handlers) EditSnippetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	id, ok := h.snippetID(w, r, sess)
	if !ok {
		return
	}

	snip, err := h.api.Snippet(r.Context(), sess.Token, id)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return
		}
		h.renderError(w, r, sess, err)
		return
	}

	data := snippetFormData{
		PageData: pageData(r, sess, "Edit Snippet", "snippets"),
		Action:   fmt.Sprintf("/snippets/%d/update", id),
		Editing:  true,
		Snippet:  *snip,
	}
	h.renderer.Page(w, http.StatusOK, "snippet_edit", data)
}

// UpdateSnippet handles the edit form post.
func (h *Handlers) UpdateSnippet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	id, ok := h.snippetID(w, r, sess)
	if !ok {
		return
	}

	in, err := snippetInput(r)
	if err != nil {
		data := snippetFormData{
			PageData: pageData(r, sess, "Edit Snippet", "snippets"),
			Action:   fmt.Sprintf("/snippets/%d/update", id),
			Editing:  true,
			Snippet:  formSnippet(in),
		}
		data.Snippet.ID = id
		data.Error = userMessage(err)
		h.renderer.Page(w, http.StatusBadRequest, "snippet_edit", data)
		return
	}

	if _, err := h.api.UpdateSnippet(r.Context(), sess.Token, id, in); err != nil {
		h.mutationError(w, r, sess, err, "/snippets")
		return
	}

	h.refreshAfterMutation(r, sess)
	redirectFlash(w, r, "/snippets", "flash", "Snippet updated.")
}

// DeleteSnippet handles the card's delete form.
func (h *Handlers) DeleteSnippet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	id, ok := h.snippetID(w, r, sess)
	if !ok {
		return
	}

	if err := h.api.DeleteSnippet(r.Context(), sess.Token, id); err != nil {
		h.mutationError(w, r, sess, err, "/snippets")
		return
	}

	h.refreshAfterMutation(r, sess)
	redirectFlash(w, r, "/snippets", "flash", "Snippet deleted.")
}

// ToggleFavorite flips the favorite flag and sends the browser back where
// it came from, so the star works identically on the dashboard, the
// snippet list and the favorites page.
func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	id, ok := h.snippetID(w, r, sess)
	if !ok {
		return
	}

	// Only the path of the referer matters; the host is always us.
	back := "/snippets"
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" {
		back = ref.Path
	}

	if _, err := h.api.ToggleFavorite(r.Context(), sess.Token, id); err != nil {
		h.mutationError(w, r, sess, err, back)
		return
	}

	h.refreshAfterMutation(r, sess)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// Settings renders the account page: profile fields and the export action.
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}
	snips, loadErr, ok := h.loadSnapshot(w, r, false)
	if !ok {
		return
	}

	data := struct {
		PageData
		Role     string
		Overview stats.Overview
	}{
		PageData: pageData(r, sess, "Settings", "settings"),
		Role:     sess.Role,
		Overview: stats.Summarize(snips),
	}
	if loadErr != "" {
		data.Error = loadErr
	}
	h.renderer.Page(w, http.StatusOK, "settings", data)
}

// ExportData downloads the user's full collection as a JSON attachment,
// named codevault-backup-YYYY-MM-DD.json. Always a fresh fetch — a backup
// of a stale snapshot defeats the point.
func (h *Handlers) ExportData(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}

	snips, err := h.api.MySnippets(r.Context(), sess.Token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.sessionRedirect(w, r, sess)
			return
		}
		h.renderError(w, r, sess, err)
		return
	}

	export := struct {
		Username   string          `json:"username"`
		ExportedAt time.Time       `json:"exported_at"`
		Snippets   []model.Snippet `json:"snippets"`
	}{
		Username:   sess.Username,
		ExportedAt: time.Now().UTC(),
		Snippets:   snips,
	}

	filename := "codevault-backup-" + time.Now().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		h.logger.Error("export encoding failed", slog.String("error", err.Error()))
	}
}

// Help renders the embedded user guide.
func (h *Handlers) Help(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.mustSession(w, r)
	if !ok {
		return
	}

	content, err := HelpHTML()
	if err != nil {
		h.renderError(w, r, sess, err)
		return
	}

	data := struct {
		PageData
		Content template.HTML
	}{
		PageData: pageData(r, sess, "Help", "help"),
		Content:  content,
	}
	h.renderer.Page(w, http.StatusOK, "help", data)
}

// snippetID parses the {id} route parameter. A non-numeric id renders the
// not-found page without bothering the backend.
func (h *Handlers) snippetID(w http.ResponseWriter, r *http.Request, sess session.Session) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.renderError(w, r, sess, apperror.NotFound("snippet", chi.URLParam(r, "id")))
		return 0, false
	}
	return id, true
}

// refreshAfterMutation force-refreshes the session's cache so the page the
// redirect lands on shows the post-mutation state, debounce window or not.
// A failure here is not fatal — the next page load retries.
func (h *Handlers) refreshAfterMutation(r *http.Request, sess session.Session) {
	if _, err := h.cacheFor(sess).Refresh(r.Context(), true); err != nil {
		h.logger.Warn("post-mutation refresh failed", slog.String("error", err.Error()))
	}
}

// mutationError routes a failed mutation: dead session to login, everything
// else back to the section with the message in the banner.
func (h *Handlers) mutationError(w http.ResponseWriter, r *http.Request, sess session.Session, err error, back string) {
	if errors.Is(err, apperror.ErrUnauthorized) {
		h.sessionRedirect(w, r, sess)
		return
	}
	redirectFlash(w, r, back, "error", userMessage(err))
}

// formSnippet rebuilds a Snippet from rejected form input so the form
// re-renders with the user's text intact.
func formSnippet(in api.SnippetInput) model.Snippet {
	return model.Snippet{
		Title:       in.Title,
		Language:    in.Language,
		Description: in.Description,
		Tags:        in.Tags,
		Code:        in.Code,
	}
}
