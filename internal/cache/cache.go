// Package cache holds a user's full snippet collection in memory and
// computes filtered/sorted views over it.
//
// OWNERSHIP RULES (single writer, many readers):
// The cache is the single authoritative in-memory copy of the user's
// snippets for the lifetime of their session. Only Refresh writes to it,
// and it writes by REPLACING the slice, never by mutating it in place.
// Every read hands out a copy, so a view computed from one snapshot stays
// consistent even while a refresh lands underneath it.
//
// The filter pipeline itself (ApplyFilters, ExtractTags, Facets) is a set of
// pure functions over a snapshot — no locks, no side effects — so it can be
// tested without a Cache at all.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codevault/dashboard/internal/model"
)

// FetchWindow is the debounce window for non-forced refreshes: if the cache
// is non-empty and the prior fetch completed less than this long ago,
// Refresh(false) answers from memory without a network call.
const FetchWindow = 10 * time.Second

// Fetch retrieves the current user's full snippet set from the backend.
// The cache doesn't know about tokens or origins — the web layer binds
// those into the closure when it creates the per-session cache.
type Fetch func(ctx context.Context) ([]model.Snippet, error)

// Cache is the per-session snippet cache. Safe for concurrent use.
type Cache struct {
	fetch  Fetch
	logger *slog.Logger

	mu        sync.Mutex
	snippets  []model.Snippet
	fetched   bool
	lastFetch time.Time

	now func() time.Time // swapped out in tests
}

// New creates an empty cache around the given fetch function.
func New(fetch Fetch, logger *slog.Logger) *Cache {
	return &Cache{
		fetch:  fetch,
		logger: logger,
		now:    time.Now,
	}
}

// Refresh returns the current snippet collection, fetching from the backend
// when needed.
//
// Debounce: with force == false, a non-empty cache fetched within
// FetchWindow is returned as-is — calling Refresh(false) twice within the
// window performs exactly one network fetch.
//
// FAILURE SEMANTICS (stale-but-available):
// On fetch failure the existing cache is left untouched and returned
// alongside the error. The cache is never partially overwritten — a refresh
// either replaces the whole slice or changes nothing.
func (c *Cache) Refresh(ctx context.Context, force bool) ([]model.Snippet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.fetched && len(c.snippets) > 0 && c.now().Sub(c.lastFetch) < FetchWindow {
		return copySnippets(c.snippets), nil
	}

	fresh, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("snippet refresh failed, serving stale cache",
			slog.Int("cached", len(c.snippets)),
			slog.String("error", err.Error()),
		)
		return copySnippets(c.snippets), err
	}

	c.snippets = fresh
	c.fetched = true
	c.lastFetch = c.now()
	return copySnippets(c.snippets), nil
}

// Snapshot returns a copy of the current cache without any network call.
// Used by stats and export paths that render whatever is already loaded.
func (c *Cache) Snapshot() []model.Snippet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySnippets(c.snippets)
}

func copySnippets(in []model.Snippet) []model.Snippet {
	out := make([]model.Snippet, len(in))
	copy(out, in)
	return out
}

// Facets derives the distinct filter facets from a snapshot in a single
// pass: trimmed languages and trimmed tag tokens, each sorted ascending
// for stable select-box ordering. Absent fields contribute nothing.
func Facets(snips []model.Snippet) (languages, tags []string) {
	langSet := make(map[string]struct{})
	tagSet := make(map[string]struct{})

	for _, s := range snips {
		if l := strings.TrimSpace(s.Language); l != "" {
			langSet[l] = struct{}{}
		}
		for _, t := range s.TagList() {
			tagSet[t] = struct{}{}
		}
	}

	languages = make([]string, 0, len(langSet))
	for l := range langSet {
		languages = append(languages, l)
	}
	tags = make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(languages)
	sort.Strings(tags)
	return languages, tags
}

// ApplyFilters computes a filtered, sorted view of snips. Pure: the input
// slice is not modified and the result is a fresh slice. An empty result is
// a valid, non-error outcome.
//
// The pipeline order is fixed:
//  1. case-insensitive substring search over title, description, language
//     and the raw tags string — a snippet matches if ANY field contains
//     the query
//  2. exact case-insensitive language equality, when set
//  3. tag membership against the trimmed token list, when set
//  4. sort per f.Sort
//
// Sorting is stable throughout: fav-first ties keep their prior relative
// order (which, coming straight off a refresh, is cache order).
func ApplyFilters(snips []model.Snippet, f model.FilterState) []model.Snippet {
	list := copySnippets(snips)

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		kept := list[:0]
		for _, s := range list {
			if strings.Contains(strings.ToLower(s.Title), q) ||
				strings.Contains(strings.ToLower(s.Description), q) ||
				strings.Contains(strings.ToLower(s.Language), q) ||
				strings.Contains(strings.ToLower(s.Tags), q) {
				kept = append(kept, s)
			}
		}
		list = kept
	}

	if f.Language != "" {
		kept := list[:0]
		for _, s := range list {
			if strings.EqualFold(s.Language, f.Language) {
				kept = append(kept, s)
			}
		}
		list = kept
	}

	if f.Tag != "" {
		kept := list[:0]
		for _, s := range list {
			if s.HasTag(f.Tag) {
				kept = append(kept, s)
			}
		}
		list = kept
	}

	sortSnippets(list, f.Sort)
	return list
}

// sortSnippets orders list in place per the sort enum. A snippet with a
// zero CreatedAt sorts as the epoch would: last under newest, first under
// oldest. Absent language compares as the empty string.
func sortSnippets(list []model.Snippet, by model.Sort) {
	switch by {
	case model.SortOldest:
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
	case model.SortLangAZ:
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Language) < strings.ToLower(list[j].Language)
		})
	case model.SortLangZA:
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Language) > strings.ToLower(list[j].Language)
		})
	case model.SortFavFirst:
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].IsFavorite && !list[j].IsFavorite
		})
	default: // model.SortNewest
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		})
	}
}

// ExtractTags builds the Tag aggregates from a snapshot: one aggregate per
// distinct trimmed token, carrying its count and the snippets that use it
// (in cache order). Sorted by count descending; ties keep the order of each
// tag's first occurrence in the cache, which makes the result deterministic
// for a given snapshot.
//
// Rebuilt from scratch on every call — there is no incremental maintenance,
// so the only invariant is "rebuild before read".
func ExtractTags(snips []model.Snippet) []model.Tag {
	index := make(map[string]int)
	var tags []model.Tag

	for _, s := range snips {
		for _, name := range s.TagList() {
			if i, ok := index[name]; ok {
				tags[i].Count++
				tags[i].Snippets = append(tags[i].Snippets, s)
				continue
			}
			index[name] = len(tags)
			tags = append(tags, model.Tag{Name: name, Count: 1, Snippets: []model.Snippet{s}})
		}
	}

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Count > tags[j].Count
	})
	return tags
}

// FilterTags narrows tag aggregates by a case-insensitive substring match on
// the tag name, preserving order. Backs the tag page's search box.
func FilterTags(tags []model.Tag, query string) []model.Tag {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tags
	}
	out := make([]model.Tag, 0, len(tags))
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	return out
}
