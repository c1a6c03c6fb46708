// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
//
// All business data here is OWNED BY THE BACKEND. The dashboard only holds
// read/write-through copies of it, so the JSON tags mirror the backend's wire
// format exactly (snake_case: is_favorite, created_at, ...). Changing a tag
// here would silently break decoding of backend responses.
package model

import (
	"strings"
	"time"
)

// Snippet represents a saved code snippet as the backend returns it.
//
// WHY IS Tags A STRING AND NOT []string?
// The backend stores tags as a single comma-separated string with no
// canonical ordering ("go, http , cli"). We keep the wire shape and derive
// the token list on demand via TagList — that way a Snippet round-trips
// through the API without any lossy conversion.
//
// FavoriteCount is only populated by the admin aggregate endpoint
// (GET /admin/snippets-with-favorites); it is zero everywhere else.
type Snippet struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Language      string    `json:"language"`
	Description   string    `json:"description"`
	Tags          string    `json:"tags"`
	Code          string    `json:"code"`
	IsFavorite    bool      `json:"is_favorite"`
	CreatedAt     time.Time `json:"created_at"`
	FavoriteCount int       `json:"favorite_count,omitempty"`
}

// TagList splits the comma-separated Tags field into trimmed tokens,
// discarding empty ones. A snippet with no tags contributes nothing.
func (s Snippet) TagList() []string {
	if s.Tags == "" {
		return nil
	}
	parts := strings.Split(s.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// HasTag reports whether the snippet's tag list contains the given token,
// compared case-insensitively against the trimmed tokens.
func (s Snippet) HasTag(tag string) bool {
	for _, t := range s.TagList() {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// User represents a registered account as seen by the admin surface.
// Read-only from the dashboard's perspective except for delete.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"` // "admin" or "user"
}

// Tag is a derived aggregate — it is never persisted and never sent over the
// wire. It is rebuilt from scratch on every cache refresh, so there is no
// staleness invariant beyond "rebuild before read".
type Tag struct {
	Name     string
	Count    int
	Snippets []Snippet // in cache order of first appearance
}

// Sort identifies one of the fixed sort orders of the snippet list.
type Sort string

const (
	SortNewest   Sort = "newest"
	SortOldest   Sort = "oldest"
	SortLangAZ   Sort = "lang-az"
	SortLangZA   Sort = "lang-za"
	SortFavFirst Sort = "fav-first"
)

// ParseSort maps a form value to a Sort, falling back to SortNewest for
// anything unknown — the original UI treats "newest" as the default option.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortOldest, SortLangAZ, SortLangZA, SortFavFirst:
		return Sort(s)
	default:
		return SortNewest
	}
}

// FilterState is the ephemeral, UI-scoped filter selection. It is
// reconstructed from the request's query parameters on every filter event
// and never persisted.
type FilterState struct {
	Search   string
	Language string
	Tag      string
	Sort     Sort
}

// IsZero reports whether the state carries no active filter beyond the
// default sort, i.e. applying it returns the cache unchanged in content.
func (f FilterState) IsZero() bool {
	return f.Search == "" && f.Language == "" && f.Tag == "" &&
		(f.Sort == "" || f.Sort == SortNewest)
}
