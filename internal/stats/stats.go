// Package stats aggregates loaded records into the counts and chart
// payloads the dashboard pages display. Everything here is a pure pass
// over a snapshot — the numbers are only as fresh as the cache they came
// from, which is exactly the contract the pages want.
package stats

import (
	"strings"

	"github.com/codevault/dashboard/internal/model"
)

// HighlightedLanguages is the fixed set that gets its own chart bucket;
// everything else lands in the "Other" bucket.
var HighlightedLanguages = []string{"Python", "JavaScript", "Go", "Java", "C++"}

// Overview is the user dashboard's stat strip.
type Overview struct {
	TotalSnippets int
	Favorites     int
	Languages     int // distinct language count
}

// AdminOverview is the admin dashboard's stat strip.
type AdminOverview struct {
	TotalUsers     int
	Admins         int
	TotalSnippets  int
	TotalFavorites int // sum of per-snippet favorite_count aggregates
}

// ChartData is the label/value series handed to the page's chart script.
// The page recreates its chart instances from this on every render; there
// is no incremental update path, so a stale series cannot survive.
type ChartData struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Empty reports whether the series has no data points at all, in which case
// the page renders an explicit empty-state block instead of a bare canvas.
func (c ChartData) Empty() bool {
	for _, v := range c.Values {
		if v > 0 {
			return false
		}
	}
	return true
}

// Summarize computes the user overview from a snippet snapshot.
func Summarize(snips []model.Snippet) Overview {
	langs := make(map[string]struct{})
	o := Overview{TotalSnippets: len(snips)}
	for _, s := range snips {
		if s.IsFavorite {
			o.Favorites++
		}
		if l := strings.TrimSpace(s.Language); l != "" {
			langs[l] = struct{}{}
		}
	}
	o.Languages = len(langs)
	return o
}

// SummarizeAdmin computes the admin overview from the user list and the
// favorites aggregate collection.
func SummarizeAdmin(users []model.User, snips []model.Snippet) AdminOverview {
	o := AdminOverview{
		TotalUsers:    len(users),
		TotalSnippets: len(snips),
	}
	for _, u := range users {
		if u.Role == "admin" {
			o.Admins++
		}
	}
	for _, s := range snips {
		o.TotalFavorites += s.FavoriteCount
	}
	return o
}

// LanguageBuckets counts snippets per highlighted language plus an "Other"
// bucket. Matching is case-insensitive; the labels keep the canonical
// casing so the chart legend reads well.
func LanguageBuckets(snips []model.Snippet) ChartData {
	counts := make([]int, len(HighlightedLanguages)+1)

	for _, s := range snips {
		idx := len(HighlightedLanguages) // Other
		for i, lang := range HighlightedLanguages {
			if strings.EqualFold(strings.TrimSpace(s.Language), lang) {
				idx = i
				break
			}
		}
		counts[idx]++
	}

	labels := make([]string, 0, len(counts))
	labels = append(labels, HighlightedLanguages...)
	labels = append(labels, "Other")
	return ChartData{Labels: labels, Values: counts}
}

// FavoriteBuckets charts the most-favorited snippets from the admin
// aggregate collection, capped at the top n. Snippets with zero favorites
// are skipped — a flat zero bar per snippet is noise, not signal.
func FavoriteBuckets(snips []model.Snippet, n int) ChartData {
	type pair struct {
		title string
		count int
	}
	var pairs []pair
	for _, s := range snips {
		if s.FavoriteCount > 0 {
			pairs = append(pairs, pair{s.Title, s.FavoriteCount})
		}
	}

	// Selection sort is fine: n is tiny and the list is per-request.
	for i := 0; i < len(pairs) && i < n; i++ {
		best := i
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].count > pairs[best].count {
				best = j
			}
		}
		pairs[i], pairs[best] = pairs[best], pairs[i]
	}
	if len(pairs) > n {
		pairs = pairs[:n]
	}

	out := ChartData{}
	for _, p := range pairs {
		out.Labels = append(out.Labels, p.title)
		out.Values = append(out.Values, p.count)
	}
	return out
}
