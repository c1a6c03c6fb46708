package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/codevault/dashboard/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingFetch returns a Fetch that serves the given snippets and counts
// how often it is actually called.
func countingFetch(snips []model.Snippet, err error) (Fetch, *int) {
	calls := new(int)
	return func(ctx context.Context) ([]model.Snippet, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return snips, nil
	}, calls
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// The §8-style scenario fixture: two snippets, one favorited Go snippet
// newer than a non-favorited Python one.
func fixture() []model.Snippet {
	return []model.Snippet{
		{ID: 1, Title: "foo", Language: "Python", IsFavorite: false, CreatedAt: ts("2024-01-01")},
		{ID: 2, Title: "bar", Language: "Go", IsFavorite: true, CreatedAt: ts("2024-02-01")},
	}
}

func ids(snips []model.Snippet) []int64 {
	out := make([]int64, len(snips))
	for i, s := range snips {
		out[i] = s.ID
	}
	return out
}

func equalIDs(a []int64, b ...int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =========================================================================
// REFRESH / DEBOUNCE
// =========================================================================

func TestRefresh_DebouncedWithinWindow(t *testing.T) {
	fetch, calls := countingFetch(fixture(), nil)
	c := New(fetch, testLogger())

	now := ts("2024-06-01")
	c.now = func() time.Time { return now }

	if _, err := c.Refresh(context.Background(), false); err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	now = now.Add(5 * time.Second)
	if _, err := c.Refresh(context.Background(), false); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}

	// Idempotence: two calls within 10 seconds, exactly one network fetch.
	if *calls != 1 {
		t.Errorf("fetch calls = %d, want 1", *calls)
	}

	// Past the window the fetch happens again.
	now = now.Add(FetchWindow)
	if _, err := c.Refresh(context.Background(), false); err != nil {
		t.Fatalf("third Refresh() error = %v", err)
	}
	if *calls != 2 {
		t.Errorf("fetch calls = %d, want 2", *calls)
	}
}

func TestRefresh_ForceBypassesWindow(t *testing.T) {
	fetch, calls := countingFetch(fixture(), nil)
	c := New(fetch, testLogger())

	_, _ = c.Refresh(context.Background(), true)
	_, _ = c.Refresh(context.Background(), true)

	if *calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (force must not debounce)", *calls)
	}
}

func TestRefresh_EmptyCacheAlwaysFetches(t *testing.T) {
	// The window only applies to a NON-EMPTY cache: a user with zero
	// snippets should still see a fresh fetch on every load.
	fetch, calls := countingFetch([]model.Snippet{}, nil)
	c := New(fetch, testLogger())

	_, _ = c.Refresh(context.Background(), false)
	_, _ = c.Refresh(context.Background(), false)

	if *calls != 2 {
		t.Errorf("fetch calls = %d, want 2", *calls)
	}
}

func TestRefresh_FailureKeepsStaleCache(t *testing.T) {
	good := fixture()
	boom := errors.New("backend down")

	callCount := 0
	c := New(func(ctx context.Context) ([]model.Snippet, error) {
		callCount++
		if callCount == 1 {
			return good, nil
		}
		return nil, boom
	}, testLogger())

	if _, err := c.Refresh(context.Background(), true); err != nil {
		t.Fatalf("seed Refresh() error = %v", err)
	}

	got, err := c.Refresh(context.Background(), true)
	if !errors.Is(err, boom) {
		t.Fatalf("want the fetch error surfaced, got %v", err)
	}
	// Stale-but-available: previous cache returned untouched.
	if !equalIDs(ids(got), 1, 2) {
		t.Errorf("stale cache = %v, want [1 2]", ids(got))
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	fetch, _ := countingFetch(fixture(), nil)
	c := New(fetch, testLogger())
	_, _ = c.Refresh(context.Background(), true)

	snap := c.Snapshot()
	snap[0].Title = "mutated"

	if c.Snapshot()[0].Title != "foo" {
		t.Error("mutating a snapshot must not affect the cache")
	}
}

// =========================================================================
// FACETS
// =========================================================================

func TestFacets(t *testing.T) {
	snips := []model.Snippet{
		{Language: " Python ", Tags: "web, api"},
		{Language: "Go", Tags: " api , cli"},
		{}, // absent language and tags contribute nothing
	}

	langs, tags := Facets(snips)

	if len(langs) != 2 || langs[0] != "Go" || langs[1] != "Python" {
		t.Errorf("languages = %v, want [Go Python]", langs)
	}
	if len(tags) != 3 || tags[0] != "api" || tags[1] != "cli" || tags[2] != "web" {
		t.Errorf("tags = %v, want [api cli web]", tags)
	}
}

// =========================================================================
// FILTER PIPELINE
// =========================================================================

func TestApplyFilters_ZeroStateKeepsContentDefaultSort(t *testing.T) {
	got := ApplyFilters(fixture(), model.FilterState{})

	// Content unchanged, order per default sort "newest": id 2 (Feb) first.
	if !equalIDs(ids(got), 2, 1) {
		t.Errorf("ids = %v, want [2 1]", ids(got))
	}
}

func TestApplyFilters_SearchMatchesAnyField(t *testing.T) {
	snips := []model.Snippet{
		{ID: 1, Title: "foo"},
		{ID: 2, Description: "about foo things"},
		{ID: 3, Language: "FooLang"},
		{ID: 4, Tags: "foo, bar"},
		{ID: 5, Title: "unrelated"},
	}

	got := ApplyFilters(snips, model.FilterState{Search: "FOO"})
	if !equalIDs(ids(got), 1, 2, 3, 4) {
		t.Errorf("ids = %v, want [1 2 3 4]", ids(got))
	}
}

func TestApplyFilters_SearchScenario(t *testing.T) {
	got := ApplyFilters(fixture(), model.FilterState{Search: "foo"})
	if !equalIDs(ids(got), 1) {
		t.Errorf("ids = %v, want [1] only", ids(got))
	}
}

func TestApplyFilters_LanguageExactCaseInsensitive(t *testing.T) {
	got := ApplyFilters(fixture(), model.FilterState{Language: "python"})
	if !equalIDs(ids(got), 1) {
		t.Errorf("ids = %v, want [1]", ids(got))
	}

	// "Py" is not an exact language, even though it is a substring.
	got = ApplyFilters(fixture(), model.FilterState{Language: "Py"})
	if len(got) != 0 {
		t.Errorf("ids = %v, want empty (exact equality, not substring)", ids(got))
	}
}

func TestApplyFilters_TagMembership(t *testing.T) {
	snips := []model.Snippet{
		{ID: 1, Tags: "go, http"},
		{ID: 2, Tags: "golang"},
		{ID: 3},
	}

	got := ApplyFilters(snips, model.FilterState{Tag: "GO"})
	if !equalIDs(ids(got), 1) {
		t.Errorf("ids = %v, want [1] (whole-token membership)", ids(got))
	}
}

func TestApplyFilters_FavFirstScenario(t *testing.T) {
	got := ApplyFilters(fixture(), model.FilterState{Sort: model.SortFavFirst})
	if !equalIDs(ids(got), 2, 1) {
		t.Errorf("ids = %v, want [2 1]", ids(got))
	}
}

func TestApplyFilters_FavFirstIsStable(t *testing.T) {
	snips := []model.Snippet{
		{ID: 1, IsFavorite: false},
		{ID: 2, IsFavorite: true},
		{ID: 3, IsFavorite: false},
		{ID: 4, IsFavorite: true},
	}

	got := ApplyFilters(snips, model.FilterState{Sort: model.SortFavFirst})
	// Favorites precede non-favorites; ties keep prior relative order.
	if !equalIDs(ids(got), 2, 4, 1, 3) {
		t.Errorf("ids = %v, want [2 4 1 3]", ids(got))
	}
}

func TestApplyFilters_SortVariants(t *testing.T) {
	snips := []model.Snippet{
		{ID: 1, Language: "Python", CreatedAt: ts("2024-01-01")},
		{ID: 2, Language: "go", CreatedAt: ts("2024-03-01")},
		{ID: 3, Language: "Java"}, // absent timestamp sorts as epoch zero
	}

	tests := []struct {
		name string
		sort model.Sort
		want []int64
	}{
		{"newest", model.SortNewest, []int64{2, 1, 3}},
		{"oldest", model.SortOldest, []int64{3, 1, 2}},
		{"lang-az", model.SortLangAZ, []int64{2, 3, 1}},
		{"lang-za", model.SortLangZA, []int64{1, 3, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilters(snips, model.FilterState{Sort: tt.sort})
			if !equalIDs(ids(got), tt.want...) {
				t.Errorf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestApplyFilters_DoesNotMutateInput(t *testing.T) {
	snips := fixture() // id 1 before id 2
	_ = ApplyFilters(snips, model.FilterState{Sort: model.SortNewest})

	if !equalIDs(ids(snips), 1, 2) {
		t.Errorf("input order changed to %v — ApplyFilters must be pure", ids(snips))
	}
}

func TestApplyFilters_EmptyResultIsValid(t *testing.T) {
	got := ApplyFilters(fixture(), model.FilterState{Search: "no such thing"})
	if len(got) != 0 {
		t.Errorf("want empty result, got %v", ids(got))
	}
}

// =========================================================================
// TAG EXTRACTION
// =========================================================================

func TestExtractTags_EachTokenGetsAggregate(t *testing.T) {
	s := model.Snippet{ID: 7, Tags: "a, b, c"}
	tags := ExtractTags([]model.Snippet{s})

	if len(tags) != 3 {
		t.Fatalf("got %d aggregates, want 3", len(tags))
	}
	names := map[string]bool{}
	for _, tag := range tags {
		names[tag.Name] = true
		if tag.Count != 1 {
			t.Errorf("tag %q count = %d, want 1", tag.Name, tag.Count)
		}
		if len(tag.Snippets) != 1 || tag.Snippets[0].ID != 7 {
			t.Errorf("tag %q should carry snippet 7", tag.Name)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		if !names[want] {
			t.Errorf("missing aggregate %q", want)
		}
	}
}

func TestExtractTags_SortedByCountDescending(t *testing.T) {
	snips := []model.Snippet{
		{ID: 1, Tags: "rare, common"},
		{ID: 2, Tags: "common"},
		{ID: 3, Tags: "common, other"},
	}

	tags := ExtractTags(snips)
	if tags[0].Name != "common" || tags[0].Count != 3 {
		t.Errorf("top tag = %+v, want common/3", tags[0])
	}
	// Tie between "rare" and "other" (both 1): first occurrence wins.
	if tags[1].Name != "rare" || tags[2].Name != "other" {
		t.Errorf("tie order = [%s %s], want [rare other]", tags[1].Name, tags[2].Name)
	}
}

func TestExtractTags_AbsentTagsContributeNothing(t *testing.T) {
	tags := ExtractTags([]model.Snippet{{ID: 1}, {ID: 2, Tags: "  ,  "}})
	if len(tags) != 0 {
		t.Errorf("got %d aggregates, want 0", len(tags))
	}
}

func TestFilterTags(t *testing.T) {
	tags := []model.Tag{{Name: "golang"}, {Name: "http"}, {Name: "algo"}}

	got := FilterTags(tags, "GO")
	if len(got) != 2 || got[0].Name != "golang" || got[1].Name != "algo" {
		t.Errorf("FilterTags = %v", got)
	}
	if len(FilterTags(tags, "")) != 3 {
		t.Error("empty query keeps all tags")
	}
}

// =========================================================================
// REGISTRY
// =========================================================================

func TestRegistry_SharedPerSession(t *testing.T) {
	r := NewRegistry(testLogger())
	fetch, calls := countingFetch(fixture(), nil)

	a := r.For("sess-1", fetch)
	b := r.For("sess-1", fetch)
	if a != b {
		t.Fatal("same session must share one cache")
	}

	_, _ = a.Refresh(context.Background(), true)
	if *calls != 1 {
		t.Errorf("fetch calls = %d, want 1", *calls)
	}

	r.Drop("sess-1")
	if r.For("sess-1", fetch) == a {
		t.Error("Drop must discard the session's cache")
	}
}
