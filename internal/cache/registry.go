package cache

import (
	"log/slog"
	"sync"
)

// Registry maps session IDs to their caches. Each browser session gets its
// own single-entry cache (single key = "current user's snippets"); the
// registry exists only so handlers on different requests of the same
// session share one Cache instead of refetching per request.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	caches map[string]*Cache
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,
		caches: make(map[string]*Cache),
	}
}

// For returns the cache for sessionID, creating it with fetch on first use.
// The fetch closure of the first caller wins; later callers of the same
// session reuse it (the token inside the closure is the session's token, so
// this is the same fetch either way).
func (r *Registry) For(sessionID string, fetch Fetch) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.caches[sessionID]; ok {
		return c
	}
	c := New(fetch, r.logger)
	r.caches[sessionID] = c
	return c
}

// Drop discards the cache for sessionID. Called on logout so a future
// session with a recycled ID never sees another user's snippets.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, sessionID)
}
