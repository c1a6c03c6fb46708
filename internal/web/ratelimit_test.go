package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limiterRequest(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = addr
	return req
}

func TestLoginLimiterThrottlesAfterBurst(t *testing.T) {
	l := newLoginLimiter(10, 2)
	req := limiterRequest("10.0.0.1:5000")

	assert.True(t, l.Allow(req))
	assert.True(t, l.Allow(req))
	assert.False(t, l.Allow(req), "third attempt inside the burst window is refused")
}

func TestLoginLimiterTracksClientsIndependently(t *testing.T) {
	l := newLoginLimiter(10, 1)

	assert.True(t, l.Allow(limiterRequest("10.0.0.1:5000")))
	assert.False(t, l.Allow(limiterRequest("10.0.0.1:5001")), "same IP, different port shares the budget")
	assert.True(t, l.Allow(limiterRequest("10.0.0.2:5000")), "a different IP has its own budget")
}

// The visitor map must not grow with every client IP the process ever sees:
// entries idle past the cutoff are dropped by the sweep that piggybacks on
// Allow.
func TestLoginLimiterSweepsIdleVisitors(t *testing.T) {
	l := newLoginLimiter(10, 2)
	require.True(t, l.Allow(limiterRequest("10.0.0.1:5000")))

	l.mu.Lock()
	l.visitors["10.0.0.1"].lastSeen = time.Now().Add(-2 * time.Hour)
	l.lastSweep = time.Now().Add(-11 * time.Minute)
	l.mu.Unlock()

	// Any later attempt triggers the sweep.
	require.True(t, l.Allow(limiterRequest("10.0.0.2:5000")))

	l.mu.Lock()
	_, stale := l.visitors["10.0.0.1"]
	_, fresh := l.visitors["10.0.0.2"]
	l.mu.Unlock()

	assert.False(t, stale, "idle visitor must be swept")
	assert.True(t, fresh, "active visitor must survive the sweep")
}
