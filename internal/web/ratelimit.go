package web

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter throttles login and signup attempts per client IP so a
// scripted credential run burns out quickly instead of hammering the
// backend's auth endpoint.
type loginLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time

	limit rate.Limit
	burst int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLoginLimiter(perMinute int, burst int) *loginLimiter {
	return &loginLimiter{
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
	}
}

// Allow reports whether the client behind r may make another attempt.
func (l *loginLimiter) Allow(r *http.Request) bool {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// sweepLocked drops visitors idle for over an hour, at most once every ten
// minutes. Piggybacking on Allow keeps the map bounded without a background
// goroutine that would need its own stop path.
func (l *loginLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < 10*time.Minute {
		return
	}
	l.lastSweep = now
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > time.Hour {
			delete(l.visitors, ip)
		}
	}
}

// Throttle wraps an auth handler with the limiter.
func (l *loginLimiter) Throttle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r) {
			http.Error(w, "Too many attempts. Try again shortly.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
