// Package session owns the dashboard's authentication state.
//
// WHAT A SESSION IS HERE:
// The backend issues a bearer token on login; the dashboard never mints
// tokens of its own. A Session is the server-side record of that grant —
// the token plus the username and role that came with it — keyed by an
// opaque ID that travels in a sealed cookie. Logging out deletes the
// record, which clears all three fields atomically (the record is the atom).
//
// If the token is absent no authenticated view may render; the web layer's
// middleware enforces the redirect to /login.
package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is one login's persisted state.
type Session struct {
	ID        string
	Token     string // backend-issued bearer token
	Username  string
	Role      string // "admin" or "user"
	CreatedAt time.Time
}

// IsAdmin reports whether the session belongs to an admin account.
// UI convenience only — the backend independently enforces the role on
// every admin endpoint.
func (s *Session) IsAdmin() bool {
	return s.Role == "admin"
}

// Initials returns the two-letter avatar initials for the session's user,
// matching the header avatar ("ab" → "AB").
func (s *Session) Initials() string {
	name := strings.TrimSpace(s.Username)
	if name == "" {
		return "?"
	}
	r := []rune(strings.ToUpper(name))
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

// TokenExpired peeks at the backend token's exp claim WITHOUT verifying the
// signature — we don't hold the backend's signing secret and don't need to:
// the backend re-validates every request. The peek only lets us drop a
// session locally instead of bouncing a doomed request off the backend.
//
// A token we cannot parse, or one without an exp claim, is treated as live;
// the backend remains the authority either way.
func (s *Session) TokenExpired(now time.Time) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(s.Token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
