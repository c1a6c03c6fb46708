package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/codevault/dashboard/internal/apperror"
)

// CookieName is the session cookie. HttpOnly so page scripts can never read
// the session ID, let alone the token behind it.
const CookieName = "codevault_session"

// Codec seals session IDs into cookie values and opens them again.
//
// WHY SEAL RATHER THAN SIGN?
// A signed-but-readable cookie would leak the session ID format and invite
// offline guessing. secretbox gives authenticated encryption in one call:
// a tampered or forged cookie fails to open, full stop. The value format is
// base64(nonce || box).
type Codec struct {
	key [32]byte
}

// NewCodec derives the sealing key from the configured secret. The secret
// is stretched through SHA-256 so any non-empty string works as config
// while the box always gets a full-size key.
func NewCodec(secret string) *Codec {
	c := &Codec{key: sha256.Sum256([]byte(secret))}
	return c
}

// Seal encrypts a session ID into a cookie value.
func (c *Codec) Seal(sessionID string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(sessionID), &nonce, &c.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a cookie value back into a session ID. Any failure —
// malformed base64, truncated box, wrong key, flipped bit — comes back as
// ErrUnauthorized; the caller treats it exactly like a missing cookie.
func (c *Codec) Open(value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) < 24 {
		return "", apperror.Unauthorized("malformed session cookie")
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])
	id, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return "", apperror.Unauthorized("invalid session cookie")
	}
	return string(id), nil
}

// SetCookie writes the sealed session cookie on a login response.
func (c *Codec) SetCookie(w http.ResponseWriter, sessionID string) error {
	value, err := c.Seal(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
	})
	return nil
}

// ClearCookie expires the session cookie on logout.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
