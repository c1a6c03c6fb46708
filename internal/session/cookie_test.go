package session

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/codevault/dashboard/internal/apperror"
)

func TestCookieSealOpenRoundTrip(t *testing.T) {
	codec := NewCodec("some-secret")

	sealed, err := codec.Seal("session-id-123")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed == "session-id-123" {
		t.Fatal("sealed value must not be the plaintext ID")
	}

	id, err := codec.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if id != "session-id-123" {
		t.Errorf("Open() = %q, want original ID", id)
	}
}

func TestCookieOpen_RejectsTampering(t *testing.T) {
	codec := NewCodec("some-secret")
	sealed, err := codec.Seal("session-id-123")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	tests := []struct {
		name  string
		value string
	}{
		{"flipped byte", flipLastByte(sealed)},
		{"truncated", sealed[:len(sealed)/2]},
		{"not base64", "!!!not-base64!!!"},
		{"empty", ""},
		{"wrong key", sealedWithOtherKey(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Open(tt.value); !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Open(%q) error = %v, want ErrUnauthorized", tt.name, err)
			}
		})
	}
}

func flipLastByte(s string) string {
	b := []byte(s)
	last := b[len(b)-1]
	if last == 'A' {
		b[len(b)-1] = 'B'
	} else {
		b[len(b)-1] = 'A'
	}
	return string(b)
}

func sealedWithOtherKey(t *testing.T) string {
	t.Helper()
	other := NewCodec("a-different-secret")
	sealed, err := other.Seal("session-id-123")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	return sealed
}

func TestSetAndClearCookie(t *testing.T) {
	codec := NewCodec("some-secret")

	rec := httptest.NewRecorder()
	if err := codec.SetCookie(rec, "sess-1"); err != nil {
		t.Fatalf("SetCookie() error = %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || !c.HttpOnly {
		t.Errorf("cookie = %+v, want HttpOnly %s", c, CookieName)
	}
	if id, err := codec.Open(c.Value); err != nil || id != "sess-1" {
		t.Errorf("cookie value does not open back to the ID: %v", err)
	}

	rec = httptest.NewRecorder()
	ClearCookie(rec)
	cleared := rec.Result().Cookies()[0]
	if cleared.MaxAge >= 0 {
		t.Errorf("ClearCookie MaxAge = %d, want negative", cleared.MaxAge)
	}
}
