package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codevault/dashboard/internal/apperror"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "tok-abc", "alice", "user")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("session must get a generated ID")
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Token != "tok-abc" || got.Username != "alice" || got.Role != "user" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestStoreGet_UnknownIsUnauthorized(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-session")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestStoreDelete_ClearsAllFieldsAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "tok", "bob", "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The whole record is gone — no partial state where the token is
	// cleared but the role lingers.
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("after delete, want ErrUnauthorized, got %v", err)
	}

	// Idempotent.
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStoreDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old, err := store.Create(ctx, "tok-old", "carol", "user")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, err := store.DeleteOlderThan(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}
	if _, err := store.Get(ctx, old.ID); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Error("pruned session should be gone")
	}
}
