package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	// Side-effect import: registers the pure-Go sqlite driver with
	// database/sql under the name "sqlite".
	_ "modernc.org/sqlite"

	"github.com/codevault/dashboard/internal/apperror"
)

// Store persists session records in SQLite.
//
// WHY PERSIST SESSIONS AT ALL?
// The original kept the token in browser localStorage, which survives page
// loads. The server-side equivalent of "survives page loads" is a store
// that survives dashboard restarts — a single sqlite file. This is the only
// local persistence in the whole service; snippet data is never written
// here (offline persistence is an explicit non-goal).
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the session database at path.
// ":memory:" gives an in-memory store, used by tests.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	// sqlite allows one writer at a time; a single pooled connection keeps
	// database/sql from queueing writers into "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to session db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating session db: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		username   TEXT NOT NULL,
		role       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);`
	_, err := db.Exec(schema)
	return err
}

// Create inserts a new session for a successful login and returns it with
// a freshly generated ID.
func (s *Store) Create(ctx context.Context, token, username, role string) (*Session, error) {
	sess := &Session{
		ID:        xid.New().String(),
		Token:     token,
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	const q = `INSERT INTO sessions (id, token, username, role, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Token, sess.Username, sess.Role, sess.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// Get loads a session by ID. A missing row maps to apperror.ErrUnauthorized
// — from the caller's point of view an unknown session and no session are
// the same thing.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	const q = `SELECT id, token, username, role, created_at FROM sessions WHERE id = ?`

	var sess Session
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&sess.ID, &sess.Token, &sess.Username, &sess.Role, &sess.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.Unauthorized("unknown session")
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session record. Deleting an already-gone session is not
// an error — logout must be idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteOlderThan clears sessions created before the cutoff. Run
// opportunistically at startup so the file doesn't accumulate dead logins.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
