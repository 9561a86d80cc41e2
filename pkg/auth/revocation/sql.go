package revocation

// SQL-backed deny-list on database/sql.
//
// No driver is imported here; the application registers one via a
// blank import (github.com/lib/pq or github.com/mattn/go-sqlite3 are
// the supported choices) and passes the opened *sql.DB.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDB indicates a database operation failure.
var ErrDB = errors.New("revocation: db error")

const schema = `
CREATE TABLE IF NOT EXISTS tales_revocations (
	token_id   TEXT   NOT NULL PRIMARY KEY,
	expires_at BIGINT NOT NULL
)`

// SQLStore is a Store backed by a relational database. Safe for
// concurrent use; *sql.DB pools connections internally.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithSQLClock replaces the time source.
func WithSQLClock(now func() time.Time) SQLOption {
	return func(s *SQLStore) {
		s.now = now
	}
}

// NewSQLStore wraps an open database handle. Call EnsureSchema before
// first use.
func NewSQLStore(db *sql.DB, opts ...SQLOption) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: need a database handle", ErrInvalidInput)
	}
	s := &SQLStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureSchema creates the deny-list table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", ErrDB, err)
	}
	return nil
}

func (s *SQLStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrInvalidInput
	}
	// the ON CONFLICT form is understood by both postgres and sqlite
	const upsert = `
INSERT INTO tales_revocations (token_id, expires_at) VALUES ($1, $2)
ON CONFLICT (token_id) DO UPDATE SET expires_at = $2`
	if _, err := s.db.ExecContext(ctx, upsert, tokenID, expiresAt.Unix()); err != nil {
		return fmt.Errorf("%w: revoke: %v", ErrDB, err)
	}
	return nil
}

func (s *SQLStore) Revoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrInvalidInput
	}
	const query = `SELECT expires_at FROM tales_revocations WHERE token_id = $1`
	var expiresAt int64
	err := s.db.QueryRowContext(ctx, query, tokenID).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup: %v", ErrDB, err)
	}
	return expiresAt > s.now().Unix(), nil
}

// PurgeExpired removes entries whose tokens have expired anyway.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	const del = `DELETE FROM tales_revocations WHERE expires_at <= $1`
	res, err := s.db.ExecContext(ctx, del, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrDB, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
