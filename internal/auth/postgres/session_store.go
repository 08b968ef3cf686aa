// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/motiveme/motiveme/internal/session"
)

// SessionStore implements session.Store on the web_sessions table. Rows are
// keyed by token hash and reference users, so deleting a user drops its
// sessions.
type SessionStore struct {
	pool Pool
	now  func() time.Time
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool Pool) *SessionStore {
	return &SessionStore{pool: pool, now: time.Now}
}

// Save inserts the record or, for a known key, moves its expiry. The ttl is
// implied by rec.ExpiresAt.
func (s *SessionStore) Save(ctx context.Context, key string, rec session.Record, _ time.Duration) error {
	if key == "" {
		return oops.Code("SESSION_INVALID_KEY").Errorf("session key cannot be empty")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO web_sessions (id, token_hash, user_id, email, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (token_hash) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`,
		ulid.Make().String(),
		key,
		rec.UserID,
		rec.Email,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return oops.Code("SESSION_SAVE_FAILED").
			With("operation", "upsert web_session").
			With("user_id", rec.UserID).
			Wrap(err)
	}
	return nil
}

// Load returns the live record for key.
func (s *SessionStore) Load(ctx context.Context, key string) (*session.Record, error) {
	var rec session.Record
	err := s.pool.QueryRow(ctx, `
		SELECT user_id::text, email, created_at, expires_at
		FROM web_sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, key, s.now()).Scan(&rec.UserID, &rec.Email, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("SESSION_LOAD_FAILED").
			With("operation", "select web_session").
			Wrap(err)
	}
	return &rec, nil
}

// Delete removes the record for key.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, key); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var (
	_ session.Store   = (*SessionStore)(nil)
	_ session.Expirer = (*SessionStore)(nil)
)
