// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package session binds an authenticated user to an opaque cookie token.
//
// The token itself never reaches storage: stores are keyed by the hex SHA-256
// of the token, so a leaked store cannot be replayed as cookies.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"
)

// Session token configuration.
const (
	TokenBytes        = 32                 // 32 bytes = 64 hex chars
	DefaultLifetime   = 7 * 24 * time.Hour // sliding window
	DefaultCookieName = "motiveme_session"
)

// ErrNotFound is returned by a Store when no live record exists for a key.
var ErrNotFound = errors.New("session not found")

// Identity is the user binding exposed to callers of Scope.Read.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Record is the stored form of a session.
type Record struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Identity returns the identity bound by the record.
func (r Record) Identity() *Identity {
	return &Identity{UserID: r.UserID, Email: r.Email}
}

// IsExpiredAt returns true if the record would be expired at t.
func (r Record) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// Store persists session records keyed by token hash.
type Store interface {
	// Save creates or replaces the record under key. ttl bounds how long the
	// backend keeps it.
	Save(ctx context.Context, key string, rec Record, ttl time.Duration) error

	// Load returns the record under key.
	// Returns ErrNotFound if it is missing or expired.
	Load(ctx context.Context, key string) (*Record, error)

	// Delete removes the record under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// Expirer is implemented by stores that need explicit garbage collection.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Counter is implemented by stores that can report how many records they hold.
type Counter interface {
	Len() int
}

// GenerateToken creates a secure random token and its storage key.
// The plaintext token goes to the client; the key goes to the store.
func GenerateToken() (token, key string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, KeyFor(token), nil
}

// KeyFor computes the storage key for a token.
func KeyFor(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
