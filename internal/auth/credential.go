// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password accepted at signup, in characters.
const MinPasswordLength = 8

// Credential is the secret-verification record paired 1:1 with a User.
// EmailVerified, ConfirmToken and ConfirmExpires are stored but no flow reads
// or changes them yet.
type Credential struct {
	UserID         uuid.UUID
	Email          string
	PasswordHash   string
	EmailVerified  bool
	ConfirmToken   *string
	ConfirmExpires *time.Time
	CreatedAt      time.Time
}

// NewCredential creates a validated Credential for the given user.
func NewCredential(userID uuid.UUID, email, passwordHash string) (*Credential, error) {
	if userID == uuid.Nil {
		return nil, oops.Code("CREDENTIAL_INVALID_USER").Errorf("user ID cannot be nil")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("CREDENTIAL_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("CREDENTIAL_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Credential{
		UserID:       userID,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}, nil
}

// CredentialRepository manages credential persistence.
type CredentialRepository interface {
	// Create stores a new credential. A duplicate email yields a KindConflict
	// error raised by the store's unique constraint.
	Create(ctx context.Context, cred *Credential) error

	// GetByEmail retrieves a credential by normalized email.
	// Returns ErrNotFound if no credential has the given email.
	GetByEmail(ctx context.Context, email string) (*Credential, error)

	// UpdatePasswordHash replaces the stored hash for a user.
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Transactor runs a function inside a database transaction. Repository calls
// made with the context passed to fn join the transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
