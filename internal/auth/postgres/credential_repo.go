// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/motiveme/motiveme/internal/auth"
)

// CredentialRepository implements auth.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool Pool
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(pool Pool) *CredentialRepository {
	return &CredentialRepository{pool: pool}
}

// Create stores a new credential. Uniqueness of the email is left to the
// auth_credentials_email_key constraint.
func (r *CredentialRepository) Create(ctx context.Context, cred *auth.Credential) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO auth_credentials (
			user_id, email, password_hash, email_verified,
			confirm_token, confirm_expires, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		cred.UserID.String(),
		cred.Email,
		cred.PasswordHash,
		cred.EmailVerified,
		cred.ConfirmToken,
		cred.ConfirmExpires,
		cred.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return conflictError("CREDENTIAL_EMAIL_CONFLICT", constraint, err)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("user_id", cred.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves a credential by normalized email.
func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT user_id, email, password_hash, email_verified,
		       confirm_token, confirm_expires, created_at
		FROM auth_credentials
		WHERE email = $1
	`, auth.NormalizeEmail(email))

	var (
		idStr     string
		cred      auth.Credential
		createdAt time.Time
	)
	err := row.Scan(
		&idStr,
		&cred.Email,
		&cred.PasswordHash,
		&cred.EmailVerified,
		&cred.ConfirmToken,
		&cred.ConfirmExpires,
		&createdAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential by email").
			Wrap(err)
	}
	if cred.UserID, err = uuid.Parse(idStr); err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "parse user id").
			With("user_id", idStr).
			Wrap(err)
	}
	cred.CreatedAt = createdAt.UTC()
	return &cred, nil
}

// UpdatePasswordHash replaces the stored hash for a user.
func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE auth_credentials SET password_hash = $2 WHERE user_id = $1
	`, userID.String(), passwordHash)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").
			With("operation", "update password hash").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("user_id", userID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

var _ auth.CredentialRepository = (*CredentialRepository)(nil)
