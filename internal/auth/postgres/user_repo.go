// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/motiveme/motiveme/internal/auth"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, name, points, badges, preferences, stats, created_at, updated_at`

// profileJSON holds the encoded JSONB columns of a user.
type profileJSON struct {
	badges, preferences, stats []byte
}

func encodeProfile(user *auth.User) (profileJSON, error) {
	var p profileJSON
	var err error
	badges := user.Badges
	if badges == nil {
		badges = []any{}
	}
	if p.badges, err = json.Marshal(badges); err != nil {
		return p, oops.With("operation", "marshal badges").Wrap(err)
	}
	if p.preferences, err = json.Marshal(nonNilMap(user.Preferences)); err != nil {
		return p, oops.With("operation", "marshal preferences").Wrap(err)
	}
	if p.stats, err = json.Marshal(nonNilMap(user.Stats)); err != nil {
		return p, oops.With("operation", "marshal stats").Wrap(err)
	}
	return p, nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	p, err := encodeProfile(user)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").Wrap(err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Email,
		user.Name,
		user.Points,
		p.badges,
		p.preferences,
		p.stats,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return conflictError("USER_EMAIL_CONFLICT", constraint, err)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// Update persists the mutable profile fields.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	p, err := encodeProfile(user)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").Wrap(err)
	}

	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET
			name = $2,
			points = $3,
			badges = $4,
			preferences = $5,
			stats = $6,
			updated_at = $7
		WHERE id = $1
	`,
		user.ID.String(),
		user.Name,
		user.Points,
		p.badges,
		p.preferences,
		p.stats,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user; auth_credentials and web_sessions rows cascade.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr                      string
		user                       auth.User
		badges, preferences, stats []byte
		createdAt, updatedAt       time.Time
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.Name,
		&user.Points,
		&badges,
		&preferences,
		&stats,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	if user.ID, err = uuid.Parse(idStr); err != nil {
		return nil, oops.With("operation", "parse user id").With("user_id", idStr).Wrap(err)
	}
	user.Badges = []any{}
	if err := unmarshalJSONB(badges, &user.Badges); err != nil {
		return nil, oops.With("operation", "unmarshal badges").Wrap(err)
	}
	user.Preferences = map[string]any{}
	if err := unmarshalJSONB(preferences, &user.Preferences); err != nil {
		return nil, oops.With("operation", "unmarshal preferences").Wrap(err)
	}
	user.Stats = map[string]any{}
	if err := unmarshalJSONB(stats, &user.Stats); err != nil {
		return nil, oops.With("operation", "unmarshal stats").Wrap(err)
	}
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return &user, nil
}

// unmarshalJSONB leaves dst untouched for empty or JSON null columns.
func unmarshalJSONB(data []byte, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}

var _ auth.UserRepository = (*UserRepository)(nil)
