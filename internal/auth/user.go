// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package auth

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MaxPoints is the largest points value the users table can hold.
const MaxPoints = math.MaxInt32

// User represents a registered account and its profile.
type User struct {
	ID          uuid.UUID
	Email       string
	Name        string
	Points      int
	Badges      []any
	Preferences map[string]any
	Stats       map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewUser creates a validated User with a random ID and empty profile blobs.
// The email is normalized before it is stored.
func NewUser(email, name string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}

	// Postgres stores microseconds; truncating keeps in-memory copies equal
	// to what a later read returns.
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &User{
		ID:          uuid.New(),
		Email:       email,
		Name:        name,
		Badges:      []any{},
		Preferences: map[string]any{},
		Stats:       map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a deep copy of the user so callers never share profile maps
// with a repository.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Badges = cloneSlice(u.Badges)
	c.Preferences = cloneMap(u.Preferences)
	c.Stats = cloneMap(u.Stats)
	return &c
}

func cloneSlice(in []any) []any {
	if in == nil {
		return []any{}
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		return cloneSlice(t)
	default:
		return v
	}
}

// ProfilePatch lists the profile fields a user may change. Nil fields are
// left untouched. Email cannot be patched.
type ProfilePatch struct {
	Name        *string
	Points      *int
	Badges      *[]any
	Preferences map[string]any
	Stats       map[string]any
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Points == nil && p.Badges == nil && p.Preferences == nil && p.Stats == nil
}

// Validate checks the patch without applying it.
func (p ProfilePatch) Validate() error {
	if p.IsEmpty() {
		return Classified(KindValidation, "PROFILE_EMPTY", MsgProfileEmpty).
			Errorf("profile patch has no fields")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalidField("name").Errorf("name cannot be empty")
	}
	if p.Points != nil && (*p.Points < 0 || *p.Points > MaxPoints) {
		return invalidField("points").
			With("points", *p.Points).
			Errorf("points must be between 0 and %d", MaxPoints)
	}
	return nil
}

func invalidField(field string) oops.OopsErrorBuilder {
	return Classified(KindValidation, "PROFILE_INVALID", MsgProfileInvalid, field).With("field", field)
}

// Apply validates the patch and writes it onto u, bumping UpdatedAt.
func (p ProfilePatch) Apply(u *User) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Points != nil {
		u.Points = *p.Points
	}
	if p.Badges != nil {
		u.Badges = cloneSlice(*p.Badges)
	}
	if p.Preferences != nil {
		u.Preferences = cloneMap(p.Preferences)
	}
	if p.Stats != nil {
		u.Stats = cloneMap(p.Stats)
	}
	u.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. A duplicate email yields a KindConflict error.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if no such user exists.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Update persists the mutable profile fields of an existing user.
	// Returns ErrNotFound if the user no longer exists.
	Update(ctx context.Context, user *User) error

	// Delete removes a user. Its credential is removed by cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}
