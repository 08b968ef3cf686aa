// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package api

import (
	"time"

	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/internal/session"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// profileRequest mirrors auth.ProfilePatch. Absent and null fields are not
// changed; email is ignored.
type profileRequest struct {
	Name        *string        `json:"name"`
	Points      *int           `json:"points"`
	Badges      *[]any         `json:"badges"`
	Preferences map[string]any `json:"preferences"`
	Stats       map[string]any `json:"stats"`
}

func (r profileRequest) patch() auth.ProfilePatch {
	return auth.ProfilePatch{
		Name:        r.Name,
		Points:      r.Points,
		Badges:      r.Badges,
		Preferences: r.Preferences,
		Stats:       r.Stats,
	}
}

// userResponse is the public shape of a user. It never carries credentials.
type userResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Points      int            `json:"points"`
	Badges      []any          `json:"badges"`
	Preferences map[string]any `json:"preferences"`
	Stats       map[string]any `json:"stats"`
	CreatedAt   *string        `json:"created_at"`
}

func newUserResponse(u *auth.User) *userResponse {
	if u == nil {
		return nil
	}
	resp := &userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Points:      u.Points,
		Badges:      u.Badges,
		Preferences: u.Preferences,
		Stats:       u.Stats,
	}
	if resp.Badges == nil {
		resp.Badges = []any{}
	}
	if resp.Preferences == nil {
		resp.Preferences = map[string]any{}
	}
	if resp.Stats == nil {
		resp.Stats = map[string]any{}
	}
	if !u.CreatedAt.IsZero() {
		ts := u.CreatedAt.UTC().Format(time.RFC3339Nano)
		resp.CreatedAt = &ts
	}
	return resp
}

type accountResponse struct {
	Success bool          `json:"success"`
	User    *userResponse `json:"user"`
}

type sessionResponse struct {
	Session *session.Identity `json:"session"`
	User    *userResponse     `json:"user"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}
