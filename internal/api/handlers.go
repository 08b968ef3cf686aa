// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/internal/session"
)

// HealthMessage is reported by GET /api/health.
const HealthMessage = "MotiveMe API is running"

// AccountService is the part of *auth.Service the handlers drive.
type AccountService interface {
	Signup(ctx context.Context, scope auth.SessionScope, in auth.SignupInput) (*auth.User, error)
	Signin(ctx context.Context, scope auth.SessionScope, email, password string) (*auth.User, error)
	Signout(ctx context.Context, scope auth.SessionScope)
	ReadSession(ctx context.Context, scope auth.SessionScope) (*auth.SessionView, error)
	GetUser(ctx context.Context, scope auth.SessionScope, requestedID string) (*auth.User, error)
	UpdateProfile(ctx context.Context, scope auth.SessionScope, requestedID string, patch auth.ProfilePatch) (*auth.User, error)
}

// Sessions binds a session scope to a request. *session.Manager satisfies it.
type Sessions interface {
	Scope(w http.ResponseWriter, r *http.Request) *session.Scope
}

// Handler serves the account routes.
type Handler struct {
	accounts AccountService
	sessions Sessions
	messages Localizer
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(accounts AccountService, sessions Sessions, messages Localizer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		accounts: accounts,
		sessions: sessions,
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) scope(c *gin.Context) *session.Scope {
	return h.sessions.Scope(c.Writer, c.Request)
}

// Health reports that the process is serving.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Message:   HealthMessage,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Signup creates an account and signs it in.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondMessage(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.accounts.Signup(c.Request.Context(), h.scope(c), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Metadata.Name,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, accountResponse{Success: true, User: newUserResponse(user)})
}

// Signin authenticates with email and password.
func (h *Handler) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondMessage(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.accounts.Signin(c.Request.Context(), h.scope(c), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accountResponse{Success: true, User: newUserResponse(user)})
}

// Session returns the current session and user, both null when anonymous.
func (h *Handler) Session(c *gin.Context) {
	view, err := h.accounts.ReadSession(c.Request.Context(), h.scope(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Session: view.Session, User: newUserResponse(view.User)})
}

// Signout ends the session. It always succeeds.
func (h *Handler) Signout(c *gin.Context) {
	h.accounts.Signout(c.Request.Context(), h.scope(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetUser returns the caller's own user record.
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.accounts.GetUser(c.Request.Context(), h.scope(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// UpdateProfile patches the caller's own profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondMessage(c, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), h.scope(c), c.Param("id"), req.patch())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(c *gin.Context) {
	h.respondMessage(c, http.StatusNotFound, msgNotFound)
}
