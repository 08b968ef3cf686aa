// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// CookieConfig controls how the session token is delivered.
// HttpOnly is always set.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Config configures a Manager.
type Config struct {
	Cookie   CookieConfig
	Lifetime time.Duration
}

// DefaultConfig returns the development defaults: a lax, non-secure cookie
// with a 7-day sliding lifetime.
func DefaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			Name:     DefaultCookieName,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		},
		Lifetime: DefaultLifetime,
	}
}

// ErrNilStore is returned when a Manager is built without a store.
var ErrNilStore = oops.Code("SESSION_NIL_STORE").Errorf("session store cannot be nil")

// Manager issues per-request scopes over a shared Store.
type Manager struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// ManagerOption configures a Manager during construction.
type ManagerOption func(*Manager)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager. Zero values in cfg fall back to DefaultConfig.
func NewManager(store Store, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	defaults := DefaultConfig()
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = defaults.Cookie.Name
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = defaults.Cookie.Path
	}
	if cfg.Cookie.SameSite == 0 {
		cfg.Cookie.SameSite = defaults.Cookie.SameSite
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaults.Lifetime
	}

	m := &Manager{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CookieName returns the configured cookie name.
func (m *Manager) CookieName() string {
	return m.cfg.Cookie.Name
}

// Lifetime returns the sliding session lifetime.
func (m *Manager) Lifetime() time.Duration {
	return m.cfg.Lifetime
}

// Scope binds the manager to one request/response pair. A Scope is not safe
// for concurrent use; each request gets its own.
func (m *Manager) Scope(w http.ResponseWriter, r *http.Request) *Scope {
	s := &Scope{m: m, w: w}
	if c, err := r.Cookie(m.cfg.Cookie.Name); err == nil && validToken(c.Value) {
		s.token = c.Value
	} else if err == nil {
		// malformed cookie: drop it on first use
		s.stale = true
	}
	return s
}

func validToken(v string) bool {
	if len(v) != TokenBytes*2 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Scope is the session state machine for a single client request:
// Anonymous -> Authenticated -> Anonymous.
type Scope struct {
	m     *Manager
	w     http.ResponseWriter
	token string
	stale bool
}

// Start binds userID to a fresh token, replacing any token the client sent.
func (s *Scope) Start(ctx context.Context, userID, email string) error {
	if userID == "" {
		return oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be empty")
	}

	if s.token != "" {
		// Rotation failures leave an orphan that expires on its own.
		_ = s.m.store.Delete(ctx, KeyFor(s.token)) //nolint:errcheck // best effort
		s.token = ""
	}

	token, key, err := GenerateToken()
	if err != nil {
		return err
	}

	now := s.m.now().UTC()
	rec := Record{
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.m.cfg.Lifetime),
	}
	if err := s.m.store.Save(ctx, key, rec, s.m.cfg.Lifetime); err != nil {
		return oops.Code("SESSION_START_FAILED").
			With("operation", "save session").
			Wrap(err)
	}

	s.token = token
	s.stale = false
	s.setCookie(token, rec.ExpiresAt)
	return nil
}

// Read returns the bound identity, or nil when the client is anonymous.
// A hit slides the expiry forward by the full lifetime.
func (s *Scope) Read(ctx context.Context) (*Identity, error) {
	if s.token == "" {
		if s.stale {
			s.clearCookie()
			s.stale = false
		}
		return nil, nil
	}

	key := KeyFor(s.token)
	rec, err := s.m.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.forget()
			return nil, nil
		}
		return nil, oops.Code("SESSION_READ_FAILED").
			With("operation", "load session").
			Wrap(err)
	}

	now := s.m.now().UTC()
	if rec.IsExpiredAt(now) {
		_ = s.m.store.Delete(ctx, key) //nolint:errcheck // expired anyway
		s.forget()
		return nil, nil
	}

	rec.ExpiresAt = now.Add(s.m.cfg.Lifetime)
	if err := s.m.store.Save(ctx, key, *rec, s.m.cfg.Lifetime); err != nil {
		return nil, oops.Code("SESSION_READ_FAILED").
			With("operation", "extend session").
			Wrap(err)
	}
	s.setCookie(s.token, rec.ExpiresAt)

	return rec.Identity(), nil
}

// End returns the client to Anonymous. It is idempotent. The cookie is
// cleared even when the store fails.
func (s *Scope) End(ctx context.Context) error {
	token := s.token
	s.forget()
	if token == "" {
		return nil
	}
	if err := s.m.store.Delete(ctx, KeyFor(token)); err != nil {
		return oops.Code("SESSION_END_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

func (s *Scope) forget() {
	s.token = ""
	s.stale = false
	s.clearCookie()
}

func (s *Scope) setCookie(token string, expires time.Time) {
	c := s.m.cfg.Cookie
	http.SetCookie(s.w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  expires,
		MaxAge:   int(s.m.cfg.Lifetime.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (s *Scope) clearCookie() {
	c := s.m.cfg.Cookie
	http.SetCookie(s.w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
