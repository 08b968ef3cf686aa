// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/motiveme/motiveme/internal/session"
	"github.com/motiveme/motiveme/pkg/errutil"
)

// SessionScope is the per-request session state machine the service drives.
// *session.Scope satisfies it.
type SessionScope interface {
	Start(ctx context.Context, userID, email string) error
	Read(ctx context.Context) (*session.Identity, error)
	End(ctx context.Context) error
}

// EventRecorder counts auth outcomes. Implementations must be safe for
// concurrent use.
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthEvent(string, string) {}

// Auth event names reported to the EventRecorder.
const (
	EventSignup  = "signup"
	EventSignin  = "signin"
	EventSignout = "signout"
)

// Constructor errors.
var (
	ErrNilUserRepository       = oops.Code("AUTH_NIL_DEPENDENCY").Errorf("user repository cannot be nil")
	ErrNilCredentialRepository = oops.Code("AUTH_NIL_DEPENDENCY").Errorf("credential repository cannot be nil")
	ErrNilTransactor           = oops.Code("AUTH_NIL_DEPENDENCY").Errorf("transactor cannot be nil")
	ErrNilHasher               = oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher cannot be nil")
)

// dummyPasswordHash is verified when an email is unknown so that both signin
// failures cost one argon2id derivation. It matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides account and session operations.
type Service struct {
	users       UserRepository
	credentials CredentialRepository
	tx          Transactor
	hasher      PasswordHasher
	events      EventRecorder
	logger      *slog.Logger
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithEventRecorder reports signup, signin and signout outcomes to r.
func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.events = r
		}
	}
}

// NewAuthService creates a new Service using the default logger.
func NewAuthService(users UserRepository, credentials CredentialRepository, tx Transactor, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	return NewAuthServiceWithLogger(users, credentials, tx, hasher, slog.Default(), opts...)
}

// NewAuthServiceWithLogger creates a new Service with a custom logger.
func NewAuthServiceWithLogger(
	users UserRepository,
	credentials CredentialRepository,
	tx Transactor,
	hasher PasswordHasher,
	logger *slog.Logger,
	opts ...ServiceOption,
) (*Service, error) {
	if users == nil {
		return nil, ErrNilUserRepository
	}
	if credentials == nil {
		return nil, ErrNilCredentialRepository
	}
	if tx == nil {
		return nil, ErrNilTransactor
	}
	if hasher == nil {
		return nil, ErrNilHasher
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		users:       users,
		credentials: credentials,
		tx:          tx,
		hasher:      hasher,
		events:      nopRecorder{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignupInput carries the raw signup form.
type SignupInput struct {
	Email    string
	Password string
	Name     string
}

// SessionView is the result of ReadSession. Both fields are nil for an
// anonymous client.
type SessionView struct {
	Session *session.Identity
	User    *User
}

// Signup registers a new account and signs it in.
// The user and credential rows are written in one transaction; a duplicate
// email is detected by the store's unique constraint.
func (s *Service) Signup(ctx context.Context, scope SessionScope, in SignupInput) (user *User, err error) {
	defer func() { s.record(EventSignup, err) }()

	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || strings.TrimSpace(in.Password) == "" || name == "" {
		return nil, Classified(KindValidation, "AUTH_SIGNUP_INVALID", MsgSignupFieldsRequired).
			Errorf("email, password and name are required")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, Classified(KindValidation, "AUTH_PASSWORD_TOO_SHORT", MsgPasswordTooShort, MinPasswordLength).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err = NewUser(email, name)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "build user").Wrap(err)
	}
	cred, err := NewCredential(user.ID, email, hash)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").With("operation", "build credential").Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		return s.credentials.Create(ctx, cred)
	})
	if err != nil {
		if KindOf(err) == KindConflict {
			return nil, Classified(KindConflict, "AUTH_EMAIL_TAKEN", MsgEmailTaken).
				With("operation", "create account").
				Wrap(err)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	if err := scope.Start(ctx, user.ID.String(), user.Email); err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "start session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.DebugContext(ctx, "account created", "user_id", user.ID.String(), "email", user.Email)
	return user, nil
}

// Signin authenticates email and password and starts a session.
// Unknown emails and wrong passwords fail identically, including in cost.
func (s *Service) Signin(ctx context.Context, scope SessionScope, email, password string) (user *User, err error) {
	defer func() { s.record(EventSignin, err) }()

	email = NormalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, Classified(KindValidation, "AUTH_SIGNIN_INVALID", MsgSigninFieldsRequired).
			Errorf("email and password are required")
	}

	cred, lookupErr := s.credentials.GetByEmail(ctx, email)

	var targetHash string
	var exists bool
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_SIGNIN_FAILED").
				With("operation", "get credential by email").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = cred.PasswordHash
		exists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			With("user_id", cred.UserID.String()).
			Wrap(verifyErr)
	}
	if !exists || !valid {
		return nil, Classified(KindInvalidCredentials, "AUTH_INVALID_CREDENTIALS", MsgInvalidCredentials).
			Errorf("invalid email or password")
	}

	user, err = s.users.GetByID(ctx, cred.UserID)
	if err != nil {
		// The foreign key makes a credential without a user a broken invariant.
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "get user").
			With("user_id", cred.UserID.String()).
			Wrap(err)
	}

	if s.hasher.NeedsRehash(cred.PasswordHash) {
		s.rehash(ctx, cred.UserID, password)
	}

	if err := scope.Start(ctx, user.ID.String(), user.Email); err != nil {
		return nil, oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "start session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return user, nil
}

// rehash upgrades a stored hash to the current parameters. Failures are
// logged; signin succeeds regardless.
func (s *Service) rehash(ctx context.Context, userID uuid.UUID, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.credentials.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash failed", oops.
			Code("AUTH_REHASH_FAILED").
			With("user_id", userID.String()).
			Wrap(err))
	}
}

// Signout ends the client's session. It never fails from the caller's point
// of view: store errors are logged and the cookie is cleared regardless.
func (s *Service) Signout(ctx context.Context, scope SessionScope) {
	if err := scope.End(ctx); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session end failed", err)
		s.events.RecordAuthEvent(EventSignout, "error")
		return
	}
	s.events.RecordAuthEvent(EventSignout, "success")
}

// ReadSession returns the current identity and a freshly loaded user.
// A session whose user no longer exists is ended and reported as anonymous.
func (s *Service) ReadSession(ctx context.Context, scope SessionScope) (*SessionView, error) {
	identity, err := scope.Read(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_READ_FAILED").
			With("operation", "read session").
			Wrap(err)
	}
	if identity == nil {
		return &SessionView{}, nil
	}

	id, err := uuid.Parse(identity.UserID)
	if err != nil {
		s.endStale(ctx, scope, identity.UserID)
		return &SessionView{}, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.endStale(ctx, scope, identity.UserID)
			return &SessionView{}, nil
		}
		return nil, oops.Code("AUTH_SESSION_READ_FAILED").
			With("operation", "get user").
			With("user_id", identity.UserID).
			Wrap(err)
	}

	return &SessionView{Session: identity, User: user}, nil
}

func (s *Service) endStale(ctx context.Context, scope SessionScope, userID string) {
	s.logger.InfoContext(ctx, "ending session for missing user", "user_id", userID)
	if err := scope.End(ctx); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "stale session end failed", err)
	}
}

// authorize resolves the session and enforces that it belongs to
// requestedID. The ownership check runs before any user lookup.
func (s *Service) authorize(ctx context.Context, scope SessionScope, requestedID string) (uuid.UUID, error) {
	identity, err := scope.Read(ctx)
	if err != nil {
		return uuid.Nil, oops.Code("AUTH_SESSION_READ_FAILED").
			With("operation", "read session").
			Wrap(err)
	}
	if identity == nil {
		return uuid.Nil, Classified(KindUnauthorized, "AUTH_UNAUTHORIZED", MsgUnauthorized).
			Errorf("no active session")
	}
	if requestedID != identity.UserID {
		return uuid.Nil, Classified(KindForbidden, "AUTH_FORBIDDEN", MsgForbidden).
			With("user_id", identity.UserID).
			With("requested_id", requestedID).
			Errorf("access to another user's record denied")
	}
	id, err := uuid.Parse(identity.UserID)
	if err != nil {
		return uuid.Nil, Classified(KindNotFound, "USER_NOT_FOUND", MsgUserNotFound).
			With("user_id", identity.UserID).
			Wrap(err)
	}
	return id, nil
}

// GetUser returns the caller's own user record.
func (s *Service) GetUser(ctx context.Context, scope SessionScope, requestedID string) (*User, error) {
	id, err := s.authorize(ctx, scope, requestedID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, id)
	}
	return user, nil
}

// UpdateProfile applies patch to the caller's own user record.
func (s *Service) UpdateProfile(ctx context.Context, scope SessionScope, requestedID string, patch ProfilePatch) (*User, error) {
	id, err := s.authorize(ctx, scope, requestedID)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var user *User
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		current, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(current); err != nil {
			return err
		}
		if err := s.users.Update(ctx, current); err != nil {
			return err
		}
		user = current
		return nil
	})
	if err != nil {
		if KindOf(err) == KindValidation {
			return nil, err
		}
		return nil, notFoundOrInternal(err, id)
	}
	return user, nil
}

func notFoundOrInternal(err error, id uuid.UUID) error {
	if errors.Is(err, ErrNotFound) {
		return Classified(KindNotFound, "USER_NOT_FOUND", MsgUserNotFound).
			With("user_id", id.String()).
			Wrap(err)
	}
	return oops.Code("USER_LOOKUP_FAILED").
		With("user_id", id.String()).
		Wrap(err)
}

func (s *Service) record(event string, err error) {
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.events.RecordAuthEvent(event, outcome)
}
