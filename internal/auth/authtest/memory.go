// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package authtest provides in-memory fakes and assertions for auth tests.
package authtest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/motiveme/motiveme/internal/auth"
)

// Store is an in-memory account store with the same uniqueness and cascade
// rules as the relational schema. Transactions are serialized and roll back
// on error.
type Store struct {
	txMu sync.Mutex // serializes InTransaction
	mu   sync.Mutex // guards the maps
	data snapshot

	// Fail, when set, is returned by every repository call.
	Fail error
}

type snapshot struct {
	users       map[uuid.UUID]*auth.User
	credentials map[uuid.UUID]*auth.Credential
}

func (s snapshot) clone() snapshot {
	out := snapshot{
		users:       make(map[uuid.UUID]*auth.User, len(s.users)),
		credentials: make(map[uuid.UUID]*auth.Credential, len(s.credentials)),
	}
	for k, v := range s.users {
		out.users[k] = v.Clone()
	}
	for k, v := range s.credentials {
		c := *v
		out.credentials[k] = &c
	}
	return out
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: snapshot{
		users:       make(map[uuid.UUID]*auth.User),
		credentials: make(map[uuid.UUID]*auth.Credential),
	}}
}

// Users returns the UserRepository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Credentials returns the CredentialRepository view.
func (s *Store) Credentials() *CredentialRepo { return &CredentialRepo{s: s} }

// InTransaction implements auth.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	saved := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.users)
}

// CredentialCount returns the number of stored credentials.
func (s *Store) CredentialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.credentials)
}

// Credential returns a copy of the stored credential for userID, or nil.
func (s *Store) Credential(userID uuid.UUID) *auth.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.credentials[userID]
	if !ok {
		return nil
	}
	out := *c
	return &out
}

func conflict(field string) error {
	return auth.Classified(auth.KindConflict, "ACCOUNT_EMAIL_CONFLICT", auth.MsgEmailTaken).
		With("field", field).
		Errorf("duplicate key value violates unique constraint")
}

// UserRepo implements auth.UserRepository over a Store.
type UserRepo struct{ s *Store }

// Create implements auth.UserRepository.
func (r *UserRepo) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return r.s.Fail
	}
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return conflict("users.email")
		}
	}
	r.s.data.users[user.ID] = user.Clone()
	return nil
}

// GetByID implements auth.UserRepository.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return nil, r.s.Fail
	}
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u.Clone(), nil
}

// Update implements auth.UserRepository.
func (r *UserRepo) Update(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return r.s.Fail
	}
	if _, ok := r.s.data.users[user.ID]; !ok {
		return auth.ErrNotFound
	}
	r.s.data.users[user.ID] = user.Clone()
	return nil
}

// Delete implements auth.UserRepository. The credential goes with it.
func (r *UserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return r.s.Fail
	}
	if _, ok := r.s.data.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.data.users, id)
	delete(r.s.data.credentials, id)
	return nil
}

// CredentialRepo implements auth.CredentialRepository over a Store.
type CredentialRepo struct{ s *Store }

// Create implements auth.CredentialRepository.
func (r *CredentialRepo) Create(_ context.Context, cred *auth.Credential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return r.s.Fail
	}
	if _, ok := r.s.data.users[cred.UserID]; !ok {
		return auth.Classified(auth.KindInternal, "CREDENTIAL_ORPHAN", auth.MsgInternal).
			Errorf("foreign key violation: user %s does not exist", cred.UserID)
	}
	for _, c := range r.s.data.credentials {
		if c.Email == cred.Email {
			return conflict("auth_credentials.email")
		}
	}
	c := *cred
	r.s.data.credentials[cred.UserID] = &c
	return nil
}

// GetByEmail implements auth.CredentialRepository.
func (r *CredentialRepo) GetByEmail(_ context.Context, email string) (*auth.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return nil, r.s.Fail
	}
	for _, c := range r.s.data.credentials {
		if c.Email == email {
			out := *c
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePasswordHash implements auth.CredentialRepository.
func (r *CredentialRepo) UpdatePasswordHash(_ context.Context, userID uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Fail != nil {
		return r.s.Fail
	}
	c, ok := r.s.data.credentials[userID]
	if !ok {
		return auth.ErrNotFound
	}
	c.PasswordHash = hash
	return nil
}

// NewHasher returns an argon2id hasher with parameters cheap enough for tests.
func NewHasher() *auth.Argon2idHasher {
	return auth.NewArgon2idHasher(auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1})
}

// AssertKind asserts that err is classified as want.
func AssertKind(t *testing.T, err error, want auth.Kind) {
	t.Helper()
	if !assert.Error(t, err) {
		return
	}
	assert.Equal(t, want, auth.KindOf(err), "error: %v", err)
}

// Verify interfaces are satisfied.
var (
	_ auth.UserRepository       = (*UserRepo)(nil)
	_ auth.CredentialRepository = (*CredentialRepo)(nil)
	_ auth.Transactor           = (*Store)(nil)
)
