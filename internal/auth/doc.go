// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package auth provides the account and credential lifecycle for MotiveMe.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a random ID and empty profile blobs
//   - NewCredential - creates a Credential bound to a user and password hash
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service coordinates signup, signin, signout, session reads and the
// per-user authorization rule. It never touches cookies or session storage
// directly; callers hand it a SessionScope bound to the current request.
//
// # Errors
//
// Every error returned by Service carries a Kind (see KindOf) so transports can
// map failures to status codes and localized messages without parsing text.
package auth
