// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Kind classifies a failure independently of any transport or language.
type Kind int

// Error kinds. KindInternal is the zero value so unclassified errors are
// always treated as server failures.
const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindUnauthorized
	KindForbidden
	KindNotFound
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindValidation:         "validation",
	KindConflict:           "conflict",
	KindInvalidCredentials: "invalid_credentials",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the kind by name in logs and JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Context keys attached to classified errors.
const (
	kindKey        = "kind"
	messageKeyKey  = "message_key"
	messageArgsKey = "message_args"
)

// Message keys understood by the presentation layer. Each maps to an entry in
// the i18n catalogs.
const (
	MsgSignupFieldsRequired = "signup.fields_required"
	MsgPasswordTooShort     = "signup.password_too_short"
	MsgEmailTaken           = "signup.email_taken"
	MsgSigninFieldsRequired = "signin.fields_required"
	MsgInvalidCredentials   = "signin.invalid_credentials"
	MsgUnauthorized         = "session.unauthorized"
	MsgForbidden            = "user.forbidden"
	MsgUserNotFound         = "user.not_found"
	MsgProfileInvalid       = "profile.invalid"
	MsgProfileEmpty         = "profile.empty"
	MsgInternal             = "server.internal"
)

// Classified starts an oops builder tagged with kind and a message key.
func Classified(kind Kind, code, messageKey string, args ...any) oops.OopsErrorBuilder {
	b := oops.Code(code).With(kindKey, kind).With(messageKeyKey, messageKey)
	if len(args) > 0 {
		b = b.With(messageArgsKey, args)
	}
	return b
}

// KindOf reports the Kind carried by err. Errors without a classification,
// including plain errors from lower layers, are KindInternal. When several
// layers classify the same chain, the innermost classification wins.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	if kind, ok := oopsErr.Context()[kindKey].(Kind); ok {
		return kind
	}
	return KindInternal
}

// MessageOf returns the presentation message key and its format arguments.
// Internal errors always map to MsgInternal so no detail leaks to callers.
func MessageOf(err error) (string, []any) {
	kind := KindOf(err)
	if kind == KindInternal {
		return MsgInternal, nil
	}
	oopsErr, _ := oops.AsOops(err)
	ctx := oopsErr.Context()
	key, _ := ctx[messageKeyKey].(string)
	if key == "" {
		key = defaultMessageKey(kind)
	}
	args, _ := ctx[messageArgsKey].([]any)
	return key, args
}

func defaultMessageKey(kind Kind) string {
	switch kind {
	case KindValidation:
		return MsgSignupFieldsRequired
	case KindConflict:
		return MsgEmailTaken
	case KindInvalidCredentials:
		return MsgInvalidCredentials
	case KindUnauthorized:
		return MsgUnauthorized
	case KindForbidden:
		return MsgForbidden
	case KindNotFound:
		return MsgUserNotFound
	default:
		return MsgInternal
	}
}
