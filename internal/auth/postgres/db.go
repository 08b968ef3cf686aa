// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

// Package postgres implements the auth repositories, the transactor and a
// session store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/motiveme/motiveme/internal/auth"
)

// Pool is the subset of *pgxpool.Pool the package needs. pgxmock's pool
// satisfies it too.
type Pool interface {
	querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// querier abstracts query execution for both a pool and pgx.Tx so repository
// methods work within or outside of transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey is the context key under which Transactor stores the active pgx.Tx.
type txKey struct{}

// conn returns the transaction stored in ctx, or pool when there is none.
func conn(ctx context.Context, pool Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// uniqueViolation reports whether err is a unique_violation and which
// constraint fired.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// conflictError classifies a unique violation as an email conflict.
func conflictError(code, constraint string, err error) error {
	return auth.Classified(auth.KindConflict, code, auth.MsgEmailTaken).
		With("constraint", constraint).
		Wrap(err)
}
