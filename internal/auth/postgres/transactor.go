// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/motiveme/motiveme/internal/auth"
)

// Transactor implements auth.Transactor on a pool. It stores the active
// pgx.Tx in context so repository calls made with that context join it.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor backed by the given pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction begins a read-committed transaction, stores it in context,
// and calls fn. If fn returns nil, the transaction is committed. Otherwise it
// is rolled back and fn's error is returned unchanged. Nested calls reuse the
// outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return conflictError("TX_COMMIT_CONFLICT", constraint, err)
		}
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
