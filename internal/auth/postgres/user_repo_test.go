// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiveme/motiveme/internal/auth"
	"github.com/motiveme/motiveme/internal/auth/authtest"
	"github.com/motiveme/motiveme/internal/auth/postgres"
	"github.com/motiveme/motiveme/pkg/errutil"
)

var userCols = []string{"id", "email", "name", "points", "badges", "preferences", "stats", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func uniqueErr(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user, err := auth.NewUser("a@x.com", "A")
	require.NoError(t, err)

	t.Run("inserts row with JSON defaults", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(user.ID.String(), "a@x.com", "A", 0, []byte(`[]`), []byte(`{}`), []byte(`{}`), user.CreatedAt, user.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, postgres.NewUserRepository(mock).Create(ctx, user))
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).WillReturnError(uniqueErr("users_email_key"))

		err := postgres.NewUserRepository(mock).Create(ctx, user)
		authtest.AssertKind(t, err, auth.KindConflict)
		errutil.AssertErrorContext(t, err, "constraint", "users_email_key")
	})

	t.Run("other errors are internal", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("connection refused"))

		err := postgres.NewUserRepository(mock).Create(ctx, user)
		authtest.AssertKind(t, err, auth.KindInternal)
		errutil.AssertErrorCode(t, err, "USER_CREATE_FAILED")
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("scans row", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(userCols).AddRow(
			id.String(), "a@x.com", "A", 12,
			[]byte(`["early"]`), []byte(`{"lang":"fr"}`), []byte(`{"streak":3}`),
			now, now,
		)
		mock.ExpectQuery(`(?s)SELECT .* FROM users`).WithArgs(id.String()).WillReturnRows(rows)

		user, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, 12, user.Points)
		assert.Equal(t, []any{"early"}, user.Badges)
		assert.Equal(t, map[string]any{"lang": "fr"}, user.Preferences)
		assert.Equal(t, map[string]any{"streak": float64(3)}, user.Stats)
		assert.True(t, now.Equal(user.CreatedAt))
	})

	t.Run("null blobs become empty", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(userCols).AddRow(
			id.String(), "a@x.com", "A", 0, []byte(nil), []byte(`null`), []byte(nil), now, now,
		)
		mock.ExpectQuery(`(?s)SELECT .* FROM users`).WillReturnRows(rows)

		user, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []any{}, user.Badges)
		assert.Equal(t, map[string]any{}, user.Preferences)
		assert.Equal(t, map[string]any{}, user.Stats)
	})

	t.Run("missing row is ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`(?s)SELECT .* FROM users`).WillReturnRows(pgxmock.NewRows(userCols))

		_, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("query error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`(?s)SELECT .* FROM users`).WillReturnError(errors.New("connection refused"))

		_, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	user, err := auth.NewUser("a@x.com", "A")
	require.NoError(t, err)
	user.Points = 5

	t.Run("updates profile", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE users SET`).
			WithArgs(user.ID.String(), "A", 5, []byte(`[]`), []byte(`{}`), []byte(`{}`), user.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, postgres.NewUserRepository(mock).Update(ctx, user))
	})

	t.Run("no rows is ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE users SET`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := postgres.NewUserRepository(mock).Update(ctx, user)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM users`).WithArgs(id.String()).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM users`).WithArgs(id.String()).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := postgres.NewUserRepository(mock)
	require.NoError(t, repo.Delete(ctx, id))
	require.ErrorIs(t, repo.Delete(ctx, id), auth.ErrNotFound)
}
