// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MotiveMe Contributors

package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motiveme/motiveme/internal/session"
	"github.com/motiveme/motiveme/internal/session/redisstore"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func testRecord() session.Record {
	now := time.Now().UTC().Truncate(time.Second)
	return session.Record{
		UserID:    "0b6f1c7e-2f5c-4a38-9d8e-6a1f1e3c9b21",
		Email:     "a@x.com",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := redisstore.New(client, "")

	rec := testRecord()
	require.NoError(t, store.Save(ctx, "abc", rec, time.Hour))

	assert.True(t, mr.Exists(redisstore.DefaultKeyPrefix+"abc"))
	assert.Equal(t, time.Hour, mr.TTL(redisstore.DefaultKeyPrefix+"abc"))

	got, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, rec.Email, got.Email)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
}

func TestStoreResaveRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := redisstore.New(client, "test:")

	rec := testRecord()
	require.NoError(t, store.Save(ctx, "abc", rec, time.Hour))
	mr.FastForward(50 * time.Minute)
	require.NoError(t, store.Save(ctx, "abc", rec, time.Hour))
	mr.FastForward(50 * time.Minute)

	_, err := store.Load(ctx, "abc")
	require.NoError(t, err)
}

func TestStoreLoadMissingOrExpired(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := redisstore.New(client, "")

	_, err := store.Load(ctx, "missing")
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Save(ctx, "short", testRecord(), time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "short")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := redisstore.New(client, "")

	require.NoError(t, store.Save(ctx, "abc", testRecord(), time.Hour))
	require.NoError(t, store.Delete(ctx, "abc"))
	assert.False(t, mr.Exists(redisstore.DefaultKeyPrefix+"abc"))

	// deleting twice is fine
	require.NoError(t, store.Delete(ctx, "abc"))
}

func TestStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	store := redisstore.New(client, "")

	require.Error(t, store.Save(ctx, "", testRecord(), time.Hour))
	require.Error(t, store.Save(ctx, "abc", testRecord(), 0))
}

func TestStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := redisstore.New(client, "")

	require.NoError(t, mr.Set(redisstore.DefaultKeyPrefix+"bad", "{not json"))
	_, err := store.Load(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNotFound)
}

func TestStoreServerDown(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	store := redisstore.New(client, "")
	mr.Close()

	_, err := store.Load(ctx, "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNotFound)
}

func TestStoreWithManager(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	m, err := session.NewManager(redisstore.New(client, ""), session.DefaultConfig())
	require.NoError(t, err)

	const token = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	require.NoError(t, redisstore.New(client, "").Save(ctx, session.KeyFor(token), testRecord(), time.Hour))

	id, err := readWithToken(ctx, m, token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "a@x.com", id.Email)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := redisstore.NewClient(context.Background(), redisstore.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = redisstore.NewClient(context.Background(), redisstore.Options{Addr: mr.Addr()})
	require.Error(t, err)
}
